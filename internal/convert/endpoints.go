package convert

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/anyconvert/anyconvert_server/internal/apperr"
	"github.com/anyconvert/anyconvert_server/internal/ratelimit"
	"github.com/anyconvert/anyconvert_server/internal/scrape"
	"github.com/anyconvert/anyconvert_server/internal/youtube"
)

type Endpoints struct {
	service     *Service
	limiter     *ratelimit.Limiter
	maxFileSize int64
}

func NewEndpoints(service *Service, limiter *ratelimit.Limiter, maxFileSize int64) *Endpoints {
	return &Endpoints{
		service:     service,
		limiter:     limiter,
		maxFileSize: maxFileSize,
	}
}

// Convert handles POST /api/convert.
func (e *Endpoints) Convert(ctx *fasthttp.RequestCtx) {
	contentType := string(ctx.Request.Header.ContentType())
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		writeError(ctx, apperr.BadRequest("Content-Type must be multipart/form-data"))
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		writeError(ctx, apperr.BadRequest("Failed to parse multipart form"))
		return
	}

	req, err := ParseRequest(form, e.maxFileSize)
	if err != nil {
		writeError(ctx, err)
		return
	}

	// Quota is consumed only by well-formed requests; validation failures
	// never cost the client a conversion.
	if !e.allow(ctx) {
		return
	}

	result, err := e.service.Convert(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("kind", req.Kind.String()).Msg("Conversion failed")
		writeError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, result)
}

type downloadRequest struct {
	URL          string `json:"url"`
	Format       string `json:"format"`  // "video" or "audio"
	Quality      string `json:"quality"` // "highest" or "lowest"
	TargetFormat string `json:"targetFormat"`
}

// Download handles POST /api/download (YouTube URL ingestion).
func (e *Endpoints) Download(ctx *fasthttp.RequestCtx) {
	var req downloadRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, apperr.BadRequest("Invalid request body"))
		return
	}

	if req.URL == "" {
		writeError(ctx, apperr.BadRequest("No URL provided"))
		return
	}
	if err := scrape.ValidateURL(req.URL); err != nil {
		writeError(ctx, apperr.BadRequest(err.Error()))
		return
	}

	if !e.allow(ctx) {
		return
	}

	track := youtube.TrackVideo
	if req.Format == "audio" {
		track = youtube.TrackAudio
	}

	result, err := e.service.Download(ctx, youtube.Options{
		URL:          req.URL,
		Track:        track,
		Quality:      req.Quality,
		TargetFormat: req.TargetFormat,
	})
	if err != nil {
		log.Error().Err(err).Str("url", req.URL).Msg("Download failed")
		writeError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, result)
}

func (e *Endpoints) allow(ctx *fasthttp.RequestCtx) bool {
	if e.limiter == nil {
		return true
	}

	ip := ratelimit.ClientIP(ctx)
	allowed, reason, err := e.limiter.Allow(ctx, ip)
	if err != nil {
		// A broken quota store should not take conversions down with it.
		log.Warn().Err(err).Msg("Rate limit check failed, allowing request")
		return true
	}
	if !allowed {
		writeError(ctx, apperr.TooManyRequests(reason))
		return false
	}
	return true
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, err error) {
	writeJSON(ctx, apperr.StatusOf(err), ErrorResult{Error: err.Error()})
}
