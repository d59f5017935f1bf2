package storage

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

type Endpoints struct {
	backend Backend
}

func NewEndpoints(backend Backend) *Endpoints {
	return &Endpoints{
		backend: backend,
	}
}

// ServeFile handles GET /files/<key> for the local backend. The R2 backend
// hands out presigned URLs instead, so this route never sees its keys.
func (e *Endpoints) ServeFile(ctx *fasthttp.RequestCtx) {
	key, ok := ctx.UserValue("fileKey").(string)
	if !ok || key == "" {
		ctx.Error("Not Found", fasthttp.StatusNotFound)
		return
	}

	reader, err := e.backend.Get(ctx, key)
	if err != nil {
		ctx.Error("Not Found", fasthttp.StatusNotFound)
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx.SetContentType(contentType)
	ctx.Response.Header.Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(key)))

	if _, err := io.Copy(ctx.Response.BodyWriter(), reader); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("File download interrupted")
	}
}
