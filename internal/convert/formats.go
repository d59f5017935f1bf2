package convert

import (
	"github.com/valyala/fasthttp"
)

// Format allow-lists mirrored by the browser's format selector.
var supportedFormats = map[string][]string{
	"image":    {"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp"},
	"document": {"pdf", "docx", "doc", "xlsx", "pptx", "txt", "html", "md", "rtf", "odt", "epub"},
	"audio":    {"mp3", "wav", "ogg", "flac", "aac", "m4a", "wma"},
	"video":    {"mp4", "webm", "mkv", "mov", "avi", "flv"},
	"archive":  {"zip"},
}

// Formats handles GET /api/formats.
func (e *Endpoints) Formats(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Cache-Control", "public, max-age=3600")
	writeJSON(ctx, fasthttp.StatusOK, supportedFormats)
}
