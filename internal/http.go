package internal

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/anyconvert/anyconvert_server/internal/convert"
	"github.com/anyconvert/anyconvert_server/internal/health"
	"github.com/anyconvert/anyconvert_server/internal/middleware"
	"github.com/anyconvert/anyconvert_server/internal/storage"
)

func NewRequestHandler(config *Config, convertEndpoints *convert.Endpoints, healthEndpoints *health.HealthEndpoints, storageEndpoints *storage.Endpoints) fasthttp.RequestHandler {
	corsMiddleware := middleware.NewCORSMiddleware(config.AllowedOrigins)
	throttleMiddleware := middleware.NewThrottleMiddleware(50, 100)

	handler := func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())

		switch {
		case path == "/api/convert":
			if string(ctx.Method()) == "POST" {
				convertEndpoints.Convert(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case path == "/api/download":
			if string(ctx.Method()) == "POST" {
				convertEndpoints.Download(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case path == "/api/formats":
			if string(ctx.Method()) == "GET" {
				convertEndpoints.Formats(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}

		case strings.HasPrefix(path, "/files/"):
			parts := strings.Split(path, "/")
			if len(parts) == 3 && parts[2] != "" && string(ctx.Method()) == "GET" {
				ctx.SetUserValue("fileKey", parts[2])
				storageEndpoints.ServeFile(ctx)
			} else {
				ctx.Error("Not Found", fasthttp.StatusNotFound)
			}

		case path == "/health":
			healthEndpoints.Health(ctx)

		default:
			ctx.Error("Not Found", fasthttp.StatusNotFound)
		}
	}

	return corsMiddleware.Handle(throttleMiddleware.Handle(handler))
}
