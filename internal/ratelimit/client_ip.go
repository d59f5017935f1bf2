package ratelimit

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// ClientIP resolves the caller's address, preferring proxy headers since the
// server normally sits behind a CDN or load balancer.
func ClientIP(ctx *fasthttp.RequestCtx) string {
	if forwarded := string(ctx.Request.Header.Peek("X-Forwarded-For")); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := string(ctx.Request.Header.Peek("X-Real-IP")); realIP != "" {
		return realIP
	}
	if cfIP := string(ctx.Request.Header.Peek("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}
	return ctx.RemoteIP().String()
}
