package middleware

import (
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// ThrottleMiddleware caps total request throughput across all clients. It
// sits in front of the per-IP quotas, which budget conversions per user.
type ThrottleMiddleware struct {
	limiter *rate.Limiter
}

// NewThrottleMiddleware allows rps requests per second with the given burst.
func NewThrottleMiddleware(rps float64, burst int) *ThrottleMiddleware {
	return &ThrottleMiddleware{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (tm *ThrottleMiddleware) Handle(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !tm.limiter.Allow() {
			ctx.SetContentType("application/json")
			ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
			ctx.SetBodyString(`{"error":"Server is busy. Please try again shortly."}`)
			return
		}
		next(ctx)
	}
}
