package tool

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"

	"vero/internal/domain"
)

// RateLimitedTool wraps a Tool with a token-bucket rate limiter. Calls over
// the limit are rejected with an error result instead of blocking, so a
// reasoning loop can fold the rejection into an observation and continue.
type RateLimitedTool struct {
	inner   domain.Tool
	limiter *rate.Limiter
}

// WithRateLimit wraps a tool to allow at most limit calls per second with
// the given burst.
func WithRateLimit(t domain.Tool, limit rate.Limit, burst int) *RateLimitedTool {
	return &RateLimitedTool{
		inner:   t,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (r *RateLimitedTool) Name() string              { return r.inner.Name() }
func (r *RateLimitedTool) Description() string       { return r.inner.Description() }
func (r *RateLimitedTool) Params() []domain.Param    { return r.inner.Params() }
func (r *RateLimitedTool) Schema() domain.ToolSchema { return r.inner.Schema() }

func (r *RateLimitedTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	if !r.limiter.Allow() {
		return &domain.ToolResult{
			IsError: true,
			Content: "rate limit exceeded for tool " + r.inner.Name() + ", try again later",
		}, nil
	}
	return r.inner.Execute(ctx, params)
}

var _ domain.Tool = (*RateLimitedTool)(nil)
