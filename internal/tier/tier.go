// Package tier implements the candidate backends for answer generation.
// Each tier accepts the same request shape; the execution router attempts
// them in priority order.
package tier

import (
	"context"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

// Generator is one answer-generation backend. Healthy is a cheap probe the
// router polls before committing to a full request. Generate must respect
// ctx cancellation so a timed-out attempt does not leak its connection.
type Generator interface {
	Name() string
	Healthy(ctx context.Context) error
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}
