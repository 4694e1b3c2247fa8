// Package generator defines the boundary to the external DeepSearch list
// generator. The cache never looks inside the generated payload; it only
// carries it, so the interface stays deliberately small.
package generator

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrGenerationFailed wraps any failure of the external generator. Nothing
// is cached on failure and a later request is free to retry.
var ErrGenerationFailed = errors.New("generation failed")

// Request describes the project a material/estimate list is wanted for.
type Request struct {
	ProjectType string            `json:"projectType"`
	Region      string            `json:"region"`
	ScopeParams map[string]string `json:"scopeParams,omitempty"`
	Description string            `json:"projectDescription,omitempty"`
}

// Result is one generation: an opaque list payload plus the generator's
// self-reported confidence in [0,1].
type Result struct {
	List       json.RawMessage
	Confidence float64
}

// Generator produces a material/estimate list for a request. Implementations
// must honor ctx cancellation and report every failure as (or wrapped in)
// ErrGenerationFailed.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, req Request) (*Result, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
