// Package pipeline implements the host-side image pipeline (C7): the
// fixed sequence of transforms applied to a frame after it arrives from
// a helper — orientation correction, ICC color transform, memory-format
// conversion, and texture packaging.
//
// Grounded on the teacher's pipeline/{pipeline,steps}.go Step-chain
// shape (a Step interface, a Pipeline that runs them in order, Execute
// taking and returning the working value) — adapted from Skryldev's
// generic, user-composable step list (resize/crop/watermark/...) to
// glycin's fixed four-stage sequence, since a decoded frame's
// post-processing order is dictated by the spec, not assembled per
// request. Retry/hook support is dropped (each stage here is a pure,
// synchronous, in-memory transform — there is nothing transient to
// retry), which is the one ambient behavior of the teacher's Pipeline
// this translation intentionally does not carry over (documented in
// DESIGN.md rather than silently omitted).
package pipeline

import (
	"context"
	"fmt"

	"github.com/glycin-project/glycin/internal/wiretypes"
)

// Step transforms a frame, by value, returning the (possibly new)
// result. A Step that makes no change may return frame unmodified.
type Step interface {
	Name() string
	Execute(ctx context.Context, frame wiretypes.Frame) (wiretypes.Frame, error)
}

// Pipeline runs a fixed ordered list of Steps.
type Pipeline struct {
	steps []Step
}

// New builds a Pipeline from steps, run in the given order.
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes every step in order, stopping at the first error.
func (p *Pipeline) Run(ctx context.Context, frame wiretypes.Frame) (wiretypes.Frame, error) {
	current := frame
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return wiretypes.Frame{}, fmt.Errorf("pipeline: %s: %w", step.Name(), err)
		}
		next, err := step.Execute(ctx, current)
		if err != nil {
			return wiretypes.Frame{}, fmt.Errorf("pipeline: %s: %w", step.Name(), err)
		}
		current = next
	}
	return current, nil
}

// Default builds the standard host pipeline described by C7:
// orientation correction, then ICC color transform, then memory-format
// selection. Texture packaging itself is not a Step: it is simply
// returning the resulting wiretypes.Frame, already in its final shape
// by construction.
func Default(opts Options) *Pipeline {
	return New(
		&OrientationStep{IgnoreEXIF: opts.IgnoreEXIF, Hint: opts.OrientationHint},
		&ColorStateStep{Target: opts.ColorTarget, Apply: opts.ApplyColorTransform},
		&MemoryFormatStep{Acceptable: opts.AcceptableFormats},
	)
}

// Options configures Default's step set from a single frame request's
// details, mirroring image_details.transformation_ignore_exif and the
// caller's acceptable memory-format restriction from C7's prose.
type Options struct {
	IgnoreEXIF          bool
	OrientationHint     *uint16
	ColorTarget         ColorTarget
	ApplyColorTransform bool
	AcceptableFormats   []MemoryFormatConstraint
}
