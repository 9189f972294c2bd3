// Package pipeline defines the stage contract and the machinery that runs stages:
// the runner that brackets each stage with logging and side channels, and the
// dispatcher that maps stage names to their implementations.
package pipeline

import "context"

// Stage is one step of the pipeline. Implementations gate their inputs, act and
// persist their outputs synchronously.
type Stage interface {
	Run(ctx context.Context) error
}

// StageFunc adapts an ordinary function to Stage.
type StageFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f StageFunc) Run(ctx context.Context) error {
	return f(ctx)
}
