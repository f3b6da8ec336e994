// Package captcha defines the challenge-solving capability the navigator consumes
// and an HTTP client for an external recognition service.
package captcha

//go:generate mockgen -source=solver.go -destination=mocks/solver.go -package=mocks

import "context"

// Solver turns a challenge image into a best-effort text answer.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, image []byte) (string, error)

// Solve calls f(ctx, image).
func (f SolverFunc) Solve(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}
