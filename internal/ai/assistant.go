package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrScoring marks failures of the embedding or language model backends.
var ErrScoring = errors.New("scoring failure")

// Evaluation is the model's verdict on one resume for one job posting.
type Evaluation struct {
	Score   int
	Summary string
	Raw     string
}

// Evaluator grades a resume against a job description.
type Evaluator interface {
	Evaluate(ctx context.Context, resumeText, jobText string) (*Evaluation, error)
}

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
}

// ScoringError wraps a backend failure and matches ErrScoring.
func ScoringError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrScoring, err)
}
