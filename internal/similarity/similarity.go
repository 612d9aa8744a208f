// Package similarity scores resume/job overlap with embedding cosine similarity.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spigell/hr-screener/internal/ai"
)

// DefaultThreshold is the score above which a pair counts as similar.
const DefaultThreshold = 70.0

var (
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
	ErrZeroVector        = errors.New("embedding is a zero vector")
)

type Scorer struct {
	embedder ai.Embedder
}

func New(embedder ai.Embedder) *Scorer {
	return &Scorer{embedder: embedder}
}

// Score returns cosine similarity scaled to [0,100]. Negative similarity is reported as 0.
func (s *Scorer) Score(ctx context.Context, resumeText, jobText string) (float64, error) {
	if strings.TrimSpace(resumeText) == "" || strings.TrimSpace(jobText) == "" {
		return 0, ai.ScoringError("similarity", errors.New("both texts are required"))
	}

	vectors, err := s.embedder.Embed(ctx, resumeText, jobText)
	if err != nil {
		return 0, ai.ScoringError("similarity", err)
	}
	if len(vectors) != 2 {
		return 0, ai.ScoringError("similarity", fmt.Errorf("expected 2 embeddings, got %d", len(vectors)))
	}

	cos, err := Cosine(vectors[0], vectors[1])
	if err != nil {
		return 0, ai.ScoringError("similarity", err)
	}

	return math.Max(0, math.Min(100, cos*100)), nil
}

// Cosine returns the cosine similarity of a and b.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
