package ai

import (
	"errors"
	"io"
	"testing"
)

func TestScoringError(t *testing.T) {
	err := ScoringError("evaluate", io.ErrUnexpectedEOF)

	if !errors.Is(err, ErrScoring) {
		t.Fatalf("expected ErrScoring, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected cause to be kept, got %v", err)
	}
	if err.Error() != "evaluate: scoring failure: unexpected EOF" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
