package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"validation", Validation("op", "answer", "empty"), KindValidation},
		{"wrapped not found", fmt.Errorf("load: %w", NotFound("op", "session %s", "x")), KindNotFound},
		{"conflict", Conflict("op", "dup"), KindConflict},
		{"state", State("op", "terminal"), KindState},
		{"exhausted", Exhausted("op", "none"), KindExhausted},
		{"foreign", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_MessageCarriesContext(t *testing.T) {
	err := Validation("placement.submit", "elapsed_seconds", "must be within [0, 300], got %d", 301).
		WithSession("s-1").
		WithItem(42)

	msg := err.Error()
	assert.Contains(t, msg, "placement.submit")
	assert.Contains(t, msg, "validation")
	assert.Contains(t, msg, "field=elapsed_seconds")
	assert.Contains(t, msg, "session=s-1")
	assert.Contains(t, msg, "item=42")
	assert.True(t, IsValidation(err))
}

func TestWithSession_DoesNotMutateOriginal(t *testing.T) {
	base := NotFound("op", "missing")
	_ = base.WithSession("abc")
	assert.Empty(t, base.SessionID)
}
