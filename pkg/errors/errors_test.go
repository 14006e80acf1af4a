package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrCorruptIndex, "bad header in %s", "rev-words.current.dat")
	wrapped := fmt.Errorf("opening reverse index: %w", err)

	assert.ErrorIs(t, wrapped, ErrCorruptIndex)
	assert.Equal(t, "corrupt index file: bad header in rev-words.current.dat", err.Error())
}

func TestCategory(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrIndexUnavailable, "unavailable"},
		{fmt.Errorf("gamma: %w", ErrInvalidCodecInput), "invalid_input"},
		{New(ErrConstructionInProgress, "lock held"), "busy"},
		{ErrBudgetExhausted, "budget_exhausted"},
		{fmt.Errorf("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Category(tt.err))
		})
	}
}
