package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		service, category, sequence int
		expected                    int
	}{
		{0, 0, 0, 0},
		{0, 1, 1, 1001},
		{20, 5, 1, 2005001},
		{90, 10, 1, 9010001},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.service, tt.category, tt.sequence), func(t *testing.T) {
			assert.Equal(t, tt.expected, MakeCode(tt.service, tt.category, tt.sequence))
			s, c, q := ParseCode(tt.expected)
			assert.Equal(t, []int{tt.service, tt.category, tt.sequence}, []int{s, c, q})
		})
	}
}

func TestErrnoMessage(t *testing.T) {
	assert.Equal(t, "Запит не може бути порожнім", ErrEmptyQuery.Message("uk"))
	assert.Equal(t, "Query must not be empty", ErrEmptyQuery.Message("en"))
	// польська падає на англійську
	assert.Equal(t, "Query must not be empty", ErrEmptyQuery.Message("pl"))
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := ErrProviderUnavailable.WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
	assert.Equal(t, codes.Unavailable, err.GRPCStatus())
	// оригінал не змінюється
	assert.Nil(t, ErrProviderUnavailable.Unwrap())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("turn: %w", ErrConcurrencyConflict)
	got := FromError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrConcurrencyConflict.Code, got.Code)
	assert.True(t, IsCode(wrapped, ErrConcurrencyConflict.Code))

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, -1, GetCode(fmt.Errorf("boom")))

	timeout := FromError(fmt.Errorf("chat: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrTimeout.Code, timeout.Code)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(&Errno{Code: ErrInternal.Code, MessageEN: "dup"})
	})
	_, ok := Lookup(ErrNoResults.Code)
	assert.True(t, ok)
	assert.Contains(t, Codes(), ErrStateInvariant.Code)
}

func TestCategoryHelpers(t *testing.T) {
	assert.True(t, IsClientError(ErrValidation.Code))
	assert.True(t, IsServerError(ErrDatabase.Code))
	assert.Equal(t, CategoryConflict, GetCategory(ErrConcurrencyConflict.Code))
}
