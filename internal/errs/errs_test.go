package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := fmt.Errorf("writing turn: %w", Wrap(Internal, "store failure", cause))

	require.Equal(t, Internal, KindOf(wrapped))
	require.True(t, Is(wrapped, Internal))
	require.False(t, Is(wrapped, NotFound))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	require.Equal(t, Internal, KindOf(errors.New("plain error")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(ProviderError, "chat call failed", errors.New("503"))
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "chat call failed")
}
