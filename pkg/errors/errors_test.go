package errors_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

func TestIsType_WalksWrapChain(t *testing.T) {
	base := apperrors.NewNotFoundError("review 7 not found")
	wrapped := fmt.Errorf("delete review: %w", base)

	assert.True(t, apperrors.IsType(wrapped, apperrors.ErrorTypeNotFound))
	assert.False(t, apperrors.IsType(wrapped, apperrors.ErrorTypeSuppressed))
	assert.False(t, apperrors.IsType(nil, apperrors.ErrorTypeNotFound))
	assert.Equal(t, apperrors.ErrorType(""), apperrors.TypeOf(fmt.Errorf("plain")))
}

func TestUserMessage(t *testing.T) {
	transport := apperrors.NewRemoteUnavailableError("could not reach the catalog", fmt.Errorf("dial tcp: refused"))

	assert.Equal(t, "could not reach the catalog", apperrors.UserMessage(transport))
	assert.Equal(t, "boom", apperrors.UserMessage(fmt.Errorf("boom")))
	assert.Equal(t, "", apperrors.UserMessage(nil))
	assert.Contains(t, transport.Error(), "dial tcp: refused")
}

func TestNewSuppressedError(t *testing.T) {
	err := apperrors.NewSuppressedError("places:fetch", 1500*time.Millisecond)

	assert.Equal(t, apperrors.ErrorTypeSuppressed, err.Type)
	assert.Equal(t, "places:fetch failed recently; retry in 1.5s", err.Message)
}
