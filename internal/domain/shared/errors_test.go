package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("relay: %w", NewDomainError("UNAVAILABLE", "gateway down"))

	assert.True(t, errors.Is(wrapped, ErrUnavailable))
	assert.False(t, errors.Is(wrapped, ErrInvalidInput))
	assert.Equal(t, "relay: gateway down", wrapped.Error())

	var de *DomainError
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "UNAVAILABLE", de.Code)
}
