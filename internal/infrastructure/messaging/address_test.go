package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+94771461925", "94771461925@c.us"},
		{"0771461925", "94771461925@c.us"},
		{"077 146 1925", "94771461925@c.us"},
		{"771461925", "94771461925@c.us"},
		{"(077) 146-1925", "94771461925@c.us"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ChatID(tt.in, "94")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatID_NoDigits(t *testing.T) {
	_, err := ChatID("n/a", "94")
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "123", Digits("+1 (2) 3"))
	assert.Equal(t, "", Digits("٣")) // non-ASCII digits are dropped
}
