package service

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC)

	number, err := NewOrderNumber(now)
	require.NoError(t, err)

	prefix := "ORD-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	assert.True(t, strings.HasPrefix(number, prefix), "got %s", number)
	assert.Len(t, number, len(prefix)+4)
	assert.Regexp(t, `^ORD-[0-9A-Z]+$`, number)
	assert.True(t, looksLikeOrderNumber(number))
}

func TestNewOrderNumber_SameMillisecondDiffers(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		number, err := NewOrderNumber(now)
		require.NoError(t, err)
		seen[number] = true
	}

	// 36^4 suffixes; a handful of birthday collisions at most.
	assert.Greater(t, len(seen), 190)
}

func TestLooksLikeOrderNumber(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"ORD-MB3XK2LQ7Z4K", true},
		{"ORD-", false},
		{"ORD-7Z4K", false},
		{"ord-MB3XK2LQ7Z4K", false},
		{"ORD-MB3XK2LQ-7Z4K", false},
		{"6f1c2a9e-8d4b-4f3a-9b7e-2c5d8e1f0a3b", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeOrderNumber(tt.input))
		})
	}
}
