package businessflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		part, total int64
		want        float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{3, -1, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 8, 12.5},
		{10, 10, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.part, tt.total), "%d/%d", tt.part, tt.total)
	}
}

func TestRoundRate(t *testing.T) {
	assert.Equal(t, 19.44, RoundRate(19.444444))
	assert.Equal(t, 0.0, RoundRate(0))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{name: "no header", remote: "10.0.0.1", want: "10.0.0.1"},
		{name: "single", xff: "203.0.113.7", remote: "10.0.0.1", want: "203.0.113.7"},
		{name: "chain", xff: " 203.0.113.7 , 70.41.3.18, 150.172.238.178", remote: "10.0.0.1", want: "203.0.113.7"},
		{name: "empty first", xff: " ,70.41.3.18", remote: "10.0.0.1", want: "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientIP(tt.xff, tt.remote))
		})
	}
}

func TestBusinessErrorWraps(t *testing.T) {
	err := NewBusinessError("PROVIDER_UNAVAILABLE", "ses down", ErrProviderUnavailable)
	assert.True(t, IsProviderUnavailable(err))
	assert.Equal(t, "ses down: email provider unavailable", err.Error())

	plain := NewBusinessErrorf("X", "bad %s", nil, "thing")
	assert.Equal(t, "bad thing", plain.Error())
	assert.False(t, errors.Is(plain, ErrProviderUnavailable))
}
