package upload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentRange(t *testing.T) {
	tests := []struct {
		name       string
		start      int64
		length     int64
		total      int64
		totalKnown bool
		want       string
	}{
		{"known total middle chunk", 0, 100, 500, true, "bytes 0-99/500"},
		{"known total last chunk", 400, 100, 500, true, "bytes 400-499/500"},
		{"unknown total", 0, 100, 0, false, "bytes 0-99/*"},
		{"empty known-zero payload", 0, 0, 0, true, "bytes */0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contentRange(tt.start, tt.length, tt.total, tt.totalKnown))
		})
	}
}

func TestStatusQueryRange(t *testing.T) {
	assert.Equal(t, "bytes */1000", statusQueryRange(1000, true))
	assert.Equal(t, "bytes */*", statusQueryRange(0, false))
}

func TestParseRangeHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    int64
		wantErr bool
	}{
		{"simple", "bytes 0-99", 100, false},
		{"with total", "bytes 0-999/2000", 1000, false},
		{"leading whitespace", "  bytes 0-9", 10, false},
		{"missing prefix", "0-99", 0, true},
		{"missing dash", "bytes 099", 0, true},
		{"non-decimal end", "bytes 0-abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRangeHeader(tt.header)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrProtocolViolation))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
