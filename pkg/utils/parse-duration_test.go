package utils

import (
	"testing"
	"time"
)

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		input      string
		expected   time.Duration
		shouldFail bool
	}{
		{"", 0, true},
		{"1", 0, true},
		{"1s", time.Second, false},
		{"90s", 90 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"1h", time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"1.5d", 36 * time.Hour, false},
		{"2d6h", 54 * time.Hour, false},
		{"d", 0, true},
		{"1dx", 0, true},
		{"1w", 0, true}, // not supported
		{"1ms", time.Millisecond, false},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			result, err := ParseDurationString(test.input)
			if test.shouldFail {
				if err == nil {
					t.Errorf("expected error for input %s, but got nil", test.input)
				}
				return
			}
			if err != nil {
				t.Errorf("expected no error for input %s, but got %s", test.input, err)
			}
			if result != test.expected {
				t.Errorf("expected %s for input %s, but got %s", test.expected, test.input, result)
			}
		})
	}
}
