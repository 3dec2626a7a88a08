package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"build", "build"},
		{"my build #3", "my_build__3"},
		{"träning", "tr_ning"},
		{"___", "job"},
		{"", "job"},
		{"a-b_c9", "a-b_c9"},
		{"_pad_", "pad"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeLabel(tc.in), "input %q", tc.in)
	}
}

func TestNewIDUsesLabel(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewID("deploy", []string{"sleep", "5"}, now)
	assert.Equal(t, "deploy-1700000000123", id)
}

func TestNewIDFallsBackToExecutable(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewID("", []string{"/usr/bin/python3", "script.py"}, now)
	assert.Equal(t, "python3-1700000000123", id)
}

func TestNewIDEmptyEverything(t *testing.T) {
	now := time.UnixMilli(42)
	assert.Equal(t, "job-42", NewID("", nil, now))
}
