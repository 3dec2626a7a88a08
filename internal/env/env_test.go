package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(kvs []string, key string) (string, bool) {
	prefix := key + "="
	for _, kv := range kvs {
		if len(kv) > len(prefix) && kv[:len(prefix)] == prefix {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

func TestMergeIncludesOSEnvironment(t *testing.T) {
	t.Setenv("ENV_TEST_BASE", "from-os")
	e := New()
	got, ok := lookup(e.Merge(nil), "ENV_TEST_BASE")
	require.True(t, ok)
	assert.Equal(t, "from-os", got)
}

func TestMergePrecedence(t *testing.T) {
	t.Setenv("ENV_TEST_LAYER", "os")
	e := New()
	e.Set("ENV_TEST_LAYER", "global")

	// Global override beats the OS value.
	got, _ := lookup(e.Merge(nil), "ENV_TEST_LAYER")
	assert.Equal(t, "global", got)

	// Per-process beats both.
	got, _ = lookup(e.Merge([]string{"ENV_TEST_LAYER=proc"}), "ENV_TEST_LAYER")
	assert.Equal(t, "proc", got)
}

func TestMergeExpandsReferences(t *testing.T) {
	t.Setenv("ENV_TEST_HOME", "/home/u")
	e := New()
	got, ok := lookup(e.Merge([]string{"WORKDIR=${ENV_TEST_HOME}/work"}), "WORKDIR")
	require.True(t, ok)
	assert.Equal(t, "/home/u/work", got)
}

func TestMergeIgnoresMalformedEntries(t *testing.T) {
	e := New()
	out := e.Merge([]string{"NOEQUALS", "=emptykey", "GOOD=1"})
	got, ok := lookup(out, "GOOD")
	require.True(t, ok)
	assert.Equal(t, "1", got)
	_, ok = lookup(out, "NOEQUALS")
	assert.False(t, ok)
}
