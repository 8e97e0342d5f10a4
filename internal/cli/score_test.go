package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("2025-03-31")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)))

	_, err = parseDate("31-03-2025")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "score", "show", "export", "policies", "benchmark-key", "notify-test", "version"} {
		assert.True(t, names[want], want)
	}
}
