package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchFlagsDefaults(t *testing.T) {
	f, err := parseSearchFlags([]string{"-e", "brave", "golang"})
	require.NoError(t, err)

	assert.Equal(t, "brave", f.engine)
	assert.Equal(t, "json", f.format)
	assert.Nil(t, f.offset, "offset must stay unset when the flag is absent")
	assert.False(t, f.noCache)
	assert.Equal(t, "golang", f.query)
	assert.True(t, strings.HasSuffix(f.config, "config.yaml"))
}

func TestParseSearchFlagsLongNames(t *testing.T) {
	f, err := parseSearchFlags([]string{"--engine", "perplexity", "--format", "text", "--config", "/tmp/ws.yaml", "what is go"})
	require.NoError(t, err)

	assert.Equal(t, "perplexity", f.engine)
	assert.Equal(t, "text", f.format)
	assert.Equal(t, "/tmp/ws.yaml", f.config)
	assert.Equal(t, "what is go", f.query)
}

func TestParseSearchFlagsOffsetZeroIsExplicit(t *testing.T) {
	f, err := parseSearchFlags([]string{"-e", "brave", "--offset", "0", "golang"})
	require.NoError(t, err)

	require.NotNil(t, f.offset)
	assert.Equal(t, 0, *f.offset)
}

func TestParseSearchFlagsOffsetValue(t *testing.T) {
	f, err := parseSearchFlags([]string{"-e", "brave", "--offset", "3", "golang"})
	require.NoError(t, err)

	require.NotNil(t, f.offset)
	assert.Equal(t, 3, *f.offset)
}

func TestParseSearchFlagsJoinsQueryWords(t *testing.T) {
	// An unquoted multi-word query still works.
	f, err := parseSearchFlags([]string{"-e", "brave", "golang", "error", "handling"})
	require.NoError(t, err)
	assert.Equal(t, "golang error handling", f.query)
}

func TestParseSearchFlagsNoCache(t *testing.T) {
	f, err := parseSearchFlags([]string{"-e", "brave", "--no-cache", "golang"})
	require.NoError(t, err)
	assert.True(t, f.noCache)
}

func TestParseSearchFlagsEmptyQuery(t *testing.T) {
	f, err := parseSearchFlags([]string{"-e", "brave"})
	require.NoError(t, err)
	assert.Empty(t, f.query)
}
