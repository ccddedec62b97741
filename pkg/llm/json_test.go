package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONPlainObject(t *testing.T) {
	var out map[string]string
	err := ExtractJSON(`{"category":"network"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "network", out["category"])
}

func TestExtractJSONStripsCodeFence(t *testing.T) {
	var out map[string]string
	err := ExtractJSON("```json\n{\"category\":\"network\"}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "network", out["category"])
}

func TestExtractJSONWithLeadingProse(t *testing.T) {
	var out map[string]string
	err := ExtractJSON(`Here is the result: {"category":"network"} -- hope that helps`, &out)
	require.NoError(t, err)
	assert.Equal(t, "network", out["category"])
}

func TestExtractJSONHonorsNestedBraces(t *testing.T) {
	var out map[string]map[string]string
	err := ExtractJSON(`{"narrative":{"tone":"confident"}}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "confident", out["narrative"]["tone"])
}

func TestExtractJSONBraceInsideString(t *testing.T) {
	var out map[string]string
	err := ExtractJSON(`{"quick_summary":"seeing errors like {timeout}"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "seeing errors like {timeout}", out["quick_summary"])
}

func TestExtractJSONNoObjectIsParseError(t *testing.T) {
	var out map[string]string
	err := ExtractJSON("no object here", &out)
	require.Error(t, err)
}

func TestExtractJSONMalformedIsParseError(t *testing.T) {
	var out map[string]string
	err := ExtractJSON(`{"category": }`, &out)
	require.Error(t, err)
}
