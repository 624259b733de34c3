package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "debug", Service: "quiz", Output: &buf})
	log.WithField("code", "ABCDE").Debug("joined")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "quiz", line["service"])
	assert.Equal(t, "ABCDE", line["code"])
	assert.Equal(t, "joined", line["message"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "chatty", Format: "text", Output: &buf})
	log.Debug("hidden")
	assert.Zero(t, buf.Len())
	log.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
