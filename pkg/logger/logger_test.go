package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextualLoggers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", JSON: true, Output: &buf})

	log.WithComponent("attachments").WithRoom("room-V1").Info("Attachment stored")
	assert.Same(t, log, log.WithRoom(""))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Attachment stored", record["msg"])
	assert.Equal(t, "attachments", record["component"])
	assert.Equal(t, "room-V1", record["room_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", JSON: true, Output: &buf})

	log.Info("quiet")
	assert.Zero(t, buf.Len())

	log.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}
