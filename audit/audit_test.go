package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRead(t *testing.T) {
	ctx := context.Background()
	log := NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))

	require.NoError(t, log.Record(ctx, "certify", map[string]any{"artifact": "add", "reviewer": "alice"}))
	require.NoError(t, log.Record(ctx, "finalize", map[string]any{"artifact": "add"}))

	records, warnings, err := log.Read(ctx, -1)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, records, 2)
	assert.Equal(t, "certify", records[0].Action)
	assert.Equal(t, "alice", records[0].Data["reviewer"])
	assert.Equal(t, "finalize", records[1].Action)
	assert.NotEmpty(t, records[0].Timestamp)
}

func TestReadLimit(t *testing.T) {
	ctx := context.Background()
	log := NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	for _, action := range []string{"certify", "agent-certify", "finalize"} {
		require.NoError(t, log.Record(ctx, action, nil))
	}

	records, _, err := log.Read(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "agent-certify", records[0].Action)
	assert.Equal(t, "finalize", records[1].Action)
}

func TestReadSkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log := NewLog(path)
	require.NoError(t, log.Record(ctx, "certify", nil))

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = file.WriteString("not json at all\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.NoError(t, log.Record(ctx, "finalize", nil))

	records, warnings, err := log.Read(ctx, -1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "malformed audit log line")
}

func TestReadMissingFile(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	records, warnings, err := log.Read(context.Background(), -1)
	require.NoError(t, err)
	assert.Nil(t, records)
	assert.Nil(t, warnings)
}
