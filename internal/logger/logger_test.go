package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		lines = append(lines, m)
	}
	return lines
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: "info", Format: "json", Output: &buf, ServiceName: "newstagger-test"})

	ctx := log.WithContext(context.Background())
	ctx = SetBatchID(ctx, "batch-1")
	ctx = SetRecordID(ctx, "N01")
	assert.Equal(t, "batch-1", GetBatchID(ctx))

	CtxInfo(ctx, "processed %d", 3)
	CtxDebug(ctx, "hidden")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "processed 3", lines[0]["message"])
	assert.Equal(t, "batch-1", lines[0][FieldBatchID])
	assert.Equal(t, "N01", lines[0][FieldRecordID])
	assert.Equal(t, "newstagger-test", lines[0]["service"])
	assert.Equal(t, "info", lines[0]["level"])
}

func TestEntryMetricFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: "debug", Output: &buf})
	ctx := log.WithContext(context.Background())

	With(Fields{"failed": 1}).WithCount(10).WithDuration(250).WithStatus("completed").Warn(ctx, "Batch completed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.EqualValues(t, 10, lines[0][FieldCount])
	assert.EqualValues(t, 250, lines[0][FieldDurationMs])
	assert.Equal(t, "completed", lines[0][FieldStatus])
	assert.EqualValues(t, 1, lines[0]["failed"])
	assert.Equal(t, "warning", lines[0]["level"])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Empty(t, GetBatchID(context.Background()))
}
