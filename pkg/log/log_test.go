package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStructuredHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Infow("document processed", "documentId", 7)
	Error("pipeline failed", errors.New("boom"))
	Debugf("page %d", 3)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, "document processed", entries[0].Message)
	assert.Equal(t, int64(7), entries[0].ContextMap()["documentId"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, "page 3", entries[2].Message)
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	Init("verbose", "console", "")
	t.Cleanup(func() { SetLogger(zap.NewNop()) })
	assert.False(t, sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, sugar.Desugar().Core().Enabled(zapcore.InfoLevel))
}
