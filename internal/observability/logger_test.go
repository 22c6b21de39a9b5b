package observability_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/askeland/vaspin/internal/config"
	"github.com/askeland/vaspin/internal/observability"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer.
type syncBuffer struct {
	bytes.Buffer
}

func (b *syncBuffer) Sync() error { return nil }

func TestGetLogger_BeforeInitializeIsNop(t *testing.T) {
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	logger := observability.GetLogger()
	assert.NotNil(t, logger)
	// A nop logger must swallow this without panicking.
	logger.Info("into the void")
}

func TestInitialize_WritesToConsoleWriter(t *testing.T) {
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	buf := &syncBuffer{}
	observability.Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "vaspin-test",
	}, zapcore.AddSync(buf))

	observability.GetLogger().Info("deck written")
	assert.Contains(t, buf.String(), "deck written")
	assert.Contains(t, buf.String(), "vaspin-test")
}

func TestInitialize_OnlyOnce(t *testing.T) {
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	observability.Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(first))
	observability.Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(second))

	observability.GetLogger().Info("once only")
	assert.Contains(t, first.String(), "once only")
	assert.Empty(t, second.String())
}

func TestInitialize_BadLevelFallsBackToInfo(t *testing.T) {
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	buf := &syncBuffer{}
	observability.Initialize(config.LoggerConfig{Level: "shouting", Format: "json"}, zapcore.AddSync(buf))

	observability.GetLogger().Debug("hidden")
	observability.GetLogger().Info("visible")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}
