package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"screenpilot/internal/config"
)

func TestInitializeConsole(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "screenpilot",
		Colors:      config.ColorConfig{Info: "green"},
	}, zapcore.AddSync(&buf))

	GetLogger().Named("safety").Info("Emergency stop cleared")
	Sync()

	out := buf.String()
	assert.Contains(t, out, colorGreen+"INFO"+colorReset)
	assert.Contains(t, out, "screenpilot.safety.")
	assert.Contains(t, out, "Emergency stop cleared")
}

func TestInitializeJSONAndLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "warn", Format: "json", ServiceName: "sp"}, zapcore.AddSync(&buf))

	logger := GetLogger()
	logger.Info("dropped")
	logger.Warn("Action denied", zap.String("risk", "Critical"))
	Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Action denied", entry["msg"])
	assert.Equal(t, "Critical", entry["risk"])
	assert.Equal(t, "sp", entry["logger"])
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&first))
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&second))

	GetLogger().Info("hello")
	assert.NotEmpty(t, first.String())
	assert.Empty(t, second.String())
}

func TestFileSink(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	path := filepath.Join(t.TempDir(), "screenpilot.log")
	var console bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&console))

	GetLogger().Info("written to both")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to both"`)
	assert.Contains(t, console.String(), "written to both")
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	assert.NotNil(t, GetLogger())
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "chatty", Format: "json"}, zapcore.AddSync(&buf))
	GetLogger().Debug("hidden")
	GetLogger().Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
