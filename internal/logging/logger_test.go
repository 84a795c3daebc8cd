package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/2beens/boardposts/pkg"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	for level, expected := range map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"ERROR":   logrus.ErrorLevel,
		"fatal":   logrus.FatalLevel,
		"info":    logrus.InfoLevel,
		"Trace":   logrus.TraceLevel,
		"warn":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"":        logrus.InfoLevel,
		"yolo":    logrus.InfoLevel,
	} {
		assert.Equal(t, expected, GetLevel(level), level)
	}
}

func TestSetup_Stdout(t *testing.T) {
	out := Setup(LoggerSetupParams{LogLevel: "debug"})
	assert.Equal(t, os.Stdout, out)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func TestSetup_FileAndStdout(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "service")

	out := Setup(LoggerSetupParams{
		LogFileName:   logFile,
		LogToStdout:   true,
		LogLevel:      "info",
		LogFormatJSON: true,
	})
	t.Cleanup(func() {
		logrus.SetOutput(os.Stdout)
		logrus.SetFormatter(&logrus.TextFormatter{})
	})

	combined, ok := out.(*pkg.CombinedWriter)
	require.True(t, ok)
	assert.Len(t, combined.Writers, 2)

	logrus.Info("hello from test")
	content, err := os.ReadFile(logFile + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"hello from test"`)
}

func TestSentryLevel(t *testing.T) {
	assert.Equal(t, "fatal", string(sentryLevel(logrus.PanicLevel)))
	assert.Equal(t, "error", string(sentryLevel(logrus.ErrorLevel)))
	assert.Equal(t, "warning", string(sentryLevel(logrus.WarnLevel)))
	assert.Equal(t, "debug", string(sentryLevel(logrus.TraceLevel)))
}
