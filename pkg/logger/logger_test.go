package logger

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, logrus.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("chatty"))
}

func TestNew_FileUsesRotatingJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dualswap.log")
	log := New(Options{Level: "debug", File: path})

	_, ok := log.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)

	writer, ok := log.Out.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, writer.Filename)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestComponent(t *testing.T) {
	entry := Component(nil, "quote")
	assert.Equal(t, "quote", entry.Data["component"])
}

func TestTagSession(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	TagSession(log, "abc-123")

	Component(log, "quote").Info("hello")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "abc-123", hook.LastEntry().Data["session"])
	assert.Equal(t, "quote", hook.LastEntry().Data["component"])

	assert.NotPanics(t, func() { TagSession(nil, "x") })
}
