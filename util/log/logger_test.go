package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestFormatPlain(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2019, 3, 4, 5, 6, 7, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "store is slow",
		Data: logrus.Fields{
			"path": "/user/ali",
			"err":  errors.New("timeout"),
			"op":   "stat",
		},
	}

	flf := &FancyLogFormatter{UseColors: false}
	data, err := flf.Format(entry)
	require.Nil(t, err)

	line := string(data)
	require.True(t, strings.HasPrefix(line, "04.03.2019/05:06:07 ⚠"), line)
	require.True(t, strings.HasSuffix(line, "store is slow [err=timeout op=stat path=/user/ali]\n"), line)
	require.NotContains(t, line, "\x1b[")
}

func TestFormatColored(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Now(),
		Level:   logrus.ErrorLevel,
		Message: "boom",
	}

	flf := &FancyLogFormatter{UseColors: true}
	data, err := flf.Format(entry)
	require.Nil(t, err)
	require.Contains(t, string(data), "\x1b[")
	require.Contains(t, string(data), "boom")
}

func TestSetupNoTerminal(t *testing.T) {
	defer logrus.SetOutput(logrus.StandardLogger().Out)

	buf := &bytes.Buffer{}
	require.Nil(t, Setup(buf, "warning", true))
	defer logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("hidden")
	logrus.Warn("shown")

	// A buffer is never a terminal.
	require.NotContains(t, buf.String(), "\x1b[")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	require.NotNil(t, Setup(buf, "loud", false))
}

func TestWriter(t *testing.T) {
	defer logrus.SetOutput(logrus.StandardLogger().Out)

	buf := &bytes.Buffer{}
	logrus.SetOutput(buf)

	w := &Writer{Level: logrus.ErrorLevel}
	n, err := w.Write([]byte("http: TLS handshake error\n"))
	require.Nil(t, err)
	require.Equal(t, 26, n)
	require.Contains(t, buf.String(), "http: TLS handshake error")
}
