package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatJSON, `"msg":"hi"`},
		{FormatText, "msg=hi"},
		{FormatConsole, "hi"},
		{"", `"msg":"hi"`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(tt.format, "info", &buf)
			require.NoError(t, err)

			log.Info(context.Background(), "hi")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(FormatJSON, "warn", &buf)
	require.NoError(t, err)

	log.Info(context.Background(), "skip")
	log.Warn(context.Background(), "keep")

	out := buf.String()
	assert.NotContains(t, out, "skip")
	assert.Contains(t, out, "keep")
}

func TestNew_Errors(t *testing.T) {
	_, err := New("xml", "info", &bytes.Buffer{})
	require.Error(t, err)

	_, err = New(FormatJSON, "loud", &bytes.Buffer{})
	require.Error(t, err)

	_, err = New(FormatConsole, "loud", &bytes.Buffer{})
	require.Error(t, err)
}

func TestNew_SlogAddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(FormatText, "debug", &buf)
	require.NoError(t, err)

	ctx := WithCorrelationID(context.Background(), "abc123")
	log.With("module", "http").Debug(ctx, "req")

	out := buf.String()
	assert.True(t, strings.Contains(out, "correlation_id=abc123"), out)
	assert.Contains(t, out, "module=http")
}

func TestCorrelationID_Absent(t *testing.T) {
	_, ok := CorrelationID(context.Background())
	assert.False(t, ok)

	_, ok = CorrelationID(WithCorrelationID(context.Background(), ""))
	assert.False(t, ok)
}
