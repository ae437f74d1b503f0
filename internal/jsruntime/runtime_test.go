package jsruntime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStderrLogWriterSplitsOnNewlines(t *testing.T) {
	w := &stderrLogWriter{}
	n, err := w.Write([]byte("first line\nsecond "))
	require.NoError(t, err)
	require.Equal(t, len("first line\nsecond "), n)
	require.Equal(t, []byte("second "), w.buf)

	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.Empty(t, w.buf)
}

func TestStderrLogWriterIgnoresEmptyLines(t *testing.T) {
	w := &stderrLogWriter{}
	_, err := w.Write([]byte("\n\n"))
	require.NoError(t, err)
	require.Empty(t, w.buf)
}
