package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mnet.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
addr = "0.0.0.0:9000"

[codec]
fail_fast = false
delimiters = ["nul", "\\r\\n"]

[child]
write_timeout = "2s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:9000", cfg.Addr)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.Codec.FailFast)
	require.True(t, cfg.Codec.StripDelimiter)
	require.Equal(t, 8192, cfg.Codec.MaxFrameLength)
	require.Equal(t, 2*time.Second, cfg.Child.WriteTimeout)

	dc, err := cfg.Codec.DelimiterConfig()
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0}, []byte("\r\n")}, dc.Delimiters)
	require.False(t, dc.FailFast)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "adr = \"127.0.0.1:1\"\n"))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "[codec]\nmax_frame_length = 0\n"))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Load(writeConfig(t, "[child]\nwrite_timeout = \"soon\"\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestDelimiterConfig(t *testing.T) {
	dc, err := CodecConfig{MaxFrameLength: 10, Delimiters: []string{"line"}}.DelimiterConfig()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("\r\n"), []byte("\n")}, dc.Delimiters)

	_, err = CodecConfig{MaxFrameLength: 10}.DelimiterConfig()
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = CodecConfig{MaxFrameLength: 10, Delimiters: []string{""}}.DelimiterConfig()
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = CodecConfig{MaxFrameLength: 10, Delimiters: []string{`\q`}}.DelimiterConfig()
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestChildOptions(t *testing.T) {
	opts := ChildConfig{TCPNoDelay: true, ReadBufferSize: 1024}.Options()
	require.Equal(t, map[channel.Option]any{
		channel.OptionTCPNoDelay:     true,
		channel.OptionKeepAlive:      false,
		channel.OptionReadBufferSize: 1024,
	}, opts)
}
