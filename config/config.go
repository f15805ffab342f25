package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/codec"
	"github.com/mohitkumar/mnet/errs"
)

type Config struct {
	Addr  string
	Loops int // 0 = one per CPU
	Log   LogConfig
	Codec CodecConfig
	Child ChildConfig
}

type LogConfig struct {
	Level string
	// Development switches to the console encoder.
	Development bool
}

// CodecConfig configures the delimiter framing of the line server.
type CodecConfig struct {
	MaxFrameLength int
	FailFast       bool
	StripDelimiter bool
	// Delimiters are Go string literals without quotes ("\r\n", "\x00"), or
	// the names "line" and "nul".
	Delimiters    []string
	MaxCumulation int
}

// ChildConfig holds socket options for accepted (or dialled) channels.
type ChildConfig struct {
	TCPNoDelay     bool
	KeepAlive      bool
	ReadBufferSize int
	WriteTimeout   time.Duration
}

func Default() Config {
	return Config{
		Addr: "127.0.0.1:8007",
		Log:  LogConfig{Level: "info"},
		Codec: CodecConfig{
			MaxFrameLength: 8192,
			FailFast:       true,
			StripDelimiter: true,
			Delimiters:     []string{"line"},
		},
		Child: ChildConfig{TCPNoDelay: true, ReadBufferSize: 8192},
	}
}

func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return errs.ErrInvalidArgumentf("addr %q: %v", c.Addr, err)
	}
	if c.Loops < 0 {
		return errs.ErrInvalidArgumentf("loops must not be negative: %d", c.Loops)
	}
	if c.Child.ReadBufferSize < 0 {
		return errs.ErrInvalidArgumentf("read buffer size must not be negative: %d", c.Child.ReadBufferSize)
	}
	_, err := c.Codec.DelimiterConfig()
	return err
}

// DelimiterConfig resolves the delimiter names and literals.
func (c CodecConfig) DelimiterConfig() (codec.DelimiterConfig, error) {
	if c.MaxFrameLength <= 0 {
		return codec.DelimiterConfig{}, errs.ErrInvalidArgumentf("max frame length must be positive: %d", c.MaxFrameLength)
	}
	var delims [][]byte
	for _, d := range c.Delimiters {
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "line":
			delims = append(delims, codec.LineDelimiter()...)
		case "nul":
			delims = append(delims, codec.NulDelimiter()...)
		default:
			s, err := strconv.Unquote(`"` + d + `"`)
			if err != nil {
				return codec.DelimiterConfig{}, errs.ErrInvalidArgumentf("delimiter %q: %v", d, err)
			}
			if s == "" {
				return codec.DelimiterConfig{}, errs.ErrInvalidArgumentf("empty delimiter")
			}
			delims = append(delims, []byte(s))
		}
	}
	if len(delims) == 0 {
		return codec.DelimiterConfig{}, errs.ErrInvalidArgumentf("no delimiters")
	}
	return codec.DelimiterConfig{
		MaxFrameLength: c.MaxFrameLength,
		FailFast:       c.FailFast,
		StripDelimiter: c.StripDelimiter,
		Delimiters:     delims,
	}, nil
}

// Options maps the settings onto channel options. Zero values are left out.
func (c ChildConfig) Options() map[channel.Option]any {
	opts := map[channel.Option]any{
		channel.OptionTCPNoDelay: c.TCPNoDelay,
		channel.OptionKeepAlive:  c.KeepAlive,
	}
	if c.ReadBufferSize > 0 {
		opts[channel.OptionReadBufferSize] = c.ReadBufferSize
	}
	if c.WriteTimeout > 0 {
		opts[channel.OptionWriteTimeout] = c.WriteTimeout
	}
	return opts
}

type fileConfig struct {
	Addr  string `toml:"addr"`
	Loops int    `toml:"loops"`
	Log   struct {
		Level       string `toml:"level"`
		Development bool   `toml:"development"`
	} `toml:"log"`
	Codec struct {
		MaxFrameLength int      `toml:"max_frame_length"`
		FailFast       bool     `toml:"fail_fast"`
		StripDelimiter bool     `toml:"strip_delimiter"`
		Delimiters     []string `toml:"delimiters"`
		MaxCumulation  int      `toml:"max_cumulation"`
	} `toml:"codec"`
	Child struct {
		TCPNoDelay     bool   `toml:"tcp_no_delay"`
		KeepAlive      bool   `toml:"keep_alive"`
		ReadBufferSize int    `toml:"read_buffer_size"`
		WriteTimeout   string `toml:"write_timeout"`
	} `toml:"child"`
}

// Load reads a TOML file over Default. Keys absent from the file keep their
// defaults; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errs.ErrInvalidArgumentf("unknown config keys: %v", undecoded)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("loops") {
		cfg.Loops = raw.Loops
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "development") {
		cfg.Log.Development = raw.Log.Development
	}
	if meta.IsDefined("codec", "max_frame_length") {
		cfg.Codec.MaxFrameLength = raw.Codec.MaxFrameLength
	}
	if meta.IsDefined("codec", "fail_fast") {
		cfg.Codec.FailFast = raw.Codec.FailFast
	}
	if meta.IsDefined("codec", "strip_delimiter") {
		cfg.Codec.StripDelimiter = raw.Codec.StripDelimiter
	}
	if meta.IsDefined("codec", "delimiters") {
		cfg.Codec.Delimiters = raw.Codec.Delimiters
	}
	if meta.IsDefined("codec", "max_cumulation") {
		cfg.Codec.MaxCumulation = raw.Codec.MaxCumulation
	}
	if meta.IsDefined("child", "tcp_no_delay") {
		cfg.Child.TCPNoDelay = raw.Child.TCPNoDelay
	}
	if meta.IsDefined("child", "keep_alive") {
		cfg.Child.KeepAlive = raw.Child.KeepAlive
	}
	if meta.IsDefined("child", "read_buffer_size") {
		cfg.Child.ReadBufferSize = raw.Child.ReadBufferSize
	}
	if meta.IsDefined("child", "write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Child.WriteTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.Child.WriteTimeout = d
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
