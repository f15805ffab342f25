// Package line implements a line-oriented server that answers every line with
// its upper-cased copy.
package line

import (
	"errors"
	"strings"

	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/codec"
	"github.com/mohitkumar/mnet/config"
	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

// Handler replies to each decoded line. Oversized lines are reported to the
// peer and the connection stays open.
type Handler struct {
	channel.InboundHandlerAdapter
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger}
}

func (*Handler) Sharable() {}

func (h *Handler) ChannelRead(ctx *channel.Context, msg any) error {
	s, ok := msg.(string)
	if !ok {
		return errs.ErrUnsupportedMessagef(msg)
	}
	return ctx.WriteAndFlush(strings.ToUpper(s) + "\n")
}

func (h *Handler) ExceptionCaught(ctx *channel.Context, err error) error {
	var tooLong *errs.FrameTooLongError
	if errors.As(err, &tooLong) {
		h.logger.Debug("dropped oversized line", zap.Error(err))
		return ctx.WriteAndFlush("ERR " + tooLong.Error() + "\n")
	}
	h.logger.Warn("unexpected exception from downstream", zap.Error(err))
	return ctx.Close()
}

// Initializer returns a channel initializer that installs the line codec
// described by cfg in front of a shared Handler.
func Initializer(cfg config.CodecConfig, logger *zap.Logger) (func(ch *channel.Channel) error, error) {
	dcfg, err := cfg.DelimiterConfig()
	if err != nil {
		return nil, err
	}
	// Validate once so per-connection construction cannot fail on config.
	if _, err := codec.NewDelimiterDecoder(dcfg); err != nil {
		return nil, err
	}
	var opts []codec.Option
	if cfg.MaxCumulation > 0 {
		opts = append(opts, codec.WithMaxCumulation(cfg.MaxCumulation))
	}
	opts = append(opts, codec.WithLogger(logger))

	handler := NewHandler(logger)
	decoder := codec.NewStringDecoder()
	encoder := codec.NewEncoderHandler(codec.StringEncoder())
	return func(ch *channel.Channel) error {
		frames, err := codec.NewDelimiterFrameDecoder(dcfg, opts...)
		if err != nil {
			return err
		}
		p := ch.Pipeline()
		if err := p.AddLast("frames", frames); err != nil {
			return err
		}
		if err := p.AddLast("string-decoder", decoder); err != nil {
			return err
		}
		if err := p.AddLast("string-encoder", encoder); err != nil {
			return err
		}
		return p.AddLast("handler", handler)
	}, nil
}
