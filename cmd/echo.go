package cmd

import (
	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/example/echo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newEchoCmd() *cobra.Command {
	echoCmd := &cobra.Command{
		Use:   "echo",
		Short: "Echo server and ping-pong client",
	}

	echoCmd.AddCommand(&cobra.Command{
		Use:   "server",
		Short: "Echo every received byte back to the peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := NewCommandHelper(cfg)
			if err != nil {
				return err
			}
			handler := echo.NewServerHandler(h.logger)
			ctx, stop := signalContext()
			defer stop()
			return h.Serve(ctx, func(ch *channel.Channel) error {
				return ch.Pipeline().AddLast("echo", handler)
			})
		},
	})

	var size int
	client := &cobra.Command{
		Use:   "client",
		Short: "Send a first message and echo the replies until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := NewCommandHelper(cfg)
			if err != nil {
				return err
			}
			handler, err := echo.NewClientHandler(size, h.logger)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			ch, b, err := h.Dial(ctx, func(ch *channel.Channel) error {
				return ch.Pipeline().AddLast("echo", handler)
			})
			if err != nil {
				return err
			}
			defer h.shutdown(b)

			select {
			case <-ctx.Done():
			case <-ch.CloseFuture().Done():
			}
			h.logger.Info("echo client done", zap.Int64("bytes", handler.Received()))
			return nil
		},
	}
	client.Flags().IntVar(&size, "size", 256, "size of the first message")
	echoCmd.AddCommand(client)

	return echoCmd
}
