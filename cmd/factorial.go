package cmd

import (
	"fmt"

	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/example/factorial"
	"github.com/spf13/cobra"
)

func newFactorialCmd() *cobra.Command {
	factorialCmd := &cobra.Command{
		Use:   "factorial",
		Short: "Factorial server and client over magic-length frames",
	}

	factorialCmd.AddCommand(&cobra.Command{
		Use:   "server",
		Short: "Answer every number with the running factorial",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := NewCommandHelper(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return h.Serve(ctx, func(ch *channel.Channel) error {
				return factorial.InitPipeline(ch, h.Codec.MaxFrameLength, factorial.NewServerHandler(h.logger))
			})
		},
	})

	var count int
	client := &cobra.Command{
		Use:   "client",
		Short: "Send 1..count and print count!",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := NewCommandHelper(cfg)
			if err != nil {
				return err
			}
			handler, err := factorial.NewClientHandler(count, h.logger)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			_, b, err := h.Dial(ctx, func(ch *channel.Channel) error {
				return factorial.InitPipeline(ch, h.Codec.MaxFrameLength, handler)
			})
			if err != nil {
				return err
			}
			defer h.shutdown(b)

			n, err := handler.Factorial(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Factorial of %d is: %s\n", count, n)
			return nil
		},
	}
	client.Flags().IntVar(&count, "count", 1000, "compute count!")
	factorialCmd.AddCommand(client)

	return factorialCmd
}
