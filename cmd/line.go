package cmd

import (
	"github.com/mohitkumar/mnet/example/line"
	"github.com/spf13/cobra"
)

func newLineCmd() *cobra.Command {
	lineCmd := &cobra.Command{
		Use:   "line",
		Short: "Line-oriented upper-casing server",
	}
	lineCmd.AddCommand(&cobra.Command{
		Use:   "server",
		Short: "Reply to every delimited line with its upper-cased copy",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := NewCommandHelper(cfg)
			if err != nil {
				return err
			}
			initPipeline, err := line.Initializer(h.Codec, h.logger)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return h.Serve(ctx, initPipeline)
		},
	})
	return lineCmd
}
