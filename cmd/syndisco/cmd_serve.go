package main

import (
	"github.com/spf13/cobra"
)

// newServeCmd creates the "syndisco serve" subcommand.
func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generated records over HTTP",
		Long: "Exposes the discussion and annotation directories, the run index and\n" +
			"Prometheus metrics until interrupted. Use 'discuss --serve' to also\n" +
			"stream live job events.",
		Args: cobra.NoArgs,
	}
	cmd.RunE = withApp(a, func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := a.openServices(ctx, true, addr)
		if err != nil {
			return err
		}
		defer svc.close()

		printServing(cmd.OutOrStdout(), svc.server)
		<-ctx.Done()
		return nil
	})
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
