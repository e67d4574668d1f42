package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
)

func newServeCmd() *cobra.Command {
	var httpPort, grpcPort int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the featurizer over HTTP and gRPC until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http-port") {
				cliCtx.Config.Server.HTTP.Port = httpPort
			}
			if cmd.Flags().Changed("grpc-port") {
				cliCtx.Config.Server.GRPC.Port = grpcPort
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := cliCtx.Runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			cliCtx.Logger.Info("serving",
				logging.Int("http_port", cliCtx.Config.Server.HTTP.Port),
				logging.Int("grpc_port", cliCtx.Config.Server.GRPC.Port))
			return rt.Serve(ctx, Version)
		},
	}
	cmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP port (overrides config)")
	cmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "gRPC port (overrides config)")
	return cmd
}
