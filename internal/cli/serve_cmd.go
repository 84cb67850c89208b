package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/taskhub/internal/credential"
	"github.com/nhle/taskhub/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *App) *cobra.Command {
	var addr, token string

	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Serve the configured backend over the HTTP API",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotSetup: setupBackend},
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, ok := a.Backend.(server.Backend)
			if !ok {
				return fmt.Errorf("the %s backend cannot be served", a.Config.Backend.Kind)
			}
			if addr == "" {
				addr = a.Config.Server.Addr
			}
			if token == "" {
				var err error
				if token, err = lookupOptional(credential.KeyServerToken); err != nil {
					return err
				}
			}
			if token == "" {
				a.Log.Warn("serving without a bearer token", zap.String("addr", addr))
			}

			a.Registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			srv := server.New(backend, server.Config{Token: token, Registry: a.Registry, Logger: a.Log})

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return srv.Listen(addr)
			})
			g.Go(func() error {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				a.Log.Info("shutting down")
				return srv.Shutdown(sctx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token clients must send (default "+credential.EnvVar(credential.KeyServerToken)+" or keyring)")
	return cmd
}
