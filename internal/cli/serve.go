package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/ideate/internal/apidoc"
	"github.com/mesh-intelligence/ideate/internal/httpapi"
	"github.com/mesh-intelligence/ideate/internal/seed"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API for every configured domain",
		Long: `Serve loads the domain files, opens the database and serves each domain
under /<domain>. Empty domains are seeded with sample entities unless
seeding is disabled. The OpenAPI description is served at /openapi.json.

Example:
  ideate serve --domain tasks.yaml --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := a.cfg
			for key, name := range map[string]string{
				cfgKeyAddr:        "addr",
				cfgKeySeed:        "seed",
				cfgKeyCORSOrigins: "cors-origins",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return sysError(err)
				}
			}

			specs, err := a.loadDomains()
			if err != nil {
				return err
			}

			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			domains := make([]httpapi.Domain, 0, len(specs))
			for _, spec := range specs {
				store, err := backend.Store(ctx, spec)
				if err != nil {
					return sysError(fmt.Errorf("open %s: %w", spec.Domain, err))
				}
				if v.GetBool(cfgKeySeed) {
					if _, err := seed.Run(ctx, a.logger, store); err != nil {
						return sysError(err)
					}
				}
				domains = append(domains, httpapi.Domain{Spec: spec, Store: store})
			}

			doc := apidoc.Build(Version, specs...)
			if err := doc.Validate(ctx); err != nil {
				a.logger.Warn("openapi document is invalid", "error", err)
			}

			handler, err := httpapi.NewHandler(a.logger, httpapi.Options{
				Version: Version,
				Ping:    backend.Ping,
				OpenAPI: doc,
			}, domains...)
			if err != nil {
				return err
			}

			a.logger.Info("serving domains", "count", len(domains), "addr", v.GetString(cfgKeyAddr))
			err = httpapi.Run(ctx, a.logger, httpapi.ServerConfig{
				Addr:            v.GetString(cfgKeyAddr),
				ShutdownTimeout: v.GetDuration(cfgKeyShutdownTimeout),
			}, httpapi.Wrap(a.logger, v.GetString(cfgKeyCORSOrigins), handler))
			if err != nil {
				return sysError(fmt.Errorf("serve: %w", err))
			}
			return nil
		},
	}
	cmd.Flags().String("addr", defaultAddr, "listen address")
	cmd.Flags().Bool("seed", true, "seed empty domains with sample entities")
	cmd.Flags().String("cors-origins", "*", "comma-separated allowed CORS origins")
	return cmd
}
