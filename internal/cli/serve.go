package cli

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"north/internal/service"
	"north/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API over HTTP",
		Example: strings.TrimSpace(`
# Serve on the configured address (default 127.0.0.1:7070)
north serve

# Serve read-only on another port
north serve --addr 127.0.0.1:8080 --read-only
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listen := strings.TrimSpace(addr)
			if listen == "" {
				listen = app.cfg.Listen
			}
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				e := web.New(svc, web.ServerConfig{Addr: listen, ReadOnly: readOnly}, app.log)
				return web.Serve(ctx, e, listen, app.log)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides the config file)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Reject requests that change data")
	return cmd
}
