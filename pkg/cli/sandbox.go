package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/farmcart/farmcart/internal/fakeapi"
	"github.com/farmcart/farmcart/pkg/cli/internal/output"
	"github.com/farmcart/farmcart/pkg/logging"
)

func newSandboxCmd(g *globalFlags) *cobra.Command {
	var (
		addr    string
		latency time.Duration
		empty   bool
	)
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run an in-memory marketplace API for local testing",
		Long: `Run an in-memory implementation of the marketplace API under /api.

Demo accounts (one per role) and a small catalogue are loaded unless --empty is
given. Point the client at it with --api-url or FARMCART_API_URL.`,
		Example: `  farmcart sandbox --addr 127.0.0.1:8080
  FARMCART_API_URL=http://127.0.0.1:8080/api farmcart login --phone 0100000001 --password farmcart`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := g.logLevel
			if level == "" {
				level = "info"
			}
			logger := logging.New(logging.Config{
				Level:  logging.ParseLevel(level),
				Format: logging.FormatText,
				Output: cmd.ErrOrStderr(),
			})

			api := fakeapi.New(fakeapi.WithLogger(logger), fakeapi.WithLatency(latency))
			if !empty {
				fakeapi.SeedDemo(api)
			}
			mux := http.NewServeMux()
			mux.Handle("/api/", http.StripPrefix("/api", api.Handler()))

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", addr, err)
			}
			srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()

			w := cmd.OutOrStdout()
			output.Success(w, fmt.Sprintf("Sandbox API listening on http://%s/api", ln.Addr()))
			if !empty {
				tw := output.Table(w)
				fmt.Fprintln(tw, "ROLE\tPHONE\tEMAIL\tPASSWORD")
				for _, u := range fakeapi.DemoUsers {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Role, u.Phone, u.Email, fakeapi.DemoPassword)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Delay added to every response")
	cmd.Flags().BoolVar(&empty, "empty", false, "Start without demo data")
	return cmd
}
