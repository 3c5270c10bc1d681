package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/farmcart/farmcart/pkg/cli/internal/output"
	"github.com/farmcart/farmcart/pkg/config"
	"github.com/farmcart/farmcart/pkg/dispatch"
	"github.com/farmcart/farmcart/pkg/logging"
	"github.com/farmcart/farmcart/pkg/marketplace"
	"github.com/farmcart/farmcart/pkg/resource"
	"github.com/farmcart/farmcart/pkg/session"
)

// app is everything one command invocation needs: the resolved config, the
// logger and a marketplace bound to the persisted session.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	market *marketplace.Marketplace
	json   bool
	out    io.Writer
	errOut io.Writer

	metrics   *resource.MetricsObserver
	logCloser io.Closer
}

func openApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	cfg, err := config.Resolve(g.options())
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.Open(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: cmd.ErrOrStderr(),
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := session.OpenSQLite(cfg.SessionPath)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	metrics := resource.NewMetricsObserver()
	market, err := marketplace.New(cfg,
		marketplace.WithTokenStore(tokens),
		marketplace.WithLogger(logger),
		marketplace.WithObserver(metrics),
	)
	if err != nil {
		_ = tokens.Close()
		_ = logCloser.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		market:    market,
		json:      g.jsonOutput,
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
		metrics:   metrics,
		logCloser: logCloser,
	}
	if err := a.adoptSessionRole(cmd.Context()); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// adoptSessionRole switches to the role carried by the stored token unless
// the role was chosen explicitly by flag or environment.
func (a *app) adoptSessionRole(ctx context.Context) error {
	switch a.cfg.Sources["role"] {
	case config.SourceFlag, config.SourceEnv:
		return nil
	}
	_, claims, err := session.Current(ctx, a.market.Tokens())
	if err != nil {
		if !errors.Is(err, session.ErrNoToken) {
			a.logger.Debug("ignoring stored session", "error", err)
		}
		return nil
	}
	role, err := config.ParseRole(claims.Role)
	if err != nil || role == a.market.Role() {
		return nil
	}
	a.logger.Debug("using role from session", "role", string(role))
	return a.market.SwitchRole(role)
}

func (a *app) Close() error {
	m := a.metrics.Snapshot()
	a.logger.Debug("store metrics",
		"pending", m.Pending,
		"fulfilled", m.Fulfilled,
		"rejected", m.Rejected,
		"superseded", m.Superseded,
		"discarded", m.Discarded,
		"resets", m.Resets,
		"latency", m.TotalLatency,
	)
	return errors.Join(a.market.Close(), a.logCloser.Close())
}

// settle runs the effects of a dispatch result and shows the category status
// on the notification surface, then acknowledges it.
func (a *app) settle(ctx context.Context, name string, cat resource.Category, res *dispatch.Result, opErr error) error {
	defer a.market.ClearStatus(name, cat)
	if opErr != nil {
		return opErr
	}
	if res.Discarded {
		return fmt.Errorf("%s %s was superseded", name, cat)
	}
	if err := dispatch.RunEffects(ctx, res.Effects); err != nil {
		output.Warn(a.errOut, "%v", err)
	}
	st := a.market.SelectStatus(name, cat)
	if !a.json && st.Success && st.Message != "" && cat != resource.FetchAll && cat != resource.FetchOne {
		output.Success(a.out, st.Message)
	}
	return nil
}

// withApp wraps a RunE body with openApp / Close.
func withApp(g *globalFlags, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, g)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}
