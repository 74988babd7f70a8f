package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/coordinator"
	"github.com/soyeahso/switchboard/internal/directory"
	"github.com/soyeahso/switchboard/internal/gateway"
	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/soyeahso/switchboard/internal/presence"
	"github.com/soyeahso/switchboard/internal/session"
	"github.com/soyeahso/switchboard/internal/store"
	"github.com/soyeahso/switchboard/internal/telephony"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the Switchboard gateway server",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// The --log-level flag wins; otherwise the config file decides.
			if logLevel == "" && cfg.Logging.Level != "" {
				log = logging.New(nil, cfg.Logging.Level, cfg.Logging.Style)
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			// Session store (SQLite or in-memory)
			var sessions session.Store
			if cfg.Session.Store == "memory" {
				sessions = store.NewMemorySessionStore()
				log.Info().Msg("using in-memory session store")
			} else {
				dbPath := filepath.Join(paths.Data, "switchboard.db")
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				sessions = store.NewSQLiteSessionStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite session store")
			}

			dir := directory.NewStatic(cfg.Directory.Agents)
			log.Info().Int("agents", len(cfg.Directory.Agents)).Msg("directory loaded")

			bridge := telephony.NewBridge(cfg.Telephony, log)
			notifier := telephony.NewNotifier(bridge, dir, log)
			gatekeeper := session.NewGatekeeper(sessions, notifier, log)

			pollInterval := time.Duration(cfg.Poller.IntervalMs) * time.Millisecond
			probeTimeout := time.Duration(cfg.Poller.ProbeTimeoutMs) * time.Millisecond
			hub := presence.NewHub(pollInterval)
			poller := presence.NewPoller(hub, bridge, dir, gatekeeper,
				pollInterval, probeTimeout, cfg.Poller.MaxInFlight, log.Sub("poller"))

			coord := coordinator.New(gatekeeper, dir,
				directory.NewResolver(dir), hub, nil, log)
			srv := gateway.New(cfg.Gateway, coord, pollInterval, log)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			poller.Start(ctx)
			defer poller.Stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
