package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Switchboard status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Switchboard %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Gateway: port=%d bind=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind)

			if cfg.Telephony.Host != "" {
				fmt.Printf("Switch:  %s:%d (dial %dms, reply %dms, %d attempts)\n",
					cfg.Telephony.Host, cfg.Telephony.Port,
					cfg.Telephony.DialTimeoutMs, cfg.Telephony.ReplyTimeoutMs,
					cfg.Telephony.Retry.MaxAttempts)
			} else {
				fmt.Println("Switch:  (not configured)")
			}

			fmt.Printf("Poller:  interval=%dms probeTimeout=%dms maxInFlight=%d\n",
				cfg.Poller.IntervalMs, cfg.Poller.ProbeTimeoutMs, cfg.Poller.MaxInFlight)
			fmt.Printf("Session: store=%s\n", cfg.Session.Store)

			supervisors := 0
			for _, a := range cfg.Directory.Agents {
				if a.IsSupervisor() {
					supervisors++
				}
			}
			fmt.Printf("Agents:  %d (%d supervisors)\n", len(cfg.Directory.Agents), supervisors)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
