package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashwinyue/convlog/internal/config"
	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/service/auth"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPurgeCmd() *cobra.Command {
	var days, batchSize int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete conversations older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			cutoff := a.services.Maintenance.Cutoff(days)
			deleted, err := a.services.Conversation.PurgeBefore(cmd.Context(), cutoff, batchSize)
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"deleted": deleted, "before": cutoff})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "delete records older than this many days")
	cmd.Flags().IntVar(&batchSize, "batch-size", 1000, "rows per batch")
	return cmd
}

func newArchiveCmd() *cobra.Command {
	var days, batchSize int
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move conversations older than --days into the archive table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if days <= 0 {
				days = a.services.Maintenance.Config().ArchiveDays
			}
			cutoff := a.services.Maintenance.Cutoff(days)
			archived, err := a.services.Maintenance.Archive(cmd.Context(), cutoff, batchSize)
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"archived": archived, "before": cutoff})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "archive records older than this many days (default maintenance.archiveDays)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per batch (default maintenance.batchSize)")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var days, batchSize int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete archived conversations older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if days <= 0 {
				days = a.services.Maintenance.Config().CleanupDays
			}
			cutoff := a.services.Maintenance.Cutoff(days)
			deleted, err := a.services.Maintenance.CleanupArchives(cmd.Context(), cutoff, batchSize)
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"deleted": deleted, "before": cutoff})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "delete archives older than this many days (default maintenance.cleanupDays)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per batch (default maintenance.batchSize)")
	return cmd
}

func newOptimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Optimize conversation and archive tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.services.Maintenance.Optimize(cmd.Context())
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show table statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.services.Maintenance.TableStats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func newExportCmd() *cobra.Command {
	var filter model.ConversationFilter
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching conversations to the configured storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.services.Export.Export(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().IntVar(&filter.UserID, "user-id", 0, "filter by user id")
	cmd.Flags().StringVar(&filter.Username, "username", "", "filter by username")
	cmd.Flags().StringVar(&filter.ModelName, "model", "", "filter by model name")
	cmd.Flags().Int64Var(&filter.StartTime, "start", 0, "created_at lower bound (unix seconds, inclusive)")
	cmd.Flags().Int64Var(&filter.EndTime, "end", 0, "created_at upper bound (unix seconds, inclusive)")
	return cmd
}

func newGateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gate [on|off]",
		Short: "Show or change the conversation logging setting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				enabled, err := parseSwitch(args[0])
				if err != nil {
					return err
				}
				if err := a.services.Gate.SetEnabled(cmd.Context(), enabled); err != nil {
					return err
				}
			}
			return printJSON(map[string]bool{"enabled": a.services.Gate.IsEnabled()})
		},
	}
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid value %q, expected on or off", s)
	}
	return v, nil
}

// newTokenCmd 签发管理员令牌，不需要数据库
func newTokenCmd() *cobra.Command {
	var subject, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			svc := auth.NewService(&cfg.Auth)
			if role == "" {
				role = svc.AdminRole()
			}
			token, err := svc.GenerateToken(subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().StringVar(&role, "role", "", "token role (default auth.adminRole)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.tokenTTL hours)")
	return cmd
}
