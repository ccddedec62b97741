// Command caseintakectl is the operator CLI: one-off runs of the
// stuck-case sweep and clarification expiry cron jobs, and a force-flag
// switch for the repository adapter's legacy/new routing (SPEC_FULL.md
// §C, generalized from the teacher's config hot-reload idiom).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/svcdesk/caseintake/pkg/clarification"
	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/database"
	"github.com/svcdesk/caseintake/pkg/monitor"
	"github.com/svcdesk/caseintake/pkg/repository"
	"github.com/svcdesk/caseintake/pkg/slack"
	"github.com/svcdesk/caseintake/pkg/validator"
	"github.com/svcdesk/caseintake/pkg/version"
)

var configDir string

func main() {
	root := &cobra.Command{
		Use:   "caseintakectl",
		Short: "Operator CLI for the case-intake orchestration engine",
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")

	root.AddCommand(versionCmd(), sweepStuckCasesCmd(), expireSessionsCmd(), forceFlagCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}

// legacyNoteWriter adapts repository.LegacyWorkNoteWriter's 2-arg
// PostWorkNote to clarification.WorkNoteWriter's 4-arg caller/channel
// signature — this CLI always writes as the operator tool itself, it has
// no Slack caller/channel context to route through the feature flag.
type legacyNoteWriter struct {
	inner *repository.LegacyWorkNoteWriter
}

func (w legacyNoteWriter) PostWorkNote(ctx context.Context, _, _, caseID, note string) error {
	return w.inner.PostWorkNote(ctx, caseID, note)
}

// wired bundles the pieces every DB-backed subcommand needs.
type wired struct {
	cfg   *config.Config
	db    *database.Client
	gates *validator.Store
}

func wireUp(ctx context.Context) (*wired, error) {
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}
	db, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &wired{cfg: cfg, db: db, gates: validator.NewStore(db.DB)}, nil
}

func sweepStuckCasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-stuck-cases",
		Short: "Run one pass of the stuck-case monitor sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := wireUp(ctx)
			if err != nil {
				return err
			}
			defer w.db.Close()

			notifier := slack.NewNotifier(slack.NotifierConfig{
				Token:        os.Getenv(w.cfg.Slack.TokenEnv),
				DashboardURL: getEnv("DASHBOARD_URL", "https://caseintake.internal"),
			})
			mon := monitor.NewMonitor(w.gates, notifier, w.cfg.Slack.EscalationChannelID, w.cfg.Retention)
			buckets, err := mon.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("warning=%d critical=%d alert=%d\n", len(buckets.Warning), len(buckets.Critical), len(buckets.Alert))
			return nil
		},
	}
}

func expireSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-sessions",
		Short: "Run one pass of the clarification reminder/expiry sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := wireUp(ctx)
			if err != nil {
				return err
			}
			defer w.db.Close()

			notifier := slack.NewNotifier(slack.NotifierConfig{
				Token:        os.Getenv(w.cfg.Slack.TokenEnv),
				DashboardURL: getEnv("DASHBOARD_URL", "https://caseintake.internal"),
			})
			store := clarification.NewStore(w.db.DB)
			mgr := clarification.NewManager(store, w.gates, notifier, legacyNoteWriter{repository.NewLegacyWorkNoteWriter(w.db.DB)}, w.cfg.Clarification)

			reminders, err := mgr.SweepReminders(ctx)
			if err != nil {
				return err
			}
			expirations, err := mgr.SweepExpirations(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("reminders_sent=%d sessions_expired=%d\n", reminders, expirations)
			return nil
		},
	}
}

// forceFlagCmd flips feature_flags.force_enable/force_disable directly in
// caseintake.yaml. The server reads the file only at startup, so a running
// server picks up the change when it is restarted.
func forceFlagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "force-flag {enable|disable|auto}",
		Short: "Force the repository adapter's new-path rollout on, off, or back to rollout_pct",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setForceFlag(args[0])
		},
	}
	return cmd
}

func setForceFlag(mode string) error {
	path := filepath.Join(configDir, "caseintake.yaml")
	raw, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc map[string]any
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	flags, _ := doc["feature_flags"].(map[string]any)
	if flags == nil {
		flags = map[string]any{}
	}

	switch mode {
	case "enable":
		flags["force_enable"] = true
		flags["force_disable"] = false
	case "disable":
		flags["force_enable"] = false
		flags["force_disable"] = true
	case "auto":
		flags["force_enable"] = false
		flags["force_disable"] = false
	default:
		return fmt.Errorf("unknown mode %q, want enable, disable, or auto", mode)
	}
	doc["feature_flags"] = flags

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("feature_flags routing set to %q in %s\n", mode, path)
	return nil
}
