package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"demand_forecast/internal/config"
	"demand_forecast/internal/database"
	"demand_forecast/internal/model"
	"demand_forecast/internal/predictor"
	"demand_forecast/internal/report"
	"demand_forecast/internal/session"
	"demand_forecast/internal/sheets"
	"demand_forecast/internal/solar"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "forecast",
	Short:   "Daily electricity and gas demand forecaster",
	Long:    "forecast keeps a working copy of a daily demand sheet and trains peak, minimum and gas demand models on it.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		switch cmd.Name() {
		case "init", "version", "help", "completion":
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Logging.Verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("forecast", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(configPath); err != nil {
			return err
		}
		fmt.Printf("Created config: %s\n", configPath)
		fmt.Println("Set sheet.id (or SHEET_ID) and GOOGLE_CREDENTIALS_JSON, then run 'forecast pull'.")
		return nil
	},
}

// workspace bundles what a command needs: the session, the state database
// and the redis client if one is configured.
type workspace struct {
	session *session.Session
	db      *database.DB
	redis   *redis.Client
}

// openWorkspace builds the session from config and restores the working
// table and models saved by previous runs.
func openWorkspace(ctx context.Context, extra ...report.Sink) (*workspace, error) {
	table, err := buildTable(cfg)
	if err != nil {
		return nil, err
	}

	w := &workspace{}
	sinks := report.Multi{report.LogSink{}}
	if cfg.Redis.URL != "" {
		client, err := report.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			log.Printf("redis unavailable, reports stay local: %v", err)
		} else {
			w.redis = client
			sinks = append(sinks, report.NewRedisSink(client, cfg.Redis.Channel))
		}
	}
	sinks = append(sinks, extra...)

	w.session = session.New(table, session.Options{
		Split: cfg.Training.Split,
		Seed:  cfg.Training.Seed,
		Solar: solar.NewProfile(cfg.Solar.CapacityMW, cfg.Solar.Latitude),
		Sink:  sinks,
	})
	w.session.Sync().MaxAttempts = cfg.Sheet.MaxAttempts
	w.session.Sync().BaseBackoff = cfg.Sheet.BaseBackoff

	w.db, err = database.Open(cfg.State.Path)
	if err != nil {
		w.close()
		return nil, err
	}
	st, ok, err := w.db.LoadState()
	if err != nil {
		w.close()
		return nil, fmt.Errorf("loading saved state: %w", err)
	}
	if ok {
		if err := w.session.Restore(st); err != nil {
			w.close()
			return nil, fmt.Errorf("restoring saved state: %w", err)
		}
	}

	for _, t := range model.Targets {
		path := modelPath(t)
		m, err := predictor.LoadModelFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Printf("ignoring saved %s model: %v", t, err)
			continue
		}
		if err := w.session.SetModel(m); err != nil {
			log.Printf("ignoring saved %s model: %v", t, err)
		}
	}
	return w, nil
}

// save persists the working table and pending edits for the next run.
func (w *workspace) save() error {
	if err := w.db.SaveState(w.session.Snapshot()); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// saveModel writes the current model of target next to the state database.
func (w *workspace) saveModel(t model.Target) error {
	m, ok := w.session.Model(t)
	if !ok {
		return &session.NotTrainedError{Target: t}
	}
	path := modelPath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}
	return m.SaveFile(path)
}

func (w *workspace) close() {
	if w.db != nil {
		w.db.Close()
	}
	if w.redis != nil {
		w.redis.Close()
	}
}

func modelPath(t model.Target) string {
	return filepath.Join(filepath.Dir(cfg.State.Path), "models", string(t)+".json")
}

// buildTable returns the local CSV table when sheet.file is set, otherwise
// the Google Sheets client authenticated with the resolved credential.
func buildTable(c *config.Config) (sheets.Table, error) {
	if c.Sheet.File != "" {
		return sheets.NewFileTable(c.Sheet.File), nil
	}

	cred, err := config.ResolveCredential(c.Sheet)
	if err != nil {
		return nil, err
	}
	if cred.Insecure() {
		log.Printf("warning: the sheet is accessed with the shared fallback credential")
	}
	auth, err := cred.TokenSource()
	if err != nil {
		return nil, err
	}

	client := sheets.NewClient(c.Sheet.ID, c.Sheet.Worksheet, auth)
	if c.Sheet.BaseURL != "" {
		client.BaseURL = c.Sheet.BaseURL
	}
	if c.Sheet.Timeout > 0 {
		client.Timeout = c.Sheet.Timeout
	}
	return client, nil
}

// parseAssignments turns ["k=v", ...] into a map.
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
