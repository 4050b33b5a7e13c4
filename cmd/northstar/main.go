// Command northstar runs the proposal workflow engine and its HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"northstar/pkg/approval"
	"northstar/pkg/config"
	"northstar/pkg/engine"
	"northstar/pkg/enrich"
	"northstar/pkg/eventlog"
	"northstar/pkg/intake"
	"northstar/pkg/logx"
	"northstar/pkg/metrics"
	"northstar/pkg/persistence"
	"northstar/pkg/proto"
	"northstar/pkg/state"
	"northstar/pkg/version"
	"northstar/pkg/webui"
)

func main() {
	var configPath string
	var addr string
	var setAdminPassword bool
	var showVersion bool
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.BoolVar(&setAdminPassword, "set-admin-password", false, "Prompt for a new admin password, store it in the secrets file, and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetFullVersion())
		return
	}

	if configPath == "" {
		configPath = os.Getenv("NORTHSTAR_CONFIG")
	}
	if configPath == "" {
		configPath = "northstar.yaml"
	}

	if setAdminPassword {
		if err := promptAndStoreAdminPassword(); err != nil {
			log.Fatalf("Failed to set admin password: %v", err)
		}
		fmt.Println("Admin password stored.")
		return
	}

	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}
	if addr == "" {
		addr = cfg.Server.ListenAddr
	}

	logger := logx.NewLogger("northstar")
	logger.Info("northstar %s starting", version.GetVersion())

	store := state.NewMemoryStore()
	gate := approval.NewGate()

	var archive *persistence.Archive
	if cfg.Database.Enabled {
		archive, err = persistence.Open(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to open session archive: %v", err)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Error("Archive close failed: %v", err)
			}
		}()

		restored, err := restoreSessions(archive, store, gate)
		if err != nil {
			log.Fatalf("Failed to restore sessions: %v", err)
		}
		logger.Info("Restored %d sessions from %s", restored, cfg.Database.Path)

		store.SetSink(archive)
	}

	var events *eventlog.Writer
	if cfg.EventLog.Enabled {
		events, err = eventlog.NewWriter(cfg.EventLog.Dir)
		if err != nil {
			log.Fatalf("Failed to create event log: %v", err)
		}
		defer func() {
			if err := events.Close(); err != nil {
				logger.Error("Event log close failed: %v", err)
			}
		}()
	}

	eng := engine.New(engine.Options{
		Store: store,
		Services: enrich.NewMockServices(enrich.MockConfig{
			Latency:     cfg.Enrichment.Latency(),
			FailureRate: cfg.Enrichment.FailureRate,
			Seed:        cfg.Enrichment.Seed,
		}),
		Extractor: buildExtractor(cfg, logger),
		Gate:      gate,
		Metrics:   metrics.NewPrometheusRecorder(),
		Events:    events,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := webui.NewServer(eng)
	if err := server.StartServer(ctx, addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("Shutdown complete")
}

// buildExtractor returns the LLM-backed extractor when enabled and an API key
// is available, otherwise the pattern extractor.
func buildExtractor(cfg config.Config, logger *logx.Logger) intake.Extractor {
	pattern := intake.NewPatternExtractor()
	if !cfg.LLM.Enabled {
		return pattern
	}

	apiKey, err := config.GetSecret(config.AnthropicAPIKeySecret)
	if err != nil {
		logger.Warn("LLM extraction enabled but no API key found, falling back to patterns: %v", err)
		return pattern
	}
	logger.Info("LLM extraction enabled with model %s", cfg.LLM.Model)
	return intake.NewLLMExtractor(apiKey, cfg.LLM.Model, pattern)
}

// restoreSessions reloads archived sessions into the store and re-queues any
// that were awaiting approval when the process stopped.
func restoreSessions(archive *persistence.Archive, store *state.MemoryStore, gate *approval.Gate) (int, error) {
	snapshots, err := archive.LoadAll()
	if err != nil {
		return 0, err
	}

	for _, snapshot := range snapshots {
		if err := store.Create(snapshot); err != nil {
			return 0, fmt.Errorf("failed to restore session %s: %w", snapshot.SessionID, err)
		}
		if snapshot.ApprovalStatus == proto.ApprovalPending {
			gate.Enqueue(snapshot.SessionID, snapshot.UpdatedAt)
		}
	}
	return len(snapshots), nil
}

// promptAndStoreAdminPassword reads a password from the terminal without echo
// and stores it in the encrypted secrets file.
func promptAndStoreAdminPassword() error {
	fmt.Print("New admin password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return fmt.Errorf("password cannot be empty")
	}

	fmt.Print("Confirm admin password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if string(password) != string(confirm) {
		return fmt.Errorf("passwords do not match")
	}

	return config.SetSecret("ADMIN_PASSWORD", string(password))
}
