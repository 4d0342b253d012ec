package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/xraph/tuition/host/memhost"
	"github.com/xraph/tuition/internal/config"
	"github.com/xraph/tuition/store/memory"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
	if serveCmd.Flags().Lookup("demo") == nil {
		t.Error("missing --demo flag")
	}
}

func TestOpenMemoryStore(t *testing.T) {
	var cfg config.Config
	cfg.Store.Driver = config.DriverMemory
	st, err := openStore(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if _, ok := st.(*memory.Store); !ok {
		t.Errorf("got %T", st)
	}
	cfg.Store.Driver = "sqlite"
	if _, err := openStore(context.Background(), cfg, nil); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestEngineOptions(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var cfg config.Config
	cfg.Engine.DefaultCharges = []string{"not-a-product"}
	if _, err := engineOptions(cfg, log); err == nil {
		t.Error("malformed default charge should fail")
	}

	cfg.Engine.DefaultCharges = nil
	cfg.Engine.CronUser = "usr_bogus"
	if _, err := engineOptions(cfg, log); err == nil {
		t.Error("malformed cron user should fail")
	}

	cfg.Engine.CronUser = ""
	opts, err := engineOptions(cfg, log)
	if err != nil {
		t.Fatalf("engineOptions: %v", err)
	}
	if len(opts) != 3 {
		t.Errorf("got %d options, want logger, poll interval and audit", len(opts))
	}
}

func TestSeedDemo(t *testing.T) {
	h := memhost.New()
	seedDemo(h, slog.New(slog.NewTextHandler(io.Discard, nil)))
	// The seeded host has no sales until a subscription is confirmed.
	if n := len(h.Sales()); n != 0 {
		t.Errorf("sales: got %d", n)
	}
}
