package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"pennywise/internal/config"
	"pennywise/internal/core"
	"pennywise/internal/ledger/ledgertest"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config accepted")
	}
	_, err := FromAppConfig(&config.Config{DataBackend: "mongodb"})
	if err == nil {
		t.Fatal("unknown backend accepted")
	}
	for _, bt := range GetBackendTypes() {
		if !strings.Contains(err.Error(), string(bt)) {
			t.Errorf("error %q does not list %s", err, bt)
		}
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://localhost/db"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.DatabaseURL == "" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "x"}, true},
		{"unknown", Config{Type: "mongodb"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := f.CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			defer func() {
				if err := res.Cleanup(); err != nil {
					t.Errorf("Cleanup() error = %v", err)
				}
			}()
			if res.Publisher != nil {
				t.Error("publisher created without AMQP_URL")
			}
			if err := res.Store.Ping(ctx); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
			if _, err := res.Store.CreateIncome(ctx, ledgertest.Income(ledgertest.Alice, "Salary", "10", core.NewDate(2025, 1, 1))); err != nil {
				t.Errorf("CreateIncome() error = %v", err)
			}
		})
	}
}
