package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Chain.ID != 11142220 || cfg.Chain.Symbol != "CELO" {
		t.Errorf("chain defaults = %+v", cfg.Chain)
	}
	if cfg.Scheduler.Tick != 5*time.Second {
		t.Errorf("Scheduler.Tick = %s, want 5s", cfg.Scheduler.Tick)
	}
	if cfg.Ledger.MaxQuestionLength != 280 {
		t.Errorf("MaxQuestionLength = %d, want 280", cfg.Ledger.MaxQuestionLength)
	}
}

func TestLoad_TOMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "predict.toml")
	body := `
[server]
port = "9000"

[ledger]
max_question_length = 120

[scheduler]
tick = "1s"

[jwt]
admin_addresses = ["0x00000000000000000000000000000000000000aa"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Errorf("env must override file: port = %q", cfg.Server.Port)
	}
	if cfg.Ledger.MaxQuestionLength != 120 {
		t.Errorf("MaxQuestionLength = %d, want 120", cfg.Ledger.MaxQuestionLength)
	}
	if cfg.Scheduler.Tick != time.Second {
		t.Errorf("Tick = %s, want 1s", cfg.Scheduler.Tick)
	}
	if !cfg.IsAdmin(common.HexToAddress("0xAA")) {
		t.Error("admin address from file not recognised")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected missing secret error, got %v", err)
	}

	cfg.JWT.AccessSecret = "dev-secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dev config should validate: %v", err)
	}

	cfg.Server.Env = "production"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_DSN") {
		t.Fatalf("production without DSN should fail, got %v", err)
	}

	cfg = Defaults()
	cfg.JWT.AccessSecret = "x"
	cfg.Chain.ContractAddress = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad contract address should fail")
	}
}

func TestValidate_Archive(t *testing.T) {
	cfg := Defaults()
	cfg.JWT.AccessSecret = "x"
	cfg.Archive.Bucket = "ledger-archive"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("archive defaults should validate: %v", err)
	}

	cfg.Archive.SegmentSize = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "ARCHIVE_SEGMENT_SIZE") {
		t.Fatalf("zero segment size should fail, got %v", err)
	}
}
