package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SourceTimeout != 30*time.Second || cfg.TenantConcurrency != 4 || cfg.NotifyTopic != "new-alerts" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Location().String() != "America/Sao_Paulo" {
		t.Errorf("location = %s", cfg.Location())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipping.yaml")
	yml := "store_driver: memory\nsource_timeout: 45s\nmax_results: 7\ntimezone: UTC\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("MAX_RESULTS", "9")
	t.Setenv("SEED_GLOBAL_SETTINGS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreDriver != DriverMemory || cfg.SourceTimeout != 45*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.MaxResults != 9 {
		t.Errorf("MaxResults = %d, env should win over file", cfg.MaxResults)
	}
	if cfg.SeedGlobalSettings {
		t.Error("SEED_GLOBAL_SETTINGS=false ignored")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.StoreDriver = DriverPostgres
	if err := cfg.Validate(); err == nil {
		t.Error("postgres without DATABASE_URL accepted")
	}
	cfg.StoreDriver = DriverSQLite
	cfg.SQLitePath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("sqlite without SQLITE_PATH accepted")
	}
	cfg.StoreDriver = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown driver accepted")
	}
	cfg = Defaults()
	cfg.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Error("invalid timezone accepted")
	}
}
