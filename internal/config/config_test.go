package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/home/user/.local/share/conduit-registry")
	original.Admin.Token = "s3cret"
	original.Sweep = SweepConfig{
		Enabled:   true,
		Interval:  Duration{5 * time.Minute},
		Retention: Duration{2 * time.Hour},
	}
	original.Vault = VaultConfig{Type: "s3", Name: "offsite", S3Bucket: "snapshots", S3Prefix: "registry", S3Region: "eu-west-1"}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Server.Listen != original.Server.Listen {
		t.Errorf("Server.Listen = %q, want %q", got.Server.Listen, original.Server.Listen)
	}
	if got.Server.ReadTimeout != original.Server.ReadTimeout {
		t.Errorf("Server.ReadTimeout = %v, want %v", got.Server.ReadTimeout, original.Server.ReadTimeout)
	}
	if got.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("Server.MaxBodyBytes = %d, want %d", got.Server.MaxBodyBytes, 1<<20)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Admin.Token != "s3cret" {
		t.Errorf("Admin.Token = %q, want %q", got.Admin.Token, "s3cret")
	}
	if got.Sweep != original.Sweep {
		t.Errorf("Sweep = %+v, want %+v", got.Sweep, original.Sweep)
	}
	if got.Vault != original.Vault {
		t.Errorf("Vault = %+v, want %+v", got.Vault, original.Vault)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
}

func TestDuration_Text(t *testing.T) {
	var buf bytes.Buffer
	m := &Manager{}
	cfg := &Config{Sweep: SweepConfig{Interval: Duration{90 * time.Second}}}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), `interval = "1m30s"`) {
		t.Errorf("encoded config = %q, want interval as duration string", buf.String())
	}

	_, err := m.Read(strings.NewReader("[sweep]\ninterval = \"soon\"\n"))
	if err == nil {
		t.Error("Read() expected error for invalid duration")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/registry")

	if cfg.BaseDir != "/data/registry" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/registry")
	}
	if cfg.LogDir != "/data/registry/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/registry/log")
	}
	if cfg.Database.DataDir != "/data/registry/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/registry/db")
	}
	if cfg.Encryption.PublicKeyPath != "/data/registry/keys/registry.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/registry/keys/registry.pub")
	}
	if cfg.Encryption.PrivateKeyPath != "/data/registry/keys/registry.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", cfg.Encryption.PrivateKeyPath, "/data/registry/keys/registry.key")
	}
	if cfg.Admin.Token != "" {
		t.Errorf("Admin.Token = %q, want empty (admin disabled by default)", cfg.Admin.Token)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAdminToken: " token-from-env ",
		EnvListen:     ":9090",
	}
	cfg := NewConfig("/data")
	cfg.Admin.Token = "from-file"
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Admin.Token != "token-from-env" {
		t.Errorf("Admin.Token = %q, want %q", cfg.Admin.Token, "token-from-env")
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, ":9090")
	}

	t.Run("unset variables keep file values", func(t *testing.T) {
		cfg := NewConfig("/data")
		cfg.Admin.Token = "from-file"
		cfg.ApplyEnv(func(string) string { return "" })
		if cfg.Admin.Token != "from-file" {
			t.Errorf("Admin.Token = %q, want %q", cfg.Admin.Token, "from-file")
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing listen", func(c *Config) { c.Server.Listen = "" }, "server.listen"},
		{"unknown database", func(c *Config) { c.Database.Type = "postgres" }, "unknown database type"},
		{"sqlite without data dir", func(c *Config) { c.Database.DataDir = "" }, "data_dir"},
		{"sweep without interval", func(c *Config) {
			c.Sweep.Enabled = true
			c.Sweep.Interval = Duration{}
		}, "sweep.interval"},
		{"unknown vault", func(c *Config) { c.Vault.Type = "ftp" }, "unknown vault type"},
		{"filesystem vault without root", func(c *Config) { c.Vault.FSVaultRoot = "" }, "fs_vault_root"},
		{"s3 vault without bucket", func(c *Config) { c.Vault = VaultConfig{Type: "s3"} }, "s3_bucket"},
		{"s3 half credentials", func(c *Config) {
			c.Vault = VaultConfig{Type: "s3", S3Bucket: "b", S3AccessKeyID: "AKIA"}
		}, "set together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data")
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}

	t.Run("memory database needs no data dir", func(t *testing.T) {
		cfg := NewConfig("/data")
		cfg.Database = DatabaseConfig{Type: "memory"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("memory vault needs nothing", func(t *testing.T) {
		cfg := NewConfig("/data")
		cfg.Vault = VaultConfig{Type: "memory"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "registry.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "registry.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "registry.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/registry.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
