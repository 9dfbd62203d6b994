package config

import (
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.DB.Driver != "postgres" {
		t.Errorf("DB.Driver = %q, want postgres", cfg.DB.Driver)
	}
	if cfg.Payments.WindowDays != 2 {
		t.Errorf("Payments.WindowDays = %d, want 2", cfg.Payments.WindowDays)
	}
	if cfg.Payments.ReminderInterval != 24*time.Hour {
		t.Errorf("Payments.ReminderInterval = %v, want 24h", cfg.Payments.ReminderInterval)
	}
	if cfg.CloudinaryEnabled() {
		t.Error("Cloudinary should be disabled without credentials")
	}
	if cfg.Server.RequestTimeout != 10*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 10s", cfg.Server.RequestTimeout)
	}
	if cfg.DB.MaxOpenConns != 100 || cfg.DB.ConnMaxLifetime != time.Hour {
		t.Errorf("DB pool = (%d, %v), want (100, 1h)", cfg.DB.MaxOpenConns, cfg.DB.ConnMaxLifetime)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("PAYMENT_WINDOW_DAYS", "-1")
	t.Setenv("REMINDER_INTERVAL", "1h")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.DB.Driver != "memory" {
		t.Errorf("DB.Driver = %q, want memory", cfg.DB.Driver)
	}
	if cfg.Payments.WindowDays != -1 {
		t.Errorf("Payments.WindowDays = %d, want -1", cfg.Payments.WindowDays)
	}
	if cfg.Payments.ReminderInterval != time.Hour {
		t.Errorf("Payments.ReminderInterval = %v, want 1h", cfg.Payments.ReminderInterval)
	}
	want := "host=db port=6543 user=postgres password=postgres dbname=rentahome sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestNewConfigInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "SERVER_PORT", "abc"},
		{"unknown driver", "DB_DRIVER", "mysql"},
		{"bad jwt ttl", "JWT_EXPIRES_IN", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := NewConfig(); err == nil {
				t.Errorf("NewConfig() with %s=%s: expected error", tt.key, tt.value)
			}
		})
	}
}
