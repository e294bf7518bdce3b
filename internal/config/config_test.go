package config

import "testing"

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is empty")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_URL", "https://kutable.example/")
	t.Setenv("NOTIFY_WORKERS", "not-a-number")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("expected normalized env, got %q", cfg.AppEnv)
	}
	if cfg.AppURL != "https://kutable.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.AppURL)
	}
	if cfg.NotifyWorkers != 4 {
		t.Fatalf("expected fallback worker count, got %d", cfg.NotifyWorkers)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.SMSEnabled() || cfg.EmailEnabled() {
		t.Fatalf("expected notification channels disabled without credentials")
	}
}

func TestLoadConfigRejectsIncompleteDrivers(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REALTIME_DRIVER", "redis")
	t.Setenv("REDIS_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for redis driver without REDIS_URL")
	}

	t.Setenv("REALTIME_DRIVER", "postgres")
	t.Setenv("NOTIFY_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for kafka driver without brokers")
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG", "on")
	if !getEnvBool("FLAG", false) {
		t.Fatalf("expected on to parse as true")
	}
	t.Setenv("FLAG", "maybe")
	if getEnvBool("FLAG", false) {
		t.Fatalf("expected fallback for unknown value")
	}
}
