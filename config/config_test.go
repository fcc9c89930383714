package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/donations?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "donations-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "DONATIONS_CERTIFICATE_MAX_ATTEMPTS", "3")
	setEnv(t, "DONATIONS_CERTIFICATE_RETRY_INTERVAL_MINUTES", "7")
	setEnv(t, "DONATIONS_PENDING_TIMEOUT_MINUTES", "11")
	setEnv(t, "DONATIONS_RECONCILE_STALE_AFTER_MINUTES", "13")
	setEnv(t, "DONATIONS_JOB_BATCH_SIZE", "99")
	setEnv(t, "FRONTEND_URL", "https://donate.example.org/")
	setEnv(t, "CASHFREE_ENV", "prod")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "donations-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.Donations.CertificateMaxAttempts != 3 {
		t.Fatalf("unexpected certificate max attempts: %d", cfg.Donations.CertificateMaxAttempts)
	}
	if cfg.Donations.CertificateRetryInterval != 7*time.Minute {
		t.Fatalf("unexpected certificate retry interval: %v", cfg.Donations.CertificateRetryInterval)
	}
	if cfg.Donations.PendingTimeout != 11*time.Minute {
		t.Fatalf("unexpected pending timeout: %v", cfg.Donations.PendingTimeout)
	}
	if cfg.Donations.ReconcileStaleAfter != 13*time.Minute {
		t.Fatalf("unexpected reconcile stale after: %v", cfg.Donations.ReconcileStaleAfter)
	}
	if cfg.Donations.JobBatchSize != 99 {
		t.Fatalf("unexpected job batch size: %d", cfg.Donations.JobBatchSize)
	}
	if cfg.Donations.FrontendURL != "https://donate.example.org" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.Donations.FrontendURL)
	}
	if cfg.Cashfree.Environment != "PROD" {
		t.Fatalf("unexpected cashfree env: %s", cfg.Cashfree.Environment)
	}
}

func TestRazorpayWebhookSecretDefaultsToKeySecret(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/donations")
	setEnv(t, "RAZORPAY_KEY_SECRET", "key-secret")
	unsetEnv(t, "RAZORPAY_WEBHOOK_SECRET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Razorpay.WebhookSecret != "key-secret" {
		t.Fatalf("expected webhook secret fallback, got %q", cfg.Razorpay.WebhookSecret)
	}
	if cfg.NGO.Name != "Dhyan Foundation Guwahati" || cfg.NGO.PAN != "AAATD5390E" {
		t.Fatalf("unexpected ngo defaults: %+v", cfg.NGO)
	}
	if cfg.Certificates.UseS3 {
		t.Fatal("expected local certificate storage by default")
	}
}
