package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Razorpay          RazorpayConfig
	Cashfree          CashfreeConfig
	Email             EmailConfig
	NGO               NGOConfig
	Certificates      CertificatesConfig
	Redis             RedisConfig
	NATS              NATSConfig
	Astrology         AstrologyConfig
	Donations         DonationsConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

type CashfreeConfig struct {
	AppID          string
	SecretKey      string
	Environment    string
	BaseURL        string
	HTTPTimeout    time.Duration
	RequestsPerSec float64
}

type EmailConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	FromName      string
	FromAddress   string
	OpsBCC        string
	SendPerMinute int
}

type NGOConfig struct {
	Name    string
	PAN     string
	Reg80G  string
	Reg12A  string
	Address string
	Phone   string
	Email   string
	Website string
}

type CertificatesConfig struct {
	Dir      string
	LogoPath string
	S3Bucket string
	S3Region string
	S3Prefix string
	UseS3    bool
}

type RedisConfig struct {
	URL             string
	WebhookDedupTTL time.Duration
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type AstrologyConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	HTTPTimeout  time.Duration
}

type DonationsConfig struct {
	PendingTimeout           time.Duration
	ReconcileStaleAfter      time.Duration
	JobBatchSize             int32
	CertificateMaxAttempts   int32
	CertificateRetryInterval time.Duration
	CertificateLease         time.Duration
	DispatcherWorkers        int
	DispatcherQueueSize      int
	FrontendURL              string
}

type JobsConfig struct {
	ReconcileInterval           time.Duration
	ExpirePendingInterval       time.Duration
	CertificateDispatchInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	razorpaySecret := getEnv("RAZORPAY_KEY_SECRET", "")
	smtpUser := getEnv("SMTP_USER", "")

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "donations-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Razorpay: RazorpayConfig{
			KeyID:         getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:     razorpaySecret,
			WebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", razorpaySecret),
		},
		Cashfree: CashfreeConfig{
			AppID:          getEnv("CASHFREE_APP_ID", ""),
			SecretKey:      getEnv("CASHFREE_SECRET_KEY", ""),
			Environment:    strings.ToUpper(getEnv("CASHFREE_ENV", "TEST")),
			BaseURL:        getEnv("CASHFREE_BASE_URL", ""),
			HTTPTimeout:    getSecondsEnv("CASHFREE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			RequestsPerSec: float64(getIntEnv("CASHFREE_REQUESTS_PER_SECOND", 10)),
		},
		Email: EmailConfig{
			Host:          getEnv("SMTP_HOST", "smtp.zoho.in"),
			Port:          getIntEnv("SMTP_PORT", 465),
			Username:      smtpUser,
			Password:      getEnv("SMTP_PASSWORD", ""),
			FromName:      getEnv("SMTP_FROM_NAME", "Dhyan Foundation Guwahati"),
			FromAddress:   getEnv("SMTP_FROM_ADDRESS", smtpUser),
			OpsBCC:        getEnv("EMAIL_OPS_BCC", "info@dhyanfoundationguwahati.org"),
			SendPerMinute: getIntEnv("EMAIL_SEND_PER_MINUTE", 30),
		},
		NGO: NGOConfig{
			Name:    getEnv("NGO_NAME", "Dhyan Foundation Guwahati"),
			PAN:     getEnv("NGO_PAN", "AAATD5390E"),
			Reg80G:  getEnv("NGO_80G_REG", ""),
			Reg12A:  getEnv("NGO_12A_REG", ""),
			Address: getEnv("NGO_ADDRESS", "Guwahati, Assam, India"),
			Phone:   getEnv("NGO_PHONE", ""),
			Email:   getEnv("NGO_EMAIL", "info@dhyanfoundationguwahati.org"),
			Website: getEnv("NGO_WEBSITE", "https://dhyanfoundationguwahati.org"),
		},
		Certificates: CertificatesConfig{
			Dir:      getEnv("CERTIFICATES_DIR", "storage/certificates"),
			LogoPath: getEnv("CERTIFICATES_LOGO_PATH", ""),
			S3Bucket: getEnv("CERTIFICATES_S3_BUCKET", ""),
			S3Region: getEnv("CERTIFICATES_S3_REGION", "ap-south-1"),
			S3Prefix: getEnv("CERTIFICATES_S3_PREFIX", "certificates/"),
			UseS3:    getEnv("CERTIFICATES_S3_BUCKET", "") != "",
		},
		Redis: RedisConfig{
			URL:             getEnv("REDIS_URL", ""),
			WebhookDedupTTL: getMinutesEnv("REDIS_WEBHOOK_DEDUPE_TTL_MINUTES", 24*time.Hour),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "donations"),
		},
		Astrology: AstrologyConfig{
			ClientID:     getEnv("PROKERALA_CLIENT_ID", ""),
			ClientSecret: getEnv("PROKERALA_CLIENT_SECRET", ""),
			BaseURL:      getEnv("PROKERALA_BASE_URL", "https://api.prokerala.com"),
			HTTPTimeout:  getSecondsEnv("PROKERALA_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Donations: DonationsConfig{
			PendingTimeout:           getMinutesEnv("DONATIONS_PENDING_TIMEOUT_MINUTES", 24*time.Hour),
			ReconcileStaleAfter:      getMinutesEnv("DONATIONS_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:             int32(getIntEnv("DONATIONS_JOB_BATCH_SIZE", 100)),
			CertificateMaxAttempts:   int32(getIntEnv("DONATIONS_CERTIFICATE_MAX_ATTEMPTS", 5)),
			CertificateRetryInterval: getMinutesEnv("DONATIONS_CERTIFICATE_RETRY_INTERVAL_MINUTES", 10*time.Minute),
			CertificateLease:         getMinutesEnv("DONATIONS_CERTIFICATE_LEASE_MINUTES", 5*time.Minute),
			DispatcherWorkers:        getIntEnv("DONATIONS_DISPATCHER_WORKERS", 4),
			DispatcherQueueSize:      getIntEnv("DONATIONS_DISPATCHER_QUEUE_SIZE", 256),
			FrontendURL:              strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		},
		Jobs: JobsConfig{
			ReconcileInterval:           getMinutesEnv("DONATIONS_RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
			ExpirePendingInterval:       getMinutesEnv("DONATIONS_EXPIRE_PENDING_INTERVAL_MINUTES", 30*time.Minute),
			CertificateDispatchInterval: getMinutesEnv("DONATIONS_CERTIFICATE_DISPATCH_INTERVAL_MINUTES", 2*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
