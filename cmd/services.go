package cmd

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/certificate"
	"github.com/vibast-solutions/ms-go-donations/app/events"
	"github.com/vibast-solutions/ms-go-donations/app/metrics"
	"github.com/vibast-solutions/ms-go-donations/app/notification"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
	"github.com/vibast-solutions/ms-go-donations/app/repository"
	"github.com/vibast-solutions/ms-go-donations/app/service"
	"github.com/vibast-solutions/ms-go-donations/config"
)

// services is everything serve and the job commands share.
type services struct {
	cfg       *config.Config
	donations *service.DonationService
	issuer    *service.CertificateIssuer
	templates *service.TemplateService
	metrics   *metrics.Recorder
}

func mustCreateServices() (*services, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	closers := []func(){
		func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		},
	}

	donationRepo := repository.NewDonationRepository(db)
	txnRepo := repository.NewPaymentTransactionRepository(db)
	eventRepo := repository.NewDonationEventRepository(db)
	webhookRepo := repository.NewWebhookDeliveryRepository(db)
	templateRepo := repository.NewCertificateTemplateRepository(db)

	registry := provider.NewRegistry(mustCreateProviders(cfg)...)
	recorder := metrics.NewRecorder()

	donationService := service.NewDonationService(
		donationRepo,
		txnRepo,
		eventRepo,
		webhookRepo,
		registry,
		cfg.Donations,
	)
	donationService.SetMetrics(recorder)

	if client := newRedisClient(cfg.Redis); client != nil {
		donationService.SetWebhookDedupe(repository.NewWebhookDedupe(client, cfg.Redis.WebhookDedupTTL))
		closers = append(closers, func() { _ = client.Close() })
	}

	templateService := service.NewTemplateService(templateRepo)
	issuer := service.NewCertificateIssuer(
		donationRepo,
		eventRepo,
		templateService,
		certificate.NewRenderer(cfg.NGO, cfg.Certificates.LogoPath),
		mustCreateCertificateStore(cfg),
		notification.NewMailer(cfg.Email, cfg.NGO),
		cfg.Donations,
	)
	issuer.SetMetrics(recorder)
	donationService.SetCertificateTrigger(issuer)

	if cfg.NATS.URL != "" {
		publisher, err := events.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			logrus.WithError(err).Warn("NATS unavailable, donation events will not be published")
		} else {
			donationService.SetPublisher(publisher)
			issuer.SetPublisher(publisher)
			closers = append(closers, publisher.Close)
		}
	}

	rt := &services{
		cfg:       cfg,
		donations: donationService,
		issuer:    issuer,
		templates: templateService,
		metrics:   recorder,
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return rt, cleanup
}

func mustCreateProviders(cfg *config.Config) []provider.Provider {
	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		logrus.Warn("Razorpay credentials are not set, checkout requests will fail at the gateway")
	}
	providers := []provider.Provider{
		provider.NewRazorpayProvider(provider.RazorpayConfig{
			KeyID:         cfg.Razorpay.KeyID,
			KeySecret:     cfg.Razorpay.KeySecret,
			WebhookSecret: cfg.Razorpay.WebhookSecret,
		}),
	}

	if cfg.Cashfree.AppID != "" {
		providers = append(providers, provider.NewCashfreeProvider(provider.CashfreeConfig{
			AppID:        cfg.Cashfree.AppID,
			SecretKey:    cfg.Cashfree.SecretKey,
			Environment:  cfg.Cashfree.Environment,
			BaseURL:      cfg.Cashfree.BaseURL,
			HTTPTimeout:  cfg.Cashfree.HTTPTimeout,
			RequestsPerS: cfg.Cashfree.RequestsPerSec,
		}))
	}
	return providers
}

type certificateStore interface {
	Save(ctx context.Context, name string, content []byte) (string, error)
}

func mustCreateCertificateStore(cfg *config.Config) certificateStore {
	if !cfg.Certificates.UseS3 {
		return certificate.NewLocalStore(cfg.Certificates.Dir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := certificate.NewS3Store(ctx, cfg.Certificates)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize S3 certificate store")
	}
	return store
}

// newRedisClient returns nil when Redis is not configured or unreachable.
// Duplicate webhooks are then absorbed by the donation status CAS alone.
func newRedisClient(cfg config.RedisConfig) *redis.Client {
	if cfg.URL == "" {
		logrus.Info("REDIS_URL not set, webhook dedupe disabled")
		return nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logrus.WithError(err).Warn("Invalid REDIS_URL, webhook dedupe disabled")
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis unreachable, webhook dedupe disabled")
		_ = client.Close()
		return nil
	}
	return client
}
