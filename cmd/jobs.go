package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-donations/config"
)

var (
	workerMode bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Settle stale pending donations from gateway order status",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ReconcileInterval },
			func(s *services, ctx context.Context) error {
				return s.donations.RunReconcileBatch(ctx)
			},
		)
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run expiration-related commands",
}

var expirePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Mark abandoned pending donations as failed",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire_pending",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpirePendingInterval },
			func(s *services, ctx context.Context) error {
				return s.donations.RunExpirePendingBatch(ctx)
			},
		)
	},
}

var certificatesCmd = &cobra.Command{
	Use:   "certificates",
	Short: "Run 80G certificate related commands",
}

var certificatesDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver due certificates for successful donations",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"certificates_dispatch",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.CertificateDispatchInterval },
			func(s *services, ctx context.Context) error {
				return s.issuer.RunDispatchBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(certificatesCmd)
	expireCmd.AddCommand(expirePendingCmd)
	certificatesCmd.AddCommand(certificatesDispatchCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *services, ctx context.Context) error,
) {
	svc, cleanup := mustCreateServices()
	defer cleanup()

	// Donations settled by a job enqueue their certificate like any other path.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.issuer.Start(ctx)
	defer svc.issuer.Stop()

	job := func() error { return fn(svc, ctx) }
	if workerMode {
		runWorker(name, intervalResolver(svc.cfg), svc.metrics, job)
		return
	}

	runJob(name, svc.metrics, job)
}

type jobRecorder interface {
	JobRun(job, result string)
}

func runWorker(name string, interval time.Duration, recorder jobRecorder, job func() error) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runJob(name, recorder, job)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, recorder, job)
		}
	}
}

func runJob(name string, recorder jobRecorder, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		recorder.JobRun(name, "failed")
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	recorder.JobRun(name, "completed")
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
