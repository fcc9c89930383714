package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-donations/app/astrology"
	"github.com/vibast-solutions/ms-go-donations/app/controller"
	donationgrpc "github.com/vibast-solutions/ms-go-donations/app/grpc"
	"github.com/vibast-solutions/ms-go-donations/app/types"
	"github.com/vibast-solutions/ms-go-donations/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	webhookBodyLimit      = "1M"
	generatedRequestIDKey = "request_id_generated"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the donations service, plus the certificate dispatcher.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type httpControllers struct {
	donations *controller.DonationController
	admin     *controller.AdminController
	astrology *controller.AstrologyController
	metrics   http.Handler
}

func runServe(_ *cobra.Command, _ []string) {
	svc, cleanup := mustCreateServices()
	defer cleanup()
	cfg := svc.cfg

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	svc.issuer.Start(dispatchCtx)

	controllers := httpControllers{
		donations: controller.NewDonationController(svc.donations),
		admin:     controller.NewAdminController(svc.donations, svc.issuer, svc.templates),
		astrology: controller.NewAstrologyController(astrology.NewClient(cfg.Astrology)),
		metrics:   svc.metrics.Handler(),
	}
	grpcDonationServer := donationgrpc.NewServer(svc.donations, svc.issuer)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(controllers, echoInternalAuthMiddleware, cfg.App.ServiceName)
	grpcSrv, lis := setupGRPCServer(cfg, grpcDonationServer, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	// In-flight deliveries finish; anything still queued stays due for the dispatch job.
	svc.issuer.Stop()
	stopDispatch()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	controllers httpControllers,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(ensureRequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", controllers.donations.Health)
	e.GET("/metrics", echo.WrapHandler(controllers.metrics))

	donations := e.Group("/donations")
	donations.POST("/create-order", controllers.donations.CreateOrder)
	donations.POST("/verify", controllers.donations.Verify)

	webhooks := e.Group("/webhooks", echomiddleware.BodyLimit(webhookBodyLimit))
	webhooks.POST("/razorpay", controllers.donations.RazorpayWebhook)
	webhooks.POST("/cashfree", controllers.donations.CashfreeWebhook)

	astrologyRoutes := e.Group("/astrology")
	astrologyRoutes.POST("/kundali", controllers.astrology.Kundali)
	astrologyRoutes.POST("/matching", controllers.astrology.Matching)
	astrologyRoutes.POST("/kaal-sarp-dosh", controllers.astrology.KaalSarpDosh)
	astrologyRoutes.POST("/sade-sati", controllers.astrology.SadeSati)
	astrologyRoutes.POST("/mangal-dosh", controllers.astrology.MangalDosh)

	admin := e.Group("/admin", requireRequestID(), internalAuthMiddleware.RequireInternalAccess(appServiceName))
	admin.GET("/donations", controllers.admin.ListDonations)
	admin.GET("/donations/:id", controllers.admin.GetDonation)
	admin.POST("/donations/:id/resend-certificate", controllers.admin.ResendCertificate)
	admin.POST("/donations/:id/refund", controllers.admin.RefundDonation)
	admin.GET("/template", controllers.admin.GetTemplate)
	admin.PUT("/template", controllers.admin.UpdateTemplate)

	return e
}

// ensureRequestID fills in a request id for donor traffic, which cannot be
// expected to send one.
func ensureRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				requestID = uuid.NewString()
				ctx.Request().Header.Set(echo.HeaderXRequestID, requestID)
				ctx.Set(generatedRequestIDKey, true)
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

// requireRequestID rejects internal callers that did not send their own id.
func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if generated, _ := ctx.Get(generatedRequestIDKey).(bool); generated {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			return next(ctx)
		}
	}
}

func setupGRPCServer(
	cfg *config.Config,
	donationServer *donationgrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			donationgrpc.RecoveryInterceptor(),
			skipForMethods(donationgrpc.RequestIDInterceptor(), healthpb.Health_Check_FullMethodName),
			donationgrpc.LoggingInterceptor(),
			skipForMethods(internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName), healthpb.Health_Check_FullMethodName),
		),
	)
	donationgrpc.RegisterDonationsServiceServer(grpcSrv, donationServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(donationgrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return grpcSrv, lis
}

// skipForMethods lets calls such as the health check bypass an interceptor.
func skipForMethods(interceptor grpc.UnaryServerInterceptor, methods ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		skip[m] = struct{}{}
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, ok := skip[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		return interceptor(ctx, req, info, handler)
	}
}
