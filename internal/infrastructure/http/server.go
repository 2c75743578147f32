package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/Liwei1020T/appointmentSystem-sub002/internal/adapter/handler/http"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/config"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/middleware/auth"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
	"github.com/Liwei1020T/appointmentSystem-sub002/pkg/logger"
)

// Services are the use cases exposed over HTTP
type Services struct {
	Payments   *usecase.PaymentService
	Vouchers   *usecase.VoucherService
	Ledger     *usecase.PointsLedger
	Notifier   *usecase.Notifier
	Automation *usecase.OrderAutomation
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	services Services
	health   HealthCheck
}

func NewServer(cfg *config.Config, log *zap.Logger, services Services, health HealthCheck) *Server {
	e := echo.New()

	logger.WithEchoLogger(e, log)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(logger.NewEchoRequestLogger(log))
	if len(cfg.Server.HTTP.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.HTTP.AllowOrigins,
			AllowMethods: []string{echo.GET, echo.POST},
		}))
	}
	e.Server.ReadTimeout = cfg.Server.HTTP.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.HTTP.WriteTimeout

	s := &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		services: services,
		health:   health,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := s.config.Server.HTTP.Address()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.handleHealth)

	validate := validator.New()
	paymentHandler := handlers.NewPaymentHandler(s.services.Payments, validate, s.logger)
	voucherHandler := handlers.NewVoucherHandler(s.services.Vouchers, validate, s.logger)
	pointsHandler := handlers.NewPointsHandler(s.services.Ledger, validate)
	notificationHandler := handlers.NewNotificationHandler(s.services.Notifier)
	automationHandler := handlers.NewAutomationHandler(s.services.Automation, s.logger)

	jwtConfig := auth.JWTConfig{
		Secret:    s.config.JWT.Secret,
		Logger:    s.logger,
		SkipPaths: append([]string{"/health"}, s.config.JWT.SkipPaths...),
	}

	v1 := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))

	payments := v1.Group("/payments")
	payments.POST("", paymentHandler.CreatePayment)
	payments.POST("/cash", paymentHandler.CreateCashPayment)
	payments.GET("", paymentHandler.ListMyPayments)
	payments.GET("/:id", paymentHandler.GetPayment)
	payments.POST("/:id/proof", paymentHandler.SubmitProof)

	vouchers := v1.Group("/vouchers")
	vouchers.POST("/redeem", voucherHandler.RedeemByCode)
	vouchers.POST("/:id/redeem", voucherHandler.RedeemByID)
	vouchers.GET("/redeemable", voucherHandler.GetRedeemable)
	vouchers.GET("/mine", voucherHandler.ListMine)
	vouchers.GET("/mine/:id/preview", voucherHandler.PreviewDiscount)

	points := v1.Group("/points")
	points.GET("", pointsHandler.GetBalance)
	points.GET("/history", pointsHandler.GetHistory)

	notifications := v1.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.POST("/:id/read", notificationHandler.MarkRead)

	admin := v1.Group("/admin", auth.RequireAdmin())
	admin.GET("/payments/pending", paymentHandler.ListPendingReview)
	admin.POST("/payments/:id/confirm", paymentHandler.ConfirmPayment)
	admin.POST("/payments/:id/reject", paymentHandler.RejectPayment)
	admin.POST("/automation/run", automationHandler.Run)
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.health != nil {
		if err := s.health(c.Request().Context()); err != nil {
			s.logger.Warn("Health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": s.config.Service.Name,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.config.Service.Name,
	})
}
