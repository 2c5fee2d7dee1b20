package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/config"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/identity"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/monitoring"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/notification"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/payment"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/redis"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/repository"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/roster"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/security"
	grpctransport "github.com/FlooooowY/SteelMount-Challenge-Engine/internal/transport/grpc"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/usecase"
	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/websocket"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

const (
	wsCleanupInterval = time.Minute
	wsMaxIdle         = 10 * time.Minute
	statsTimeout      = 2 * time.Second
)

// Server wires the challenge engine and its transports
type Server struct {
	config *config.Config
	logger *logrus.Logger

	// gRPC server
	grpcServer *grpc.Server
	listener   net.Listener

	// WebSocket server
	wsService *websocket.WebSocketService
	wsServer  *websocket.HTTPServer

	// Storage
	redisClient *redis.Client
	challenges  repository.ChallengeRepository
	payments    repository.PaymentLedger

	// Security
	rateLimiter *security.RateLimiter

	// Monitoring
	registry         *prometheus.Registry
	metrics          *monitoring.Metrics
	metricsMW        *monitoring.MetricsMiddleware
	prometheusServer *monitoring.PrometheusServer

	// Graceful shutdown
	shutdownWG sync.WaitGroup
	cancel     context.CancelFunc
}

// New creates a new server instance. An empty Redis URL keeps all state in
// memory.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	log := logger.GetLogger()
	srv := &Server{
		config:   cfg,
		logger:   log,
		registry: prometheus.NewRegistry(),
	}

	srv.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv.metrics = monitoring.NewMetricsWithRegistry(srv.registry)
	srv.metricsMW = monitoring.NewMetricsMiddleware(srv.metrics)

	var store interface {
		notification.Service
		websocket.NotificationLister
	}
	checks := map[string]monitoring.HealthCheck{}

	if cfg.Redis.URL != "" {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis client: %w", err)
		}
		srv.redisClient = redisClient
		client := redisClient.GetClient()

		keys := redisClient.Keys()

		srv.challenges = repository.NewRedisChallengeRepository(client, keys)
		srv.payments = repository.NewRedisPaymentLedger(client, keys)
		store = notification.NewRedisStore(client, keys, cfg.Redis.NotificationTTL, cfg.Redis.NotificationKeep)
		checks["redis"] = redisClient.Health
		log.WithField("namespace", keys.Namespace()).Info("Using Redis storage")
	} else {
		srv.challenges = repository.NewInMemoryChallengeRepository()
		srv.payments = repository.NewInMemoryPaymentLedger()
		store = notification.NewMemoryStore()
		log.Warn("Redis URL not configured, using in-memory storage")
	}

	verifier := identity.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// WebSocket push
	srv.wsService = websocket.NewWebSocketService()
	srv.wsService.OnConnectionsChanged(srv.metrics.SetWebSocketConnections)
	srv.wsService.OnPushed(srv.metrics.RecordNotificationsPushed)
	srv.wsServer = websocket.NewHTTPServer(srv.wsService, verifier, store, cfg.Server.WebSocketPort)
	srv.wsServer.Use(srv.metricsMW.HTTPMiddleware)

	deps := usecase.Dependencies{
		Challenges: srv.challenges,
		Payments:   srv.payments,
		Notifier:   notification.NewDispatcher(store, srv.wsService),
		Identity:   identity.ContextProvider{},
		Observer:   srv.metrics,
	}
	payments := usecase.NewPaymentUsecase(deps, payment.NewDeriver(cfg.Escrow.LightningAddress))
	engine := grpctransport.NewEngineService(deps, payments, roster.NewStaticProvider(cfg.Roster.Teams), cfg.Escrow.DefaultFeePercent)

	interceptors := []grpc.UnaryServerInterceptor{
		srv.metricsMW.GRPCMetricsInterceptor(),
		grpctransport.NewAuthInterceptor(verifier).UnaryInterceptor(),
	}
	if cfg.RateLimit.Enabled {
		var limiterClient *goredis.Client
		if srv.redisClient != nil {
			limiterClient = srv.redisClient.GetClient()
		}
		srv.rateLimiter = security.NewRateLimiter(limiterClient, cfg.RateLimit.RequestsPerMinute, time.Minute)
		interceptors = append(interceptors, grpctransport.NewRateLimitInterceptor(srv.rateLimiter, srv.metrics).UnaryInterceptor())
	}

	srv.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxRecvMsgSize(1024*1024),
		grpc.MaxSendMsgSize(1024*1024),
	)
	grpctransport.RegisterChallengeEngineServer(srv.grpcServer, engine)

	srv.prometheusServer = monitoring.NewPrometheusServer(cfg.Monitoring.PrometheusPort, srv.registry, checks)
	srv.prometheusServer.SetStatsProvider(srv.GetStats)

	log.Infof("Server created, gRPC port: %d, WebSocket port: %d, metrics port: %d",
		cfg.Server.GRPCPort, cfg.Server.WebSocketPort, cfg.Monitoring.PrometheusPort)

	return srv, nil
}

// Start binds the gRPC listener and launches every server and background
// routine. It returns once they are running.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting server...")

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.shutdownWG.Add(1)
	go func() {
		defer s.shutdownWG.Done()

		s.logger.Infof("Starting gRPC server on %s", listener.Addr())
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Errorf("gRPC server error: %v", err)
		}
	}()

	if err := s.wsServer.Start(runCtx); err != nil {
		s.abortStart()
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	if err := s.prometheusServer.Start(runCtx); err != nil {
		s.abortStart()
		s.wsServer.Stop(context.Background())
		return fmt.Errorf("failed to start Prometheus server: %w", err)
	}

	s.shutdownWG.Add(1)
	go func() {
		defer s.shutdownWG.Done()
		s.wsService.StartCleanupRoutine(runCtx, wsCleanupInterval, wsMaxIdle)
	}()

	if s.rateLimiter != nil && s.config.RateLimit.CleanupInterval > 0 {
		s.shutdownWG.Add(1)
		go func() {
			defer s.shutdownWG.Done()
			s.rateLimiter.RunCleanup(runCtx, s.config.RateLimit.CleanupInterval)
		}()
	}

	return nil
}

// abortStart tears down what Start launched before a later step failed
func (s *Server) abortStart() {
	s.cancel()
	s.grpcServer.Stop()
	s.shutdownWG.Wait()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping server...")

	if s.cancel != nil {
		s.cancel()
	}

	grpcDone := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(grpcDone)
	}()

	if err := s.wsServer.Stop(ctx); err != nil {
		s.logger.Errorf("Error stopping WebSocket server: %v", err)
	}
	if err := s.prometheusServer.Stop(ctx); err != nil {
		s.logger.Errorf("Error stopping Prometheus server: %v", err)
	}

	select {
	case <-grpcDone:
		s.logger.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("Graceful stop timeout, forcing gRPC stop")
		s.grpcServer.Stop()
	}

	waitDone := make(chan struct{})
	go func() {
		s.shutdownWG.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		s.logger.Info("All goroutines stopped")
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout, some goroutines may still be running")
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Errorf("Error closing Redis client: %v", err)
		}
	}

	return nil
}

// GRPCAddr returns the bound gRPC address once started
func (s *Server) GRPCAddr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// GetWebSocketService returns the WebSocket service
func (s *Server) GetWebSocketService() *websocket.WebSocketService {
	return s.wsService
}

// GetMetrics returns the metrics instance
func (s *Server) GetMetrics() *monitoring.Metrics {
	return s.metrics
}

// GetStats returns runtime statistics of the server components
func (s *Server) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"websocket": s.wsService.GetConnectionStats(),
	}
	if s.rateLimiter != nil {
		stats["rate_limiter"] = s.rateLimiter.GetStats()
	}
	if s.redisClient != nil {
		stats["redis"] = s.redisClient.GetStats()

		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()
		storage, err := s.redisClient.StorageStats(ctx)
		if err != nil {
			s.logger.WithError(err).Debug("Failed to collect storage stats")
		} else {
			stats["storage"] = storage
		}
	}
	return stats
}
