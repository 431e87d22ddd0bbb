package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mutaician/p2p-coin-flip/internal/api"
	"github.com/mutaician/p2p-coin-flip/internal/archive"
	"github.com/mutaician/p2p-coin-flip/internal/discovery"
	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/event"
	"github.com/mutaician/p2p-coin-flip/internal/kv"
	"github.com/mutaician/p2p-coin-flip/internal/ledger"
	"github.com/mutaician/p2p-coin-flip/internal/participant"
	"github.com/mutaician/p2p-coin-flip/internal/session"
	"github.com/mutaician/p2p-coin-flip/internal/telemetry"
)

const healthService = "coinflip"

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	// Postgres is optional; the archive is disabled when Addr is empty.
	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	Game struct {
		FlipDelay       time.Duration
		JoinSettle      time.Duration
		DiscoveryWindow time.Duration
		CollectWindow   time.Duration
		WinnersWindow   time.Duration
		SweepInterval   time.Duration
		Prune           bool
	}

	Log struct {
		Level  string
		Format string
	}
}

func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Redis.Addrs = []string{"localhost:6379"}
	c.Redis.Prefix = "coinflip"
	c.Game.FlipDelay = 3 * time.Second
	c.Game.JoinSettle = 300 * time.Millisecond
	c.Game.DiscoveryWindow = discovery.DefaultWindow
	c.Game.CollectWindow = discovery.DefaultCollectWindow
	c.Game.WinnersWindow = ledger.DefaultCollectWindow
	c.Game.SweepInterval = discovery.DefaultSweepInterval
	c.Game.Prune = true
	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// Server hosts one local participant: its HTTP API and event stream, a gRPC
// health endpoint, metrics and the background sweep of expired sessions.
type Server struct {
	c Config

	eb      *event.Bus
	stream  *api.Stream
	metrics *prometheus.Registry

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		store       *session.Store
		session     *session.Service
		discovery   *discovery.Index
		ledger      *ledger.Service
		archive     *archive.Service
		participant *participant.Participant
	}

	engine *gin.Engine
	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	s.stream = api.NewStream(0)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r, nil); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initPostgres() error {
	if s.c.Postgres.Addr == "" {
		slog.Info("server: postgres not configured, archive disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Addr, s.c.Postgres.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() error {
	store := kv.NewRedis(kv.RedisConfig{
		Redis:  s.infra.redis,
		Prefix: s.c.Redis.Prefix,
	})

	s.service.store = session.NewStore(session.StoreConfig{KV: store})

	s.service.session = session.NewService(session.Config{
		Store:      s.service.store,
		EventBus:   s.eb,
		FlipDelay:  s.c.Game.FlipDelay,
		JoinSettle: s.c.Game.JoinSettle,
	})

	s.service.discovery = discovery.New(discovery.Config{
		Store:         s.service.store,
		Window:        s.c.Game.DiscoveryWindow,
		CollectWindow: s.c.Game.CollectWindow,
		Prune:         s.c.Game.Prune,
		SweepInterval: s.c.Game.SweepInterval,
	})

	s.service.ledger = ledger.NewService(ledger.Config{
		EventBus:      s.eb,
		KV:            store,
		CollectWindow: s.c.Game.WinnersWindow,
	})

	if s.infra.postgres != nil {
		s.service.archive = archive.NewService(archive.Config{
			EventBus: s.eb,
			DB:       s.infra.postgres,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.service.archive.Migrate(ctx); err != nil {
			return err
		}
	}

	s.metrics = prometheus.NewRegistry()
	s.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if _, err := telemetry.NewMetrics(s.metrics, s.eb); err != nil {
		return err
	}

	p, err := participant.New(participant.Config{
		Session:   s.service.session,
		Store:     s.service.store,
		Discovery: s.service.discovery,
		Ledger:    s.service.ledger,
		OnUpdate:  s.onUpdate,
	})
	if err != nil {
		return err
	}
	s.service.participant = p

	slog.Info("server: participant ready", "participant", p.ID())
	return nil
}

func (s *Server) onUpdate(ss domain.Session) {
	slog.Debug("server: session update", "session", ss.ID, "status", ss.Status)
	s.stream.PublishSession(ss)
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{})))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Participant:  s.service.participant,
		Session:      s.service.session,
		Stream:       s.stream,
		Redis:        s.infra.redis,
		PubsubPrefix: s.c.Redis.Prefix,
	})

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor(), telemetry.GRPCStreamInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(healthService, healthpb.HealthCheckResponse_NOT_SERVING)

	s.engine = e
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Start serves gRPC and HTTP and sweeps expired sessions until Shutdown. The
// sweep stops when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		return fmt.Errorf("server: gRPC listen: %w", err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		return s.service.discovery.Run(ctx)
	})

	s.health.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.stream.Close()
	s.service.participant.Close()
	s.eb.Stop()

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}
	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Participant() *participant.Participant { return s.service.participant }
func (s *Server) Discovery() *discovery.Index           { return s.service.discovery }
func (s *Server) Ledger() *ledger.Service               { return s.service.ledger }

// Archive is nil when Postgres is not configured.
func (s *Server) Archive() *archive.Service { return s.service.archive }
