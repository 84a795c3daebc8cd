package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/boardposts/internal/config"
	"github.com/2beens/boardposts/internal/db"
	"github.com/2beens/boardposts/internal/middleware"
	"github.com/2beens/boardposts/internal/posts"
	"github.com/2beens/boardposts/internal/telemetry/metrics"
	"github.com/2beens/boardposts/internal/telemetry/tracing"
	"github.com/2beens/boardposts/pkg"
)

const serviceName = "boardposts"

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	listener          net.Listener
	metricsListener   net.Listener

	config     *config.Config
	dbProvider db.Provider

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config *config.Config
	// DBProvider is built from Config.DB when nil.
	DBProvider db.Provider
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.Setup(cfg.TracingEnabled, serviceName)
	if err != nil {
		return nil, err
	}

	var extraCollectors []prometheus.Collector
	dbProvider := params.DBProvider
	if dbProvider == nil {
		dbProvider, extraCollectors, err = newDBProvider(ctx, cfg.DB)
		if err != nil {
			otelShutdown()
			return nil, err
		}
	}

	pingDB(ctx, dbProvider)

	promRegistry := metrics.SetupPrometheus(extraCollectors...)
	metricsManager := metrics.NewManager(serviceName, "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	return &Server{
		config:         cfg,
		dbProvider:     dbProvider,
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func newDBProvider(ctx context.Context, cfg config.DB) (db.Provider, []prometheus.Collector, error) {
	params := db.Params{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Name:           cfg.Name,
		User:           cfg.User,
		Password:       cfg.Password,
		SSLMode:        cfg.SSLMode,
		TracingEnabled: cfg.TracingEnabled,
	}

	if !cfg.Pooling {
		log.Debugf("using per-request db connections to %s/%s", cfg.Host, cfg.Name)
		provider, err := db.NewConnProvider(params)
		if err != nil {
			return nil, nil, fmt.Errorf("new db conn provider: %w", err)
		}
		return provider, nil, nil
	}

	log.Debugf("using db connection pool to %s/%s", cfg.Host, cfg.Name)
	provider, err := db.NewPoolProvider(ctx, params)
	if err != nil {
		return nil, nil, fmt.Errorf("new db pool: %w", err)
	}
	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		provider.Pool(),
		map[string]string{"db_name": cfg.Name},
	)
	return provider, []prometheus.Collector{pgxpoolCollector}, nil
}

// pingDB only warns, the service starts without a database and answers 503
// until it is reachable.
func pingDB(ctx context.Context, provider db.Provider) {
	conn, err := provider.Acquire(ctx)
	if err != nil {
		log.Warnf("failed to ping db: %s", err)
		return
	}
	if err := conn.Release(ctx); err != nil {
		log.Warnf("release db ping connection: %s", err)
	}
}

type healthResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSONResponseOK(w, healthResponse{OK: true})
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	if s.config.TracingEnabled {
		r.Use(otelmux.Middleware("main-router"))
	}

	r.HandleFunc("/", s.handleHealth).Methods("GET").Name("health")

	postsHandler := posts.NewHandler(
		posts.NewRepo(s.dbProvider),
		s.metricsManager,
	)
	postsHandler.SetupRoutes(r, "")

	// the bundled frontend calls the same routes under /api
	if apiPrefix := strings.TrimSuffix(s.config.APIPrefix, "/"); apiPrefix != "" {
		postsHandler.SetupRoutes(r.PathPrefix(apiPrefix).Subrouter(), "api-")
	}

	// metrics wrap recovery so a recovered panic is counted as a 500
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// Serve binds both listeners and serves them in the background.
func (s *Server) Serve(host string, port int) error {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", ipAndPort)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", ipAndPort, err)
	}

	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	metricsListener, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("metrics listen on %s: %w", metricsAddr, err)
	}

	s.listener = listener
	s.metricsListener = metricsListener

	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	s.metricsHttpServer = &http.Server{
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", listener.Addr())
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsListener.Addr())
		err := s.metricsHttpServer.Serve(metricsListener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
	return nil
}

// Addr is the bound address of the main listener, nil before Serve.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) MetricsAddr() net.Addr {
	if s.metricsListener == nil {
		return nil
	}
	return s.metricsListener.Addr()
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests before the db provider goes away
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown http server: %s", err)
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown metrics http server: %s", err)
		}
		log.Warnln("metrics server shut down")
	}

	if s.dbProvider != nil {
		log.Debugln("closing db provider ...")
		s.dbProvider.Close() // blocking operation
		log.Debugln("db provider closed")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeConnections.Inc()
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeConnections.Dec()
	default:
		// do nothing
	}
}
