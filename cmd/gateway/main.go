package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"protection-gateway/protection"
	"protection-gateway/protection/application"
	"protection-gateway/protection/domain"
	"protection-gateway/protection/infra"
	"protection-gateway/protection/mgmt"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.logLevel); err == nil {
		logger = logger.Level(lvl)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error().Err(err).Msg("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// stores: Redis quando configurado (estado compartilhado entre
	// instâncias), memória caso contrário
	var (
		counters   domain.CounterStore
		registry   domain.BlockRegistry
		violations domain.ViolationLog
		stats      domain.StatsStore
		statsRead  domain.StatsReader

		// preenchidos só no backend em memória, para o janitor replicar a
		// expiração que o Redis faz via TTL
		memCounters   *infra.MemoryCounterStore
		memViolations *infra.MemoryViolationLog
	)
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}

		counters = infra.NewRedisCounterStore(rdb)
		registry = infra.NewRedisBlockRegistry(rdb)
		violations = infra.NewRedisViolationLog(rdb,
			infra.WithViolationTTL(cfg.violationTTL))
		rs := infra.NewRedisStatsStore(rdb)
		stats, statsRead = rs, rs
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, using in-memory stores (single instance only)")
		memCounters = infra.NewMemoryCounterStore()
		memViolations = infra.NewMemoryViolationLog(50, cfg.violationTTL)
		counters = memCounters
		registry = infra.NewMemoryBlockRegistry()
		violations = memViolations
		ms := infra.NewMemoryStatsStore()
		stats, statsRead = ms, ms
	}

	settings, err := application.NewSettingsManager(cfg.settings)
	if err != nil {
		log.Fatalf("settings error: %v", err)
	}

	var resolver domain.RegionResolver
	if cfg.geoipPath != "" {
		mm, err := infra.NewMaxMindResolver(cfg.geoipPath)
		if err != nil {
			log.Fatalf("geoip error: %v", err)
		}
		defer func() { _ = mm.Close() }()
		resolver = mm
	}

	var edgeClient domain.EdgeClient
	if cfg.cfAPIToken != "" && cfg.cfZoneID != "" {
		edgeClient, err = infra.NewCloudflareEdge(cfg.cfAPIToken, cfg.cfZoneID)
		if err != nil {
			log.Fatalf("cloudflare error: %v", err)
		}
	}
	edge := application.NewEdgeCoordinator(edgeClient, logger)

	recorder := &application.Recorder{
		Violations: violations,
		Registry:   registry,
		Settings:   settings,
		Edge:       edge,
		Log:        logger,
	}

	metrics := application.NewMetrics(prometheus.DefaultRegisterer)

	pipeline := &application.Pipeline{
		Registry: registry,
		Geo:      &application.GeoFilter{Resolver: resolver, Settings: settings, Log: logger},
		Limiter:  &application.RateLimiter{Counters: counters, Settings: settings, Log: logger},
		Recorder: recorder,
		Edge:     edge,
		Settings: settings,
		Stats:    stats,
		Metrics:  metrics,
		Log:      logger,
	}

	startSweeper(ctx, registry, cfg.sweepEvery, logger)
	startMemoryJanitor(ctx, memCounters, memViolations, settings, cfg.sweepEvery, logger)
	edge.ResyncLoop(ctx, registry, cfg.edgeResyncEvery)

	h := http.Handler(proxy)
	h = protection.ConcurrencyMiddleware(protection.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	h = protection.Middleware(protection.Options{
		Pipeline:           pipeline,
		EdgeIPHeader:       cfg.edgeIPHeader,
		TrustXForwardedFor: cfg.trustXFF,
		UserFn: func(r *http.Request) string {
			if cfg.userIDHeader == "" {
				return ""
			}
			return strings.TrimSpace(r.Header.Get(cfg.userIDHeader))
		},
		AddDecisionHeaders: cfg.addHeaders,
	})(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	adminHandler := &mgmt.Handler{
		Registry:      registry,
		Violations:    violations,
		Stats:         statsRead,
		Settings:      settings,
		Edge:          edge,
		Log:           logger,
		AdminToken:    cfg.adminToken,
		WebhookSecret: cfg.webhookSecret,
	}
	adminSrv := &http.Server{
		Addr:              cfg.adminAddr,
		Handler:           adminHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
		_ = adminSrv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info().Str("addr", cfg.adminAddr).Msg("management api listening")
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("admin server error: %v", err)
		}
	}()

	logger.Info().
		Str("addr", cfg.listenAddr).
		Str("upstream", target.String()).
		Bool("redis", cfg.redisAddr != "").
		Bool("edge", edge.Enabled()).
		Bool("geoip", resolver != nil).
		Msg("protection gateway listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// startSweeper varre entradas de bloqueio expiradas periodicamente. A
// correção não depende disso (a leitura já ignora entradas vencidas); a
// varredura só recupera espaço.
func startSweeper(ctx context.Context, registry domain.BlockRegistry, every time.Duration, logger zerolog.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				removed, err := registry.Sweep(ctx, time.Now())
				if err != nil {
					logger.Error().Err(err).Msg("registry sweep failed")
					continue
				}
				if removed > 0 {
					logger.Debug().Int("removed", removed).Msg("registry sweep")
				}
			}
		}
	}()
}

// startMemoryJanitor replica, nos stores em memória, a expiração que o Redis
// faz via TTL: remove janelas de contador abandonadas (chaves rotacionando
// crescem sem limite sem isso) e violações mais velhas que o TTL. No-op
// quando o backend é Redis.
func startMemoryJanitor(ctx context.Context, counters *infra.MemoryCounterStore, violations *infra.MemoryViolationLog, settings *application.SettingsManager, every time.Duration, logger zerolog.Logger) {
	if counters == nil || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				now := time.Now()
				counters.Sweep(maxScopeWindow(settings.Current().Limits), now)
				if violations != nil {
					if removed := violations.Sweep(now); removed > 0 {
						logger.Debug().Int("removed", removed).Msg("violation log sweep")
					}
				}
			}
		}
	}()
}

// maxScopeWindow retorna a maior janela configurada entre os escopos; varrer
// com ela nunca descarta um timestamp que algum escopo ainda enxerga.
func maxScopeWindow(l application.Limits) time.Duration {
	out := l.Global.Window
	for _, w := range []time.Duration{l.PerClient.Window, l.PerUser.Window, l.PerRoute.Window} {
		if w > out {
			out = w
		}
	}
	return out
}

type config struct {
	listenAddr  string
	adminAddr   string
	upstreamURL string

	redisAddr     string
	redisPassword string
	redisDB       int

	edgeIPHeader string
	trustXFF     bool
	userIDHeader string
	addHeaders   bool

	adminToken    string
	webhookSecret string

	cfAPIToken string
	cfZoneID   string
	geoipPath  string

	concurrencyMax     int
	concurrencyTimeout time.Duration

	sweepEvery      time.Duration
	edgeResyncEvery time.Duration
	violationTTL    time.Duration

	logLevel string

	settings application.Settings
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.adminAddr = getenvDefault("ADMIN_ADDR", ":9090")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")

	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)

	cfg.edgeIPHeader = getenvDefault("EDGE_IP_HEADER", "CF-Connecting-IP")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", true)
	cfg.userIDHeader = getenvDefault("USER_ID_HEADER", "X-User-ID")
	cfg.addHeaders = getenvBoolDefault("ADD_DECISION_HEADERS", false)

	cfg.adminToken = os.Getenv("ADMIN_TOKEN")
	cfg.webhookSecret = os.Getenv("WEBHOOK_SECRET")

	cfg.cfAPIToken = os.Getenv("CLOUDFLARE_API_TOKEN")
	cfg.cfZoneID = os.Getenv("CLOUDFLARE_ZONE_ID")
	cfg.geoipPath = os.Getenv("GEOIP_DB_PATH")

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 500)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.sweepEvery = getenvDurationDefault("SWEEP_EVERY", 5*time.Minute)
	cfg.edgeResyncEvery = getenvDurationDefault("EDGE_RESYNC_EVERY", 10*time.Minute)
	cfg.violationTTL = getenvDurationDefault("VIOLATION_TTL", time.Hour)

	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")

	s := application.DefaultSettings()
	s.Limits.Global = scopeFromEnv("RATE_GLOBAL", s.Limits.Global)
	s.Limits.PerClient = scopeFromEnv("RATE_PER_IP", s.Limits.PerClient)
	s.Limits.PerUser = scopeFromEnv("RATE_PER_USER", s.Limits.PerUser)
	s.Limits.PerRoute = scopeFromEnv("RATE_PER_ROUTE", s.Limits.PerRoute)
	s.EscalationThreshold = getenvIntDefault("ESCALATION_THRESHOLD", s.EscalationThreshold)
	s.EscalationWindow = getenvDurationDefault("ESCALATION_WINDOW", s.EscalationWindow)
	s.BlockDurations.Short = getenvDurationDefault("BLOCK_SHORT", s.BlockDurations.Short)
	s.BlockDurations.Extended = getenvDurationDefault("BLOCK_EXTENDED", s.BlockDurations.Extended)
	s.BlockDurations.Escalated = getenvDurationDefault("BLOCK_ESCALATED", s.BlockDurations.Escalated)
	s.DeniedRegions = splitList(os.Getenv("GEO_DENY"))
	s.AllowedRegions = splitList(os.Getenv("GEO_ALLOW"))
	cfg.settings = s

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if err := s.Validate(); err != nil {
		return config{}, err
	}
	if (cfg.cfAPIToken == "") != (cfg.cfZoneID == "") {
		return config{}, errors.New("CLOUDFLARE_API_TOKEN and CLOUDFLARE_ZONE_ID must be set together")
	}
	return cfg, nil
}

func scopeFromEnv(prefix string, def application.ScopeLimit) application.ScopeLimit {
	out := def
	if v, ok := getenvInt(prefix + "_MAX"); ok {
		out.Max = int64(v)
	}
	if v, ok := getenvInt(prefix + "_WINDOW_SECONDS"); ok {
		out.Window = time.Duration(v) * time.Second
	}
	return out
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
