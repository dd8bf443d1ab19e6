package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/dcode/internal/auth"
	"github.com/hitoshi/dcode/internal/config"
	"github.com/hitoshi/dcode/internal/dashboard"
	"github.com/hitoshi/dcode/internal/database"
	"github.com/hitoshi/dcode/internal/githubapi"
	"github.com/hitoshi/dcode/internal/handler"
	"github.com/hitoshi/dcode/internal/logger"
	"github.com/hitoshi/dcode/internal/metrics"
	"github.com/hitoshi/dcode/internal/middleware"
	"github.com/hitoshi/dcode/internal/repository"
	"github.com/hitoshi/dcode/internal/security"
	"github.com/hitoshi/dcode/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	redisKeyPrefix     = "dcode:"
	redisChangeChannel = "dcode:session-changes"
	pgChangeChannel    = "dcode_session_changes"
	outboundTimeout    = 15 * time.Second
	shutdownTimeout    = 30 * time.Second
	cleanupInterval    = 24 * time.Hour
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、設定に従って構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.Options{})

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルと形式でログを再設定する
	logger.SetupDefault(w, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("auth_mode", cfg.AuthMode),
		slog.String("session_store", cfg.SessionStore),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// sessionBackend はセッションの永続化先と、インスタンス間の変更通知の組。
type sessionBackend struct {
	kv       repository.KVStore
	notifier repository.ChangeNotifier
	purger   repository.StaleEntryPurger
	health   func(ctx context.Context) error
	close    func() error
}

// openSessionBackend はSESSION_STOREに応じたKVストアを開く。
// redisとpostgresは複数インスタンスで共有されるため変更通知を使う。
// postgresの場合は古いエントリの削除にも対応する。
func openSessionBackend(ctx context.Context, cfg *config.Config) (*sessionBackend, error) {
	noop := func() error { return nil }

	switch cfg.SessionStore {
	case config.StoreMemory:
		return &sessionBackend{kv: repository.NewMemoryKVStore(), close: noop}, nil

	case config.StoreFile:
		kv, err := repository.NewFileKVStore(cfg.SessionFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open session file: %w", err)
		}
		return &sessionBackend{kv: kv, close: noop}, nil

	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		ttl := time.Duration(cfg.DeviceMaxAge) * time.Second
		return &sessionBackend{
			kv:       repository.NewRedisKVStore(client, redisKeyPrefix, ttl),
			notifier: repository.NewRedisChangeNotifier(client, redisChangeChannel, slog.Default()),
			health: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			close: client.Close,
		}, nil

	case config.StorePostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Ping(ctx, db, 5*time.Second); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store := repository.NewPostgresKVStore(db)
		return &sessionBackend{
			kv:       store,
			notifier: repository.NewPostgresChangeNotifier(db, cfg.DatabaseURL, pgChangeChannel, slog.Default()),
			purger:   store,
			health: func(ctx context.Context) error {
				return database.Ping(ctx, db, 2*time.Second)
			},
			close: db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported session store: %q", cfg.SessionStore)
	}
}

// newIdentityProvider はAUTH_MODEに応じたIdPクライアントを生成する。
func newIdentityProvider(cfg *config.Config) auth.IdentityProvider {
	if cfg.AuthMode == config.AuthModeOAuth {
		return auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
			HTTPClient:   security.NewOutboundClient(outboundTimeout),
		})
	}
	return auth.NewMockProvider(auth.MockProviderConfig{
		ClientID:    cfg.GitHubClientID,
		RedirectURL: cfg.GitHubRedirectURL,
		Delay:       cfg.MockLoginDelay,
	})
}

// server はserveコマンドで起動する構成要素。
type server struct {
	http     *http.Server
	registry *auth.SessionRegistry
	limiter  *middleware.RateLimiter
	cleanup  *cleanup.CleanupJob
	backend  *sessionBackend
}

// newServer は設定から全依存関係をワイヤリングする。
func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	// 1. セッションの永続化先
	backend, err := openSessionBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 3. 認証
	provider := newIdentityProvider(cfg)
	registry := auth.NewSessionRegistry(backend.kv, provider, backend.notifier, auth.RegistryConfig{
		InstanceID: uuid.NewString(),
		IdleTTL:    cfg.SessionIdleTTL,
		Session: auth.SessionContextConfig{
			LoginTimeout: cfg.LoginTimeout,
			Sanitizer:    security.NewIdentitySanitizer(),
		},
	})
	authService := auth.NewService(registry, provider, collector)

	// 4. 画面・リポジトリ情報
	dashService := dashboard.NewService(githubapi.NewMockClient(githubapi.DefaultMockClientConfig()), collector)

	// 5. ルーターの構築
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:  slog.Default(),
		Metrics: collector,
		Device: middleware.DeviceConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.DeviceMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		SessionResolver:   authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		DashboardService: dashService,

		HealthCheck:    backend.health,
		MetricsHandler: metrics.Handler(reg),
	})

	s := &server{
		http: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registry: registry,
		limiter:  limiter,
		backend:  backend,
	}

	// postgresでは古いセッションの削除もAPIサーバーで行う
	if backend.purger != nil {
		job := cleanup.NewCleanupJob(backend.purger, slog.Default(), collector)
		job.RetentionDays = cfg.SessionRetentionDays
		s.cleanup = job
	}

	return s, nil
}

// run はHTTPサーバーとバックグラウンド処理を起動し、ctxのキャンセルでグレースフルシャットダウンする。
func (s *server) run(ctx context.Context) error {
	defer s.limiter.Stop()
	defer s.backend.close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.registry.Run(gctx)
	})

	if s.cleanup != nil {
		g.Go(func() error {
			s.cleanup.Start(gctx, cleanupInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	s, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	return s.run(ctx)
}

// runWorker はワーカーモードで起動する。
// PostgreSQLに保存された、保持期間を過ぎたセッションデータを日次で削除する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.SessionStore != config.StorePostgres {
		return fmt.Errorf("worker requires SESSION_STORE=%s, got %q", config.StorePostgres, cfg.SessionStore)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established (worker)")

	job := cleanup.NewCleanupJob(repository.NewPostgresKVStore(db), slog.Default(), nil)
	job.RetentionDays = cfg.SessionRetentionDays
	job.Start(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
