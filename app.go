package reelthread

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/nasermirzaei89/env"
	"github.com/nasermirzaei89/reelthread/api"
	authcontext "github.com/nasermirzaei89/reelthread/authentication/context"
	"github.com/nasermirzaei89/reelthread/authorization"
	"github.com/nasermirzaei89/reelthread/authorization/casbin"
	reelredis "github.com/nasermirzaei89/reelthread/db/redis"
	"github.com/nasermirzaei89/reelthread/db/sqlite3"
	"github.com/nasermirzaei89/reelthread/discuss"
	"github.com/nasermirzaei89/reelthread/notify"
	"github.com/nasermirzaei89/reelthread/profiles"
	"github.com/nasermirzaei89/reelthread/queue/kafka"
	"github.com/nasermirzaei89/reelthread/reactions"
	"github.com/nasermirzaei89/reelthread/replies"
	"github.com/nasermirzaei89/reelthread/server"
	"github.com/nasermirzaei89/reelthread/thread"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

type App struct {
	server    *server.Server
	handler   *api.Handler
	db        *sql.DB
	redis     *goredis.Client
	publisher *kafka.CommentPublisher
	notifier  *notify.Async
}

//go:embed policy.csv
var defaultAuthorizationPolicyContent string

func NewApp(ctx context.Context) (*App, error) {
	db, err := sqlite3.Open(ctx, env.GetString("DB_DSN", "file::memory:?cache=shared"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app := &App{
		server:    newServer(),
		handler:   nil,
		db:        db,
		redis:     nil,
		publisher: nil,
		notifier:  nil,
	}

	err = app.init(ctx)
	if err != nil {
		app.close(ctx)

		return nil, err
	}

	return app, nil
}

func (app *App) init(ctx context.Context) error {
	commentRepo := sqlite3.NewCommentRepository(app.db)
	profileRepo := sqlite3.NewProfileRepository(app.db)
	likeRepo := sqlite3.NewLikeRepository(app.db)

	authzProvider, err := newAuthorizationProvider(ctx, app.db)
	if err != nil {
		return fmt.Errorf("failed to create authorization provider: %w", err)
	}

	authzSvc, err := authorization.NewService(authzProvider)
	if err != nil {
		return fmt.Errorf("failed to create authorization service: %w", err)
	}

	authzClient := authorization.NewClient(authzSvc)

	// stored admin grants outlive restarts, so ids dropped from the list are revoked here
	err = authzClient.SyncGroup(ctx, authcontext.Admin, env.GetStringSlice("ADMIN_USER_IDS", []string{})...)
	if err != nil {
		return fmt.Errorf("failed to sync admins: %w", err)
	}

	var publisher discuss.EventPublisher

	if brokers := env.GetStringSlice("KAFKA_BROKERS", []string{}); len(brokers) > 0 {
		app.publisher = kafka.NewCommentPublisher(kafka.NewWriter(brokers, env.GetString("KAFKA_TOPIC", kafka.DefaultTopic)))
		publisher = app.publisher
	}

	discussSvc := discuss.NewAuthorizationMiddleware(authzClient, discuss.NewService(commentRepo, publisher))
	profilesSvc := profiles.NewService(profileRepo, authzClient)
	reactionsSvc := reactions.NewService(likeRepo, authzClient)

	var inbox *notify.Inbox

	if addr := env.GetString("REDIS_ADDR", ""); addr != "" {
		app.redis, err = reelredis.NewClient(
			ctx,
			addr,
			env.GetString("REDIS_PASSWORD", ""),
			env.GetInt("REDIS_DB", 0),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		inbox = notify.NewInbox(reelredis.NewInboxRepository(app.redis, reelredis.DefaultInboxTTL))
	}

	dispatcher, err := newDispatcher(ctx)
	if err != nil {
		return fmt.Errorf("failed to create push dispatcher: %w", err)
	}

	app.notifier = notify.NewAsync(
		dispatcher,
		inbox,
		notify.NewMetrics(prometheus.DefaultRegisterer),
		getDurationFromEnv("PUSH_TIMEOUT", notify.DefaultTimeout),
	)

	submitter := replies.NewSubmitter(
		discussSvc,
		profilesSvc,
		app.notifier,
		env.GetInt("REPLY_MENTION_DEPTH", replies.DefaultMentionDepth),
	)

	app.handler = api.NewHandler(
		discussSvc,
		profilesSvc,
		reactionsSvc,
		submitter,
		inbox,
		promhttp.Handler(),
		newThreadConfig(),
	)

	return nil
}

func (app *App) Run(ctx context.Context) error {
	// Handle SIGINT (CTRL+C) gracefully.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	defer app.close(ctx)

	err := app.server.Run(ctx, app.handler)
	if err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	return nil
}

func (app *App) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if app.notifier != nil {
		closeCtx, cancel := context.WithTimeout(ctx, notify.DefaultTimeout)

		err := app.notifier.Close(closeCtx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to wait for pending notifications", "error", err)
		}

		cancel()
	}

	if app.publisher != nil {
		err := app.publisher.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close event publisher", "error", err)
		}
	}

	if app.redis != nil {
		err := app.redis.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close redis client", "error", err)
		}
	}

	if app.db != nil {
		err := app.db.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close database", "error", err)
		}
	}
}

func newServer() *server.Server {
	server := &server.Server{
		Port: env.GetString("PORT", server.DefaultPort),
		Host: env.GetString("HOST", ""),
		TLS: server.ServerTLS{
			Enabled: env.GetBool("TLS_ENABLED", false),
			Mode:    env.GetString("TLS_MODE", server.DefaultTLSMode),
			AutoCert: &server.ServerTLSAutoCert{
				CacheDir: env.GetString("TLS_AUTOCERT_CACHE_DIR", "./cert-cache"),
				Domains:  env.GetStringSlice("TLS_AUTOCERT_DOMAINS", []string{}),
				Email:    env.GetString("TLS_AUTOCERT_EMAIL", ""),
			},
			CertFile: env.GetString("TLS_CERT_FILE", ""),
			KeyFile:  env.GetString("TLS_KEY_FILE", ""),
		},
	}

	return server
}

func newDispatcher(ctx context.Context) (notify.Dispatcher, error) {
	provider := env.GetString("PUSH_PROVIDER", notify.ProviderExpo)

	switch provider {
	case notify.ProviderExpo:
		return notify.NewExpoDispatcher(
			&http.Client{Timeout: getDurationFromEnv("PUSH_TIMEOUT", notify.DefaultTimeout)},
			env.GetString("EXPO_PUSH_URL", notify.DefaultExpoPushURL),
			env.GetString("EXPO_ACCESS_TOKEN", ""),
		), nil
	case notify.ProviderFCM:
		client, err := notify.NewFirebaseMessagingClient(ctx, env.GetString("FIREBASE_CREDENTIALS_FILE", ""))
		if err != nil {
			return nil, fmt.Errorf("failed to create firebase messaging client: %w", err)
		}

		return notify.NewFCMDispatcher(client), nil
	case notify.ProviderNone:
		return notify.NopDispatcher{}, nil
	default:
		return nil, &UnknownPushProviderError{Provider: provider}
	}
}

type UnknownPushProviderError struct {
	Provider string
}

func (err UnknownPushProviderError) Error() string {
	return fmt.Sprintf("unknown push provider %q", err.Provider)
}

func GetLogLevelFromEnv() slog.Level {
	levelStr := env.GetString("LOG_LEVEL", "info")
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unknown log level, defaulting to info", "level", levelStr)

		return slog.LevelInfo
	}
}

func newThreadConfig() api.ThreadConfig {
	return api.ThreadConfig{
		IndentCap: env.GetInt("THREAD_INDENT_CAP", thread.DefaultIndentCap),
		MaxDepth:  env.GetInt("THREAD_MAX_DEPTH", thread.DefaultMaxDepth),
	}
}

// getDurationFromEnv parses values like "10s". The env package has no duration getter.
func getDurationFromEnv(key string, def time.Duration) time.Duration {
	str := env.GetString(key, "")
	if str == "" {
		return def
	}

	v, err := time.ParseDuration(str)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", str, "default", def)

		return def
	}

	return v
}

func newAuthorizationProvider(ctx context.Context, db *sql.DB) (*casbin.AuthorizationProvider, error) {
	adapter, err := casbin.NewSQLAdapter(db, "sqlite3", "casbin_rule")
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization adapter: %w", err)
	}

	provider, err := casbin.NewAuthorizationProvider(adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization provider: %w", err)
	}

	policyContent, err := loadPolicyContent()
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization policy content: %w", err)
	}

	err = provider.AddPolicyFromCSV(ctx, policyContent)
	if err != nil {
		return nil, fmt.Errorf("failed to add authorization policy from csv: %w", err)
	}

	return provider, nil
}

func loadPolicyContent() (string, error) {
	policyFilePath := env.GetString("AUTHORIZATION_POLICY_FILE", "")

	if policyFilePath == "" {
		return defaultAuthorizationPolicyContent, nil
	}

	content, err := os.ReadFile(policyFilePath) // nolint:gosec
	if err != nil {
		return "", fmt.Errorf("failed to read policy file %q: %w", policyFilePath, err)
	}

	return string(content), nil
}
