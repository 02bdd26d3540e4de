// Command yourtranscript is a YouTube transcript extraction worker.
//
// Serves POST /extract (synchronous) and POST /extract-async (result POSTed to a
// caller-supplied callback URL) over HTTP, the same operations as MCP tools on /mcp,
// and optionally consumes async jobs from a RabbitMQ queue.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bssilva06/yourtranscript/internal/api"
	"github.com/bssilva06/yourtranscript/internal/engine"
	"github.com/bssilva06/yourtranscript/internal/engine/jobs"
	"github.com/bssilva06/yourtranscript/internal/engine/sources"
	"github.com/bssilva06/yourtranscript/internal/jobserver"
	"github.com/bssilva06/yourtranscript/internal/queue"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using process environment")
	}
	logger := newLogger(env.Str("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	c := loadConfig()

	yt := sources.NewYouTube(c)
	dispatcher := jobs.NewDispatcher(
		jobs.NewExtractor(yt, c),
		jobs.NewDeliverer(c.CallbackTimeout),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if amqpURL := env.Str("AMQP_URL", ""); amqpURL != "" {
		wg.Go(func() {
			runQueue(ctx, amqpURL, env.Str("AMQP_QUEUE", queue.DefaultQueue), dispatcher)
		})
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    api.ServiceName,
		Version: version,
	}, nil)
	jobserver.RegisterTools(server, dispatcher)

	port := env.Str("API_PORT", "8000")
	slog.Info("starting yourtranscript",
		slog.String("version", version),
		slog.String("port", port),
		slog.String("languages", strings.Join(c.Languages, ",")),
	)

	cfg := api.NewConfig(dispatcher, c, version, port)
	cfg.Context = ctx
	cfg.Logger = logger
	err := mcpserver.Run(server, cfg)

	// The queue consumer finishes its in-flight job before main exits.
	stop()
	wg.Wait()

	if err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig() engine.Config {
	c := engine.Config{
		Languages:             env.List("TRANSCRIPT_LANGUAGES", strings.Join(engine.DefaultLanguages, ",")),
		ReportMatchedLanguage: envBool("REPORT_MATCHED_LANGUAGE", false),
		FetchTimeout:          env.Duration("FETCH_TIMEOUT", 30*time.Second),
		CallbackTimeout:       env.Duration("CALLBACK_TIMEOUT", 30*time.Second),
		YouTubeRPS:            env.Float("YOUTUBE_RPS", 0),
		YouTubeBurst:          env.Int("YOUTUBE_BURST", 1),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	if path := env.Str("CONFIG_FILE", ""); path != "" {
		if err := engine.LoadConfigFile(path, &c); err != nil {
			slog.Warn("config file ignored", slog.String("path", path), slog.Any("error", err))
		} else {
			slog.Info("config file loaded", slog.String("path", path))
		}
	}

	if envBool("STEALTH_ENABLED", false) {
		c.BrowserClient = newBrowserClient()
	}
	return c.WithDefaults()
}

// newBrowserClient builds the TLS-fingerprinted client used for watch pages, or nil.
func newBrowserClient() *engine.BrowserClient {
	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(15))

	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
		return nil
	}
	slog.Info("stealth browser client initialized")
	return bc
}

func runQueue(ctx context.Context, amqpURL, queueName string, d *jobs.Dispatcher) {
	consumer, err := queue.NewConsumer(amqpURL, queueName)
	if err != nil {
		slog.Error("queue intake disabled", slog.Any("error", err))
		return
	}
	defer consumer.Close()

	if err := consumer.Run(ctx, d); err != nil {
		slog.Error("queue consumer stopped", slog.Any("error", err))
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}
