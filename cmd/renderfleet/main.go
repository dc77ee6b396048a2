package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/renderfleet/renderfleet/pkg/account"
	"github.com/renderfleet/renderfleet/pkg/audit"
	"github.com/renderfleet/renderfleet/pkg/auth"
	"github.com/renderfleet/renderfleet/pkg/cli"
	"github.com/renderfleet/renderfleet/pkg/config"
	"github.com/renderfleet/renderfleet/pkg/gateway"
	"github.com/renderfleet/renderfleet/pkg/render"
	"github.com/renderfleet/renderfleet/pkg/session"
	"github.com/renderfleet/renderfleet/pkg/session/sqlitestore"
	"github.com/renderfleet/renderfleet/pkg/version"
)

func main() {
	flags := cli.Parse()

	zl := setupLogger(flags.Debug)
	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting renderfleet gateway")

	if flags.Debug {
		flags.Print(log)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatalf("Error loading gateway config: %v", err)
	}
	if flags.ListenAddr != "" {
		cfg.Server.ListenAddress = flags.ListenAddr
	}
	if flags.StaticDir != "" {
		cfg.Web.StaticDir = flags.StaticDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid gateway config: %v", err)
	}

	store, err := sqlitestore.Open(cfg.Session.StorePath, cfg.Session.Namespace, cfg.Session.GetTTL())
	if err != nil {
		log.Fatalf("Error opening session store: %v", err)
	}
	defer store.Close()

	accounts := make([]account.Account, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts = append(accounts, account.Account{ID: a.ID, Name: a.Name, APIKey: a.APIKey})
	}
	registry, err := account.NewRegistry(accounts)
	if err != nil {
		log.Fatalf("Error building account registry: %v", err)
	}

	authenticator := auth.New(log, cfg.Operator, store)

	upstream, err := render.New(
		render.WithBaseURL(cfg.Render.APIBaseURL),
		render.WithTimeout(cfg.Render.GetRequestTimeout()),
		render.WithUserAgent(version.UserAgent("renderfleet")),
	)
	if err != nil {
		log.Fatalf("Error building upstream client: %v", err)
	}

	auditService := audit.NewService(zl)
	auditCfg, err := buildAuditConfig(cfg.Audit)
	if err != nil {
		log.Fatalf("Error resolving audit config: %v", err)
	}
	if err := auditService.Configure(auditCfg); err != nil {
		log.Fatalf("Error configuring audit service: %v", err)
	}
	defer auditService.Close()

	server := gateway.NewServer(zl, cfg, flags.Debug)
	middleware := authenticator.Middleware()
	err = server.RegisterAll([]gateway.APIController{
		gateway.NewServicesAPIController(log, upstream, registry, auditService, middleware),
		gateway.NewEnvVarsAPIController(log, upstream, registry, auditService, middleware),
		gateway.NewEventsAPIController(log, upstream, registry, auditService, middleware),
		gateway.NewMetaAPIController(log, registry, middleware),
	})
	if err != nil {
		log.Fatalf("Error registering gateway controllers: %v", err)
	}
	server.RegisterWeb(gateway.NewWebController(log, authenticator, auditService, registry, cfg))

	if flags.EnableCleanup {
		interval := cfg.Session.GetCleanupInterval()
		if flags.CleanupInterval != "" {
			interval = cli.ParseCleanupInterval(flags.CleanupInterval, log)
		}
		cleanup := &session.CleanupRoutine{Log: log, Store: store, Interval: interval}
		cleanup.Start()
		defer cleanup.Stop()
	}

	auditService.RecordStartup(context.Background(), registry.Len())
	log.Infow("Gateway listening",
		"address", cfg.Server.ListenAddress,
		"accounts", registry.Len(),
		"tls", cfg.Server.TLSCertFile != "")

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-listenErr:
		if err != nil {
			log.Fatalf("Gateway listener failed: %v", err)
		}
	case sig := <-stop:
		log.Infow("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
		if err := server.Shutdown(ctx); err != nil {
			log.Errorw("Graceful shutdown failed", "error", err)
		}
		cancel()
		auditService.RecordShutdown(context.Background())
	}
}

// buildAuditConfig resolves the file-based audit configuration into the
// runtime form: certificate paths are read into PEM bytes here so the audit
// package never touches the filesystem.
func buildAuditConfig(cfg config.Audit) (audit.Config, error) {
	out := audit.Config{
		Enabled:    cfg.Enabled,
		Log:        cfg.LogEnabled(),
		QueueSize:  cfg.QueueSize,
		Workers:    cfg.Workers,
		SampleRate: cfg.SampleRate,
	}
	if !cfg.Enabled {
		return out, nil
	}

	if cfg.Kafka != nil {
		k := &audit.KafkaSinkConfig{
			Name:             "kafka",
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			BatchSize:        cfg.Kafka.BatchSize,
			BatchTimeout:     cfg.Kafka.GetBatchTimeout(),
			WriteTimeout:     cfg.Kafka.GetWriteTimeout(),
			RequiredAcks:     cfg.Kafka.RequiredAcks,
			Async:            cfg.Kafka.Async,
			CompressionCodec: cfg.Kafka.Compression,
		}
		if t := cfg.Kafka.TLS; t != nil && t.Enabled {
			tlsCfg := &audit.KafkaTLSConfig{
				Enabled:            true,
				InsecureSkipVerify: t.InsecureSkipVerify,
			}
			var err error
			if tlsCfg.CACert, err = readOptionalFile(t.CACertFile); err != nil {
				return out, err
			}
			if tlsCfg.ClientCert, err = readOptionalFile(t.ClientCertFile); err != nil {
				return out, err
			}
			if tlsCfg.ClientKey, err = readOptionalFile(t.ClientKeyFile); err != nil {
				return out, err
			}
			k.TLS = tlsCfg
		}
		if s := cfg.Kafka.SASL; s != nil {
			k.SASL = &audit.KafkaSASLConfig{
				Mechanism: s.Mechanism,
				Username:  s.Username,
				Password:  s.Password,
			}
		}
		out.Kafka = k
	}

	if cfg.Webhook != nil {
		out.Webhook = &audit.WebhookSinkConfig{
			Name:     "webhook",
			URL:      cfg.Webhook.URL,
			BatchURL: cfg.Webhook.BatchURL,
			Headers:  cfg.Webhook.Headers,
			Timeout:  cfg.Webhook.GetTimeout(),
		}
	}

	return out, nil
}

func readOptionalFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
