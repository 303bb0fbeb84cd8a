package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dropDatabas3/caishen/internal/app"
	"github.com/dropDatabas3/caishen/internal/config"
	httpserver "github.com/dropDatabas3/caishen/internal/http"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
	"github.com/joho/godotenv"
)

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func printConfigSummary(c *config.Config) {
	fmt.Printf(`app.env=%s  version=%s
server.addr=%s  api_prefix=%s
storage.driver=%s  cache.kind=%s
jwt.algorithm=%s  access_ttl=%s  auth_ttl=%s  state_ttl=%s
providers.google=%t  providers.facebook=%t
rate.enabled=%t  rate.backend=%s  rate.login=%d/%s
smtp.host=%s  events.amqp=%t  signup.disabled=%t
`,
		c.App.Env, c.App.Version,
		c.Server.Addr, c.Server.APIPrefix,
		c.Storage.Driver, c.Cache.Kind,
		c.JWT.Algorithm, c.AccessTokenTTL(), c.AuthTokenTTL(), c.Auth.StateTTL,
		c.Providers.Google.Enabled, c.Providers.Facebook.Enabled,
		c.Rate.Enabled, c.Rate.Backend, c.Rate.Login.Limit, c.Rate.Login.Window,
		c.SMTP.Host, c.Events.AMQPURL != "", c.Auth.DisableSignup,
	)
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH; sin archivo usa solo env)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
		flagPrint      = flag.Bool("print-config", false, "imprime config efectiva y termina")
	)
	flag.Parse()

	if *flagEnvFile != "" && fileExists(*flagEnvFile) {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *flagPrint {
		printConfigSummary(cfg)
		return
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	})
	if err := run(cfg); err != nil {
		logger.L().Error("caishen stopped with error", logger.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ToContext(ctx, logger.L())

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wiring: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.L().Warn("cleanup error", logger.Err(err))
		}
	}()

	return httpserver.Run(ctx, httpserver.NewServer(cfg.Server.Addr, a.Handler))
}
