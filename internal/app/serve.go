package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/feedsift/internal/cli"
	"horse.fit/feedsift/internal/config"
	"horse.fit/feedsift/internal/db"
	"horse.fit/feedsift/internal/httpapi"
	"horse.fit/feedsift/internal/ingest"
	"horse.fit/feedsift/internal/logging"
	"horse.fit/feedsift/internal/reader"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	fetchPages := fs.Bool("fetch-pages", false, "Fetch item URLs when an ingested payload has no body text or HTML")
	fetchTimeout := fs.Duration("fetch-timeout", reader.DefaultFetchTimeout, "Page fetch timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	loadEnv(envLoader)

	cfg, err := config.LoadWithDatabase()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	if cfg.APITokenHash == "" {
		logger.Warn().Msg("API_TOKEN_HASH is empty; write routes are unauthenticated")
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	classifier := cfg.DedupPolicy()
	ingester := ingest.NewService(pool, classifier, ingest.Options{
		FetchPages: *fetchPages,
		Extractor:  reader.Extractor{Options: reader.FetchOptions{Timeout: *fetchTimeout}},
	}, logging.Component(logger, "ingest"))

	srv := httpapi.NewServer(pool, ingester, classifier, logging.Component(logger, "http"), httpapi.Options{
		Host:               *host,
		Port:               *port,
		ReadTimeout:        *readTimeout,
		WriteTimeout:       *writeTimeout,
		ShutdownTimeout:    *shutdownTimeout,
		APITokenHash:       cfg.APITokenHash,
		CORSAllowedOrigins: cfg.CORSAllowedOriginsList(),
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
