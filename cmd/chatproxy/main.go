package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelgateway/chatproxy/internal/config"
	"github.com/modelgateway/chatproxy/internal/httpapi"
	"github.com/modelgateway/chatproxy/internal/logger"
	"github.com/modelgateway/chatproxy/internal/proxy"
	"go.uber.org/zap"
)

const (
	appName    = "chatproxy"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("%s v%s\n", appName, appVersion)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting chatproxy", zap.String("name", appName), zap.String("version", appVersion))

	upstream, err := proxy.NewUpstreamClient(
		time.Duration(cfg.APITimeoutSeconds)*time.Second,
		time.Duration(cfg.ReadTimeoutSeconds)*time.Second,
		cfg.MaxConnections,
	)
	if err != nil {
		log.Fatal("failed to build upstream client", zap.Error(err))
	}
	defer upstream.Close()

	search := proxy.NewSearchCollaborator(cfg.GoogleAPIKey, cfg.GoogleCSEID, cfg.SearchResultCount, cfg.SearchSnippetMaxLength, log)
	if !search.Available() {
		log.Warn("web search disabled: GOOGLE_API_KEY or GOOGLE_CSE_ID not set")
	}

	orch := proxy.NewOrchestrator(
		cfg.DefaultOpenAIBase,
		cfg.MaxSSELineLength,
		time.Duration(cfg.ReadTimeoutSeconds)*time.Second,
		cfg.ThinkingProcessSeparator,
		upstream,
		search,
		log,
	)

	srv := httpapi.NewServer(
		httpapi.Config{Host: cfg.Host, Port: cfg.Port, Mode: "release"},
		orch,
		func() bool { return upstream != nil && upstream.HTTPClient != nil },
		log,
	)
	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		os.Exit(1)
	}
	log.Info("chatproxy stopped successfully")
}

func printUsage() {
	fmt.Printf(`%s v%s

Usage:
  chatproxy           Start the proxy server (default)
  chatproxy version   Show version
  chatproxy help      Show this help

Environment:
  See internal/config/config.go for the full list of recognized variables.
`, appName, appVersion)
}
