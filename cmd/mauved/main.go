// Command mauved runs the mc6 labeled object store: it loads configuration,
// opens the embedded KV and indexer supervisor, and serves the §6 HTTP
// contract until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Quyzi/mc6/pkg/backend"
	"github.com/Quyzi/mc6/pkg/buildinfo"
	"github.com/Quyzi/mc6/pkg/config"
	"github.com/Quyzi/mc6/pkg/httpapi"
)

func main() {
	var (
		configPath  = flag.String("config", "mauve.yaml", "path to YAML configuration file")
		listenAddr  = flag.String("listen", ":8080", "HTTP listen address")
		verbose     = flag.Bool("verbose", false, "enable debug-level logging")
		showVersion = flag.Bool("version", false, "print the build version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version())
		return
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalw("load config", "path", *configPath, "error", err)
	}

	b, err := backend.Open(cfg, logger)
	if err != nil {
		logger.Fatalw("open backend", "error", err)
	}

	mux := http.NewServeMux()
	httpapi.New(mux, b, logger)

	srv := &http.Server{
		Addr:    *listenAddr,
		Handler: mux,
	}

	go func() {
		logger.Infow("listening", "addr", *listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("serve", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Infow("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnw("http shutdown", "error", err)
	}
	if err := b.Shutdown(); err != nil {
		logger.Errorw("backend shutdown", "error", err)
	}
}

func newLogger(verbose bool) *zap.SugaredLogger {
	var zcfg zap.Config
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	l, err := zcfg.Build()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	return l.Sugar()
}
