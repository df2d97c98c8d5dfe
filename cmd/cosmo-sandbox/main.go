package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Ratio1/cosmo_sdk_go/internal/devseed"
	"github.com/Ratio1/cosmo_sdk_go/internal/logging"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo/mock"
)

func main() {
	addr := flag.String("addr", ":21982", "listen address")
	seed := flag.String("seed", "", "path to JSON dataset seed")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	requireSubject := flag.Bool("require-subject", false, "reject requests without an Ontology-Subject header")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	closeLog, err := logging.Init(logging.Config{Level: *logLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()
	log := logging.Component("sandbox")

	store := mock.New()
	if *seed != "" {
		entries, err := devseed.LoadDatasetSeed(*seed)
		if err != nil {
			log.Fatalf("load seed: %v", err)
		}
		if err := store.Seed(entries); err != nil {
			log.Fatalf("apply seed: %v", err)
		}
	}

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		log.Fatalf("parse fail flag: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := &http.Server{
		Addr: *addr,
		Handler: newRouter(store, serverOptions{
			latency:        *latency,
			fail:           failCfg,
			requireSubject: *requireSubject,
			registry:       registry,
			log:            log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Infof("cosmo-sandbox listening on %s", *addr)
	fmt.Println()
	fmt.Println("export COSMO_RUNTIME_MODE=http")
	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Printf("export COSMO_API_URL=http://%s\n", host)
	fmt.Println()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}
