package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagecrawl/internal/approval"
	"stagecrawl/internal/config"
	cronrunner "stagecrawl/internal/cron"
	"stagecrawl/internal/db"
	"stagecrawl/internal/extractor"
	"stagecrawl/internal/fetcher"
	"stagecrawl/internal/handler"
	"stagecrawl/internal/listcrawler"
	"stagecrawl/internal/logger"
	"stagecrawl/internal/pipeline"
	"stagecrawl/internal/repository/gormrepo"
	"stagecrawl/internal/scheduler"
	"stagecrawl/internal/sitedetect"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "path to config file")
	envOnly := flag.Bool("env-only", false, "skip the config file, environment variables only")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envOnly)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	gdb, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close(gdb)
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatal("migrate database", zap.Error(err))
	}
	store := gormrepo.New(gdb)

	det := sitedetect.New()
	fetch := fetcher.New(fetcher.Options{
		Timeout:     cfg.Fetch.Timeout,
		DialTimeout: cfg.Fetch.DialTimeout,
		SizeCap:     cfg.Fetch.SizeCap,
		UserAgent:   cfg.Fetch.UserAgent,
	})
	engine := approval.NewEngine(cfg.Approval.LowRiskFields)
	pipe := pipeline.New(fetch, det, extractor.DefaultRegistry(det), engine, store, log)
	lister := listcrawler.New(fetch, store, cfg.Crawl.MaxURLsPerList, log)
	sched := scheduler.New(store, pipe, lister, cfg.Crawl, log)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	var runner *cronrunner.Runner
	if cfg.Cron.Enabled {
		runner = cronrunner.New(log, rootCtx)
		if _, err := runner.Add("scheduled-crawls", cfg.Cron.Schedule, sched.ProcessScheduledCrawls); err != nil {
			log.Fatal("schedule crawl sweep", zap.Error(err))
		}
		if _, err := runner.Add("apply-approved", cfg.Cron.Schedule, sched.ProcessApprovedSuggestions); err != nil {
			log.Fatal("schedule approval sweep", zap.Error(err))
		}
		runner.Start()
	}

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	(&handler.ImportHandler{Pipeline: pipe, Scheduler: sched, Logger: log}).Register(r)
	(&handler.ReviewHandler{Store: store, Pipeline: pipe, Logger: log}).Register(r)
	(&handler.AdminHandler{Store: store, Scheduler: sched, Lister: lister}).Register(r)

	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	rootCancel()
	if runner != nil {
		runner.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("bye")
}
