package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "cronx/configs"
	"cronx/pkg/api"
	"cronx/pkg/executor"
	"cronx/pkg/jobfile"
	"cronx/pkg/logger"
	"cronx/pkg/random"
	"cronx/pkg/runner"
	"cronx/pkg/scheduler"
	"cronx/pkg/storage/sqlite"
	"cronx/pkg/strategy"
)

func main() {
	cfg := config.LoadConfig()

	log, err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: "stdout",
	})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("cronx starting",
		zap.String("jobs_file", cfg.JobsFile),
		zap.String("db", cfg.DBPath),
	)

	file, err := jobfile.Load(cfg.JobsFile)
	if err != nil {
		log.Fatal("failed to load jobs", zap.Error(err))
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	exec, err := buildExecutor(cfg, log)
	if err != nil {
		log.Fatal("failed to build executor", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(store, runner.New(exec, store, log), log)
	for _, job := range file.Jobs {
		strat, err := strategy.New(job, file.Timezone, random.Derive(file.Seed, job.Name))
		if err != nil {
			log.Fatal("failed to build strategy", zap.String("job", job.Name), zap.Error(err))
		}
		if err := sched.Add(job, strat); err != nil {
			log.Fatal("failed to register job", zap.String("job", job.Name), zap.Error(err))
		}
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}

	srv := api.NewServer(cfg.APIPort, sched, store, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("api server stopped", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("api shutdown failed", zap.Error(err))
	}
}

// buildExecutor selects the concrete executor shape from configuration.
func buildExecutor(cfg *config.Config, log *zap.Logger) (executor.Executor, error) {
	switch cfg.ExecutorKind {
	case "http":
		return executor.NewHTTP(executor.HTTPConfig{
			URL:        cfg.GatewayURL,
			SessionKey: cfg.SessionKey,
		}, log)
	default:
		return executor.NewFile(executor.FileConfig{
			Dir:     cfg.TriggerDir,
			Command: cfg.TriggerCommand,
		}, log)
	}
}
