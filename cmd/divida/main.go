package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdleyRodrigues/financing-simulator/internal/amqp"
	"github.com/AdleyRodrigues/financing-simulator/internal/cli"
	apphttp "github.com/AdleyRodrigues/financing-simulator/internal/http"
	"github.com/AdleyRodrigues/financing-simulator/internal/remote"
	"github.com/AdleyRodrigues/financing-simulator/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	cfg := cli.LoadAndValidateConfig(logger)
	plan := cli.LoadPlan(logger, cfg.PlanFile)

	journal := cli.InitJournal(logger, cfg.SQLiteDBPath)
	defer journal.Close()

	gateway := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteTimeout)

	// The retry pipe is optional; without it failed mirrors stay flagged
	// in the journal until the worker's periodic sweep picks them up.
	var pub services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		pub = amqpClient
		logger.Info("Mirror retry pipe enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Mirror retry pipe disabled - no AMQP_URL provided")
	}

	svc := services.NewLedgerService(plan, journal, gateway, pub)
	if err := svc.Load(context.Background()); err != nil {
		logger.Error("Failed to load ledger", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(cfg.Port, apphttp.NewRouter(svc))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		if err := apphttp.Shutdown(srv, 30*time.Second); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting divida server", "port", cfg.Port, "remote", cfg.RemoteBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
