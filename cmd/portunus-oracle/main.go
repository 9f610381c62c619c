package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/config"
	"github.com/BrandonDHaskell/Portunus/station/internal/oracle"
)

func main() {
	cfg := config.OracleFromEnv()
	logger := log.New(os.Stdout, "portunus-oracle ", log.LstdFlags|log.LUTC)

	allowed := make(map[string]struct{}, len(cfg.AllowedCardIDs))
	for _, c := range cfg.AllowedCardIDs {
		allowed[strings.ToUpper(c)] = struct{}{}
	}

	registry := oracle.NewRegistry(cfg.KnownMachines)
	svc := oracle.NewService(registry, oracle.Policy{
		Token:          cfg.Token,
		AllowAll:       cfg.AllowAll,
		AllowedCardIDs: allowed,
	})

	srv := oracle.NewServer(oracle.Dependencies{
		Logger:  logger,
		Addr:    cfg.HTTPAddr,
		Service: svc,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
