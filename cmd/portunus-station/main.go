package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/authclient"
	"github.com/BrandonDHaskell/Portunus/station/internal/config"
	"github.com/BrandonDHaskell/Portunus/station/internal/db"
	"github.com/BrandonDHaskell/Portunus/station/internal/hardware"
	"github.com/BrandonDHaskell/Portunus/station/internal/health"
	"github.com/BrandonDHaskell/Portunus/station/internal/httpapi"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/service"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/store"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/store/memory"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/store/sqlite"
)

func main() {
	logger := log.New(os.Stdout, "portunus-station ", log.LstdFlags|log.LUTC)

	if err := run(logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

// run owns every resource so its deferred cleanup always executes; only main
// exits the process.
func run(logger *log.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Oracle
	auth, err := authclient.New(authclient.Config{
		BaseURL:   cfg.ServerURL,
		Token:     cfg.Token,
		Group:     cfg.Group,
		MachineID: cfg.MachineID,
		Timeout:   cfg.AuthTimeout,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("authclient: %w", err)
	}
	defer auth.Wait()

	// Hardware. A station that cannot drive its relay must not run.
	board, err := hardware.Open(ctx, hardware.Config{
		Logger: logger,
		Pins: hardware.PinNames{
			CardDetect: cfg.Pins.CardDetect,
			Stop:       cfg.Pins.Stop,
			HardStop:   cfg.Pins.HardStop,
			Red:        cfg.Pins.Red,
			Yellow:     cfg.Pins.Yellow,
			Green:      cfg.Pins.Green,
			Relay:      cfg.Pins.Relay,
			RFIDReset:  cfg.Pins.RFIDReset,
			RFIDIRQ:    cfg.Pins.RFIDIRQ,
		},
		SPIPort:     cfg.SPIPort,
		ReadTimeout: cfg.RFIDReadTimeout,
		Retries:     cfg.HardwareRetries,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := board.Close(); err != nil {
			logger.Printf("board close: %v", err)
		}
	}()

	// Journal
	var journal store.Journal
	if cfg.DBPath == "" {
		journal = memory.New()
	} else {
		sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer sqlDB.Close()

		writer := db.NewWorker(sqlDB)
		defer writer.Close()

		journal = sqlite.NewJournal(sqlDB, writer)
	}

	recorder := service.NewJournalRecorder(journal, service.RecorderConfig{
		MachineID:     cfg.MachineID,
		Depth:         256,
		RetentionDays: cfg.RetentionDays,
		PruneEvery:    time.Duration(cfg.PruneIntervalHours) * time.Hour,
	}, logger)
	defer recorder.Close()

	// Controller
	ctrl, err := service.NewController(service.Dependencies{
		Logger: logger,
		Machine: service.NewMachine(service.MachineConfig{
			RequireCard:   cfg.RequireCard,
			StopFilter:    cfg.StopFilter,
			RemovalFilter: cfg.RemovalFilter,
		}),
		Inputs:             board,
		Reader:             board,
		Auth:               auth,
		Indicators:         board,
		Extender:           auth,
		Recorder:           recorder,
		Tick:               cfg.TickInterval,
		SessionExtendTicks: cfg.SessionExtendTicks,
	})
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	go board.WatchHardStop(ctx, ctrl.HardStop)

	// Status surfaces
	if cfg.HTTPAddr != "" {
		srv := httpapi.NewServer(httpapi.Dependencies{
			Logger:      logger,
			Addr:        cfg.HTTPAddr,
			Status:      ctrl,
			Journal:     journal,
			Drops:       recorder,
			MachineID:   cfg.MachineID,
			Group:       cfg.Group,
			RequireCard: cfg.RequireCard,
		})
		go func() {
			logger.Printf("status listening on %s", cfg.HTTPAddr)
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("status server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.HealthAddr != "" {
		hs := health.NewServer(health.Dependencies{Logger: logger, Addr: cfg.HealthAddr})
		go func() {
			logger.Printf("health listening on %s", cfg.HealthAddr)
			if err := hs.Start(); err != nil {
				logger.Printf("health server error: %v", err)
			}
		}()
		go hs.Watch(ctx, func() uint64 { return ctrl.Status().Ticks }, 5*cfg.TickInterval)
		defer hs.Stop()
	}

	logger.Printf("station %s (group %s) starting", cfg.MachineID, cfg.Group)
	return ctrl.Run(ctx)
}
