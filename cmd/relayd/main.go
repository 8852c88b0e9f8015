package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/filerelay/internal/admission"
	"github.com/adred-codev/filerelay/internal/audit"
	"github.com/adred-codev/filerelay/internal/config"
	"github.com/adred-codev/filerelay/internal/core"
	"github.com/adred-codev/filerelay/internal/identity"
	"github.com/adred-codev/filerelay/internal/logging"
	"github.com/adred-codev/filerelay/internal/metrics"
	"github.com/adred-codev/filerelay/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Msg("starting filerelay")

	m := metrics.New()

	guard := admission.New(cfg.Guard, logger)
	stop := make(chan struct{})
	guard.StartMonitoring(stop)
	defer close(stop)

	idm := identity.NewManager(cfg.Identity.SignatureKey, cfg.Identity.TokenTTL)

	clients := core.NewClientRegistry(cfg.Client.MaxClients, cfg.Client.ClientTimeout)
	sessions := core.NewSessionRegistry(core.Config{
		MaxChunkSize:     cfg.Session.MaxChunkSize,
		QueueMax:         cfg.Session.QueueMax,
		MaxConsumers:     cfg.Session.MaxConsumers,
		SessionLimit:     cfg.Session.SessionLimit,
		MaxLifetime:      cfg.Session.MaxLifetime,
		MaxInitialFreeze: cfg.Session.MaxInitialFreeze,
		ClientTimeout:    cfg.Client.ClientTimeout,
	}, clients, logger)

	auditPub := audit.New(cfg.Audit, logger)
	defer auditPub.Close()

	srv := transport.New(cfg, clients, sessions, idm, guard, m, auditPub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
