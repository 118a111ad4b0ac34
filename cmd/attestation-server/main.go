package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/DIMO-Network/shared"
	"golang.org/x/sync/errgroup"

	"github.com/copperhead/attestation-server/internal/app"
	"github.com/copperhead/attestation-server/internal/config"
	"github.com/copperhead/attestation-server/internal/store"
	"github.com/copperhead/attestation-server/pkg/attest"
	"github.com/copperhead/attestation-server/pkg/challenge"
	"github.com/copperhead/attestation-server/pkg/server"
)

// @title    Attestation Server
// @version  1.0
func main() {
	logger := server.DefaultLogger("attestation-server")

	settingsFile := flag.String("settings", "settings.yaml", "settings file")
	flag.Parse()
	settings, err := shared.LoadConfig[config.Settings](*settingsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Couldn't load settings.")
	}
	server.SetLevel(logger, settings.LogLevel)

	pinningStore, err := store.Open(settings.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Couldn't open attestation database.")
	}
	defer pinningStore.Close() //nolint:errcheck

	challenges := challenge.NewStore(settings.ChallengeTTL)

	var opts []attest.Option
	if settings.AllowDebugAppSignature {
		logger.Warn().Msg("Accepting debug attestation app signatures")
		opts = append(opts, attest.WithDebugAppSignature())
	}
	verifier := attest.NewVerifier(challenges, pinningStore, opts...)

	ctrl := app.NewController(verifier, challenges, pinningStore, logger)
	webApp := app.CreateWebServer(logger, ctrl)
	monApp := app.CreateMonitoringServer()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)

	logger.Info().Str("port", strconv.Itoa(settings.MonPort)).Msg("Starting monitoring server")
	server.RunFiber(groupCtx, monApp, ":"+strconv.Itoa(settings.MonPort), group)

	logger.Info().Str("port", strconv.Itoa(settings.Port)).Msg("Starting attestation server")
	if settings.TLS.Enabled() {
		err := server.RunFiberTLS(groupCtx, webApp, ":"+strconv.Itoa(settings.Port),
			settings.TLS.CertFile, settings.TLS.KeyFile, group)
		if err != nil {
			logger.Fatal().Err(err).Msg("Couldn't start TLS listener.")
		}
	} else {
		server.RunFiber(groupCtx, webApp, ":"+strconv.Itoa(settings.Port), group)
	}

	if err := group.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run servers.")
	}
}
