package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	router "github.com/dkeye/Peer/internal/adapters/http"
	"github.com/dkeye/Peer/internal/adapters/rtc"
	sig "github.com/dkeye/Peer/internal/adapters/signal"
	"github.com/dkeye/Peer/internal/app"
	"github.com/dkeye/Peer/internal/app/media"
	"github.com/dkeye/Peer/internal/app/orch"
	"github.com/dkeye/Peer/internal/config"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/dkeye/Peer/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "peer",
		Usage: "join a signaling server and negotiate WebRTC sessions with every participant",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a YAML config file"},
			&cli.StringFlag{Name: "id", Usage: "participant id to announce (random when empty)"},
			&cli.StringFlag{Name: "url", Usage: "signaling websocket URL"},
			&cli.IntFlag{Name: "debug-port", Usage: "port for the debug HTTP surface, 0 disables it"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
		},
		Action: run,
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("peer exited")
	}
}

func setupLogging(mode, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if c.IsSet("id") {
		cfg.SelfID = c.String("id")
	}
	if c.IsSet("url") {
		cfg.SignalURL = c.String("url")
	}
	if c.IsSet("debug-port") {
		cfg.DebugPort = c.Int("debug-port")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Early logger so config loading is visible.
	setupLogging("debug", "info")
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	setupLogging(cfg.Mode, cfg.LogLevel)

	self := domain.NewParticipantID()
	if cfg.SelfID != "" {
		if self, err = domain.ParseParticipantID(cfg.SelfID); err != nil {
			return fmt.Errorf("self id: %w", err)
		}
	}

	promReg := prometheus.NewRegistry()
	if err := telemetry.Register(promReg); err != nil {
		return err
	}

	publisher, err := rtc.NewStaticPublisher()
	if err != nil {
		return err
	}
	factory, err := rtc.NewFactory(cfg.ICEServers)
	if err != nil {
		return err
	}

	client := sig.NewClient(sig.ClientConfig{
		URL:        cfg.SignalURL,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	})
	signalRouter := sig.NewRouter(client, nil, sig.NewRateLimiter(cfg.NegotiationLimit, cfg.NegotiationWindow))

	var policy app.Policy = app.LastWriterWins{}
	if cfg.GlarePolicy == "polite" {
		policy = app.PoliteGlare{}
	}
	registry := app.NewRegistry()
	var recorder media.SinkFactory
	if cfg.RecordDir != "" {
		recorder = media.FileRecorder{Dir: cfg.RecordDir}
		log.Info().Str("dir", cfg.RecordDir).Msg("recording remote tracks")
	}
	receivers := media.NewReceiverManager(recorder)
	engine := orch.New(ctx, orch.Params{
		Self:            self,
		Registry:        registry,
		Media:           factory,
		Publisher:       publisher,
		Emitter:         signalRouter,
		Policy:          policy,
		Receivers:       receivers,
		OutboundWorkers: cfg.OutboundWorkers,
	})
	defer engine.Close()
	defer signalRouter.Close()
	signalRouter.Engine = engine

	disconnected := make(chan struct{}, 1)
	client.OnMessage(signalRouter.OnMessage)
	client.OnDisconnect(func() {
		select {
		case disconnected <- struct{}{}:
		default:
		}
	})

	var srv *http.Server
	if cfg.DebugPort > 0 {
		srv = &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.DebugPort),
			Handler: router.SetupRouter(cfg, router.Deps{
				Self:      self,
				Registry:  registry,
				Receivers: receivers,
				Health:    client,
				Gatherer:  promReg,
			}),
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("debug server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("debug server error")
			}
		}()
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := engine.Announce(ctx); err != nil {
		log.Error().Err(err).Msg("announce failed")
	}
	log.Info().Str("self", self.String()).Str("url", cfg.SignalURL).Msg("peer started")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case <-disconnected:
		log.Warn().Msg("signaling connection lost, shutting down")
	}
	client.Disconnect()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}
	log.Info().Msg("peer exited gracefully")
	return nil
}
