package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"xdc-transfer/internal/balance"
	"xdc-transfer/internal/config"
	"xdc-transfer/internal/database"
	"xdc-transfer/internal/emitters"
	"xdc-transfer/internal/events"
	"xdc-transfer/internal/form"
	"xdc-transfer/internal/health"
	"xdc-transfer/internal/logger"
	"xdc-transfer/internal/models"
	"xdc-transfer/internal/receive"
	"xdc-transfer/internal/rpc"
	"xdc-transfer/internal/server"
	"xdc-transfer/internal/session"
	"xdc-transfer/internal/transfer"
	"xdc-transfer/internal/wallet"
)

const headPollInterval = 10 * time.Second

// onSessionChange logs each new wallet session. It runs under the event bus
// lock, so the balance read happens on its own goroutine.
func onSessionChange(ctx context.Context, balances server.BalanceReader, chain models.ChainInfo, log *zerolog.Logger) func(session.Session) {
	return func(s session.Session) {
		if !s.Connected {
			log.Info().Msg("Wallet disconnected")
			return
		}
		if s.ChainID != chain.ID {
			log.Warn().Str("walletChain", s.ChainName).Str("chain", chain.Name).Msg("Wallet is on a different chain, transfers will be refused")
		}
		go func() {
			display, err := balances.Read(ctx, common.HexToAddress(s.Address))
			if err != nil {
				log.Warn().Err(err).Str("address", s.Address).Msg("Failed to read balance")
				return
			}
			log.Info().Str("address", s.Address).Str("chain", s.ChainName).Str("balance", display.Text).Msg("Wallet connected")
		}()
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().Error().Interface("panic", r).Msg("Application panicked, recovering")
		}
	}()

	// configuration errors are logged before LOG_LEVEL is known
	logger.Init("info", os.Getenv("LOG_FORMAT"))

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	walletTransport := rpc.NewClient(cfg.Wallet.RpcEndpoint, cfg.Wallet.ApiKey, cfg.Wallet.RateLimit,
		cfg.MaxRetries, cfg.RetryDelay, cfg.HTTP.Timeout, logger.Component("wallet-rpc"))
	walletClient, err := wallet.Dial(ctx, walletTransport, cfg.Transfer.ConfirmationPollInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to wallet endpoint")
	}
	defer walletClient.Close()

	chainTransport := rpc.NewClient(cfg.Chain.RpcEndpoint, "", cfg.Wallet.RateLimit,
		cfg.MaxRetries, cfg.RetryDelay, cfg.HTTP.Timeout, logger.Component("chain-rpc"))
	chainClient, err := wallet.Dial(ctx, chainTransport, cfg.Transfer.ConfirmationPollInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to chain RPC")
	}
	defer chainClient.Close()

	sinks := events.Multi{}
	var history server.HistoryFunc

	if cfg.Kafka.Enabled {
		kafkaEmitter := emitters.NewKafkaEmitter(cfg.Kafka.BrokerAddress, cfg.Kafka.Topic, cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout)
		defer func() {
			if err := kafkaEmitter.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka writer")
			}
		}()
		sinks = append(sinks, kafkaEmitter)
		log.Info().Str("broker", cfg.Kafka.BrokerAddress).Str("topic", cfg.Kafka.Topic).Msg("Kafka emitter enabled")
	}

	if cfg.Database.Enabled {
		if err := database.InitDB(cfg.Database); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer database.Close()

		if err := database.RunMigrations(cfg.Database); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		sinks = append(sinks, database.Emitter{})
		history = database.GetTransfers
		log.Info().Str("database", cfg.Database.DBName).Msg("Transfer history enabled")
	}

	emitter := &events.LogEmitter{WrappedEmitter: sinks, Logger: logger.Component("transfers")}
	submitterLog := logger.Component("submitter")
	submitter := transfer.NewSubmitter(chainClient, emitter, cfg.Chain, cfg.Transfer.ConfirmationTimeout, submitterLog)
	submitter.OnTransition = func(state transfer.State) {
		submitterLog.Debug().Stringer("state", state).Msg("Transfer state changed")
	}

	store := session.NewStore(walletClient, func(account common.Address) transfer.Signer {
		return walletClient.Signer(account)
	}, evbus.New(), cfg.Wallet.PollInterval, logger.Component("session"))

	balances := balance.NewReader(chainClient, cfg.Chain, logger.Component("balance"))
	unsubscribe, err := store.Subscribe(onSessionChange(ctx, balances, cfg.Chain, log))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to session changes")
	}
	defer unsubscribe()

	controller := form.NewController(submitter, store, logger.Component("form"))

	srv := server.New(server.Options{
		Form:     controller,
		Session:  store,
		Balances: balances,
		Receive:  receive.NewCard(receive.SystemClipboard{}, receive.DefaultQRSize, logger.Component("receive")),
		History:  history,
		Chain:    cfg.Chain,
		Logger:   logger.Component("http"),
	})

	go store.Run(ctx)
	health.RegisterHeadSource(ctx, cfg.Chain.Name, chainClient, headPollInterval)
	health.SetReady(true)

	go func() {
		if err := srv.Start(cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	log.Info().
		Str("chain", cfg.Chain.Name).
		Int64("chainId", cfg.Chain.ID).
		Str("wallet", cfg.Wallet.RpcEndpoint).
		Str("listen", cfg.Server.ListenAddr).
		Msg("XDC transfer app started")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	health.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	controller.CloseScanner()
}
