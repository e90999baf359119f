package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clscope/internal/chain"
	"clscope/internal/config"
	"clscope/internal/dex"
	"clscope/internal/engine"
	"clscope/internal/materialize"
	"clscope/internal/pricing"
	"clscope/internal/storage"
	"clscope/internal/storage/bolt"
	"clscope/internal/storage/kafka"
	"clscope/internal/storage/postgres"
	"clscope/internal/storage/redis"
	"clscope/internal/store"
)

func newMaterializeCmd() *cobra.Command {
	materializeCmd := &cobra.Command{
		Use:   "materialize",
		Short: "Replay typed events into entity snapshots",
		RunE:  runMaterialize,
	}

	materializeCmd.Flags().String("rpc", "", "RPC URL for contract reads (optional)")
	materializeCmd.Flags().String("in", "", "input typed events JSONL")
	materializeCmd.Flags().Int("batch-size", 1000, "events per sink flush and state save")
	materializeCmd.Flags().Bool("skip-failed", false, "continue past events whose handler fails")
	materializeCmd.Flags().String("base-token", "", "wrapped native token priced against stablecoins")
	materializeCmd.Flags().StringSlice("stablecoins", nil, "stablecoin addresses (comma-separated)")
	materializeCmd.Flags().String("tick-spacings", "", "tick spacings scanned for base price pools (comma-separated)")
	materializeCmd.Flags().String("reward-token", "", "gauge emission token, defaults to the base token")
	materializeCmd.Flags().StringSlice("cl-gauge-factories", nil, "gauge factories whose gauges are CL gauges")
	materializeCmd.Flags().String("changes-out", "", "entity changes JSONL path")
	materializeCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	materializeCmd.Flags().Bool("pg-migrate", true, "create Postgres tables on start")
	materializeCmd.Flags().String("redis-addr", "", "Redis address")
	materializeCmd.Flags().String("redis-password", "", "Redis password")
	materializeCmd.Flags().Int("redis-db", 0, "Redis database")
	materializeCmd.Flags().String("redis-prefix", "clscope", "Redis key prefix")
	materializeCmd.Flags().StringSlice("kafka-brokers", nil, "Kafka brokers (comma-separated)")
	materializeCmd.Flags().String("kafka-topic", "clscope.entities", "Kafka topic for entity changes")
	materializeCmd.Flags().String("bolt-path", "", "bbolt database path")
	materializeCmd.Flags().String("state", "file", "progress state backend (none, file, pg, bolt)")
	materializeCmd.Flags().String("state-file", "./data/materialize_state.json", "state file path")
	materializeCmd.Flags().String("state-name", "materialize", "state name in pg or bolt")
	materializeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return materializeCmd
}

func runMaterialize(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadMaterialize(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reader engine.ContractReader
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		reader = dex.NewChainReader(chainClient, dex.NewTokenMetaCache(), logger)
	} else {
		logger.Warn("no rpc configured, contract reads are unavailable")
	}

	backends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.sinks.Close(); err != nil {
			logger.Warn("close sinks", zap.Error(err))
		}
	}()

	eng := engine.New(engine.Config{
		Pricing: pricing.Config{
			BaseToken:    cfg.BaseToken,
			Stablecoins:  cfg.Stablecoins,
			TickSpacings: cfg.TickSpacings,
		},
		RewardToken:      cfg.RewardToken,
		CLGaugeFactories: cfg.CLGaugeFactories,
	}, store.New(), reader, logger)

	materializer := materialize.NewMaterializer(materialize.Config{
		BatchSize:  cfg.BatchSize,
		SkipFailed: cfg.SkipFailed,
		StateStore: backends.state,
	}, eng, backends.sinks, logger)

	logger.Info("materialize start",
		zap.String("in", cfg.In),
		zap.Int("sinks", len(backends.sinks)),
		zap.String("state", cfg.State),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Bool("contract_reads", reader != nil),
	)

	_, err = materializer.Run(ctx, cfg.In)
	return err
}

type backends struct {
	sinks storage.MultiSink
	state materialize.StateStore
}

// openBackends connects every configured sink and picks the state store.
// On error, sinks opened so far are closed.
func openBackends(ctx context.Context, cfg config.MaterializeConfig, logger *zap.Logger) (out backends, err error) {
	defer func() {
		if err != nil {
			_ = out.sinks.Close()
		}
	}()

	if cfg.ChangesOut != "" {
		out.sinks = append(out.sinks, storage.NewJsonlChangeSink(cfg.ChangesOut))
	}

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return out, fmt.Errorf("connect postgres: %w", err)
		}
		out.sinks = append(out.sinks, pg)
		if cfg.PGMigrate {
			if err = pg.Migrate(ctx); err != nil {
				return out, err
			}
		}
	}

	if cfg.RedisAddr != "" {
		rs, err := redis.NewSink(ctx, redis.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		}, logger)
		if err != nil {
			return out, err
		}
		out.sinks = append(out.sinks, rs)
	}

	if len(cfg.KafkaBrokers) > 0 {
		ks, err := kafka.NewSink(kafka.Options{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
		if err != nil {
			return out, err
		}
		out.sinks = append(out.sinks, ks)
	}

	var bs *bolt.Store
	if cfg.BoltPath != "" {
		bs, err = bolt.Open(cfg.BoltPath)
		if err != nil {
			return out, err
		}
		out.sinks = append(out.sinks, bs)
	}

	switch cfg.State {
	case config.StateFile:
		out.state = &materialize.FileStateStore{Path: cfg.StateFile}
	case config.StatePG:
		out.state = &materialize.DBStateStore{Store: pg, Name: cfg.StateName}
	case config.StateBolt:
		out.state = &materialize.BoltStateStore{Store: bs, Name: cfg.StateName}
	}
	return out, nil
}
