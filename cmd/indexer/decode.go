package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clscope/internal/config"
	"clscope/internal/dex"
	"clscope/internal/model"
	"clscope/internal/storage"
)

func newDecodeCmd() *cobra.Command {
	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().String("contracts", "", "contract address->kind registry (comma-separated key=value)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return decodeCmd
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	switch {
	case cfg.In == "":
		return fmt.Errorf("input path is required")
	case cfg.Out == "":
		return fmt.Errorf("output path is required")
	case cfg.Errors == "":
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoder, err := dex.NewEventDecoder(dex.DecoderConfig{
		Contracts: cfg.Contracts,
		Topic0Map: cfg.Topic0Map,
	})
	if err != nil {
		return err
	}

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	events, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer events.Close()

	failures, err := storage.NewJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer failures.Close()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.Int("contracts", len(cfg.Contracts)),
	)

	stats, err := dex.DecodeStream(ctx, decoder, input,
		func(event *model.TypedEvent) error { return events.Write(event) },
		func(failure model.DecodeError) error {
			logger.Debug("decode failed", zap.Int("line", failure.Line), zap.String("error", failure.Error))
			return failures.Write(failure)
		},
	)
	if err != nil {
		return err
	}
	if err := events.Close(); err != nil {
		return err
	}
	if err := failures.Close(); err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", stats.Total),
		zap.Int("decoded", stats.Decoded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return nil
}
