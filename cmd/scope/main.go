package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"walletScope/internal/batch"
	"walletScope/internal/chain"
	"walletScope/internal/classify"
	"walletScope/internal/config"
	"walletScope/internal/explorer"
	"walletScope/internal/pipeline"
	"walletScope/internal/subgraph"
)

func main() {
	root := &cobra.Command{
		Use:          "scope",
		Short:        "Smart-wallet profitability scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	buysCmd := &cobra.Command{
		Use:   "buys",
		Short: "Build the buy-side wallet dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, subgraph.SideBuy)
		},
	}
	addStageFlags(buysCmd, "./data/walletBuydata.json")
	root.AddCommand(buysCmd)

	sellsCmd := &cobra.Command{
		Use:   "sells",
		Short: "Build the sell-side wallet dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, subgraph.SideSell)
		},
	}
	addStageFlags(sellsCmd, "./data/walletSelldata.json")
	root.AddCommand(sellsCmd)

	root.AddCommand(newReportCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStageFlags(cmd *cobra.Command, defaultOut string) {
	cmd.Flags().String("subgraph-url", "", "swap subgraph endpoint URL")
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("etherscan-url", "", "explorer API URL (default Etherscan mainnet)")
	cmd.Flags().String("etherscan-api-key", "", "explorer API key")
	cmd.Flags().String("token", "", "token contract address")
	cmd.Flags().Float64("min-usd", 500, "minimum swap USD amount")
	cmd.Flags().String("from", "", "range start (unix seconds, RFC3339, or YYYY-MM-DD)")
	cmd.Flags().String("to", "", "range end (inclusive)")
	cmd.Flags().Int("page-size", 1000, "events per subgraph page")
	cmd.Flags().Int("max-retries", 3, "maximum page fetch retries")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("timeout", 10*time.Second, "per-request timeout")
	cmd.Flags().Int("max-tx-count", 10000, "maximum lifetime transaction count")
	cmd.Flags().Duration("recency-window", 45*24*time.Hour, "recent-activity window")
	cmd.Flags().Bool("require-recent", false, "reject wallets without recent activity")
	cmd.Flags().Int("group-size", 4, "concurrent lookups per batch group")
	cmd.Flags().Duration("group-delay", time.Second, "delay between batch groups")
	cmd.Flags().Float64("explorer-rate", 5, "explorer requests per second")
	cmd.Flags().String("out", defaultOut, "output dataset path")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runStage(cmd *cobra.Command, side subgraph.Side) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadStage(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.SubgraphURL == "" {
		return fmt.Errorf("subgraph url is required")
	}
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Token) {
		return fmt.Errorf("invalid token address %q", cfg.Token)
	}

	fromTs, err := config.ParseTimestamp(cfg.From)
	if err != nil {
		return fmt.Errorf("parse from: %w", err)
	}
	toTs, err := config.ParseTimestamp(cfg.To)
	if err != nil {
		return fmt.Errorf("parse to: %w", err)
	}
	if toTs == 0 {
		toTs = uint64(time.Now().Unix())
	}
	if fromTs > toTs {
		return fmt.Errorf("range start is after range end")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	explorerClient := explorer.NewClient(explorer.Config{
		BaseURL:        cfg.EtherscanURL,
		APIKey:         cfg.EtherscanKey,
		Timeout:        cfg.Timeout,
		RequestsPerSec: cfg.ExplorerRate,
	})

	classifier := classify.New(classify.Config{
		MaxTxCount:            cfg.MaxTxCount,
		RecencyWindow:         cfg.RecencyWindow,
		RequireRecentActivity: cfg.RequireRecent,
	}, chainClient, explorerClient, logger)

	source := subgraph.NewClient(subgraph.Config{
		URL:          cfg.SubgraphURL,
		PageSize:     cfg.PageSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Timeout:      cfg.Timeout,
	}, logger)

	runner := pipeline.NewRunner(pipeline.Config{
		Filter: subgraph.Filter{
			Token:  cfg.Token,
			MinUsd: decimal.NewFromFloat(cfg.MinUsd),
			FromTs: fromTs,
			ToTs:   toTs,
			Side:   side,
		},
		Batch: batch.Config{
			GroupSize:  cfg.GroupSize,
			GroupDelay: cfg.GroupDelay,
		},
		Out: cfg.Out,
	}, source, classifier, logger)

	logger.Info("stage start",
		zap.String("side", string(side)),
		zap.String("token", cfg.Token),
		zap.Uint64("from", fromTs),
		zap.Uint64("to", toTs),
		zap.Float64("min_usd", cfg.MinUsd),
		zap.String("out", cfg.Out),
	)

	_, err = runner.Run(ctx)
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
