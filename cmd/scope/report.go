package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"walletScope/internal/batch"
	"walletScope/internal/config"
	"walletScope/internal/explorer"
	"walletScope/internal/model"
	"walletScope/internal/report"
	"walletScope/internal/storage"
	"walletScope/internal/storage/postgres"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Join buy and sell datasets into a ranked profit report",
		RunE:  runReport,
	}

	cmd.Flags().String("buy-data", "./data/walletBuydata.json", "buy-side dataset path")
	cmd.Flags().String("sell-data", "./data/walletSelldata.json", "sell-side dataset path")
	cmd.Flags().String("out", "./data/walletProfitROIdata.json", "output report path")
	cmd.Flags().StringSlice("sort", []string{"roi"}, "sort keys in priority order (roi, profit, balance)")
	cmd.Flags().Int("top", 0, "keep only the top N records, 0 means all")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the report")
	cmd.Flags().String("token", "", "token contract address (required with --pg-dsn)")
	cmd.Flags().String("etherscan-url", "", "explorer API URL (default Etherscan mainnet)")
	cmd.Flags().String("etherscan-api-key", "", "explorer API key")
	cmd.Flags().Duration("timeout", 10*time.Second, "per-request timeout")
	cmd.Flags().Int("group-size", 4, "concurrent lookups per batch group")
	cmd.Flags().Duration("group-delay", time.Second, "delay between batch groups")
	cmd.Flags().Float64("explorer-rate", 5, "explorer requests per second")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sortKeys, err := parseSortKeys(cfg.Sort)
	if err != nil {
		return err
	}
	if cfg.PGDSN != "" && cfg.Token == "" {
		return fmt.Errorf("token is required when writing the report to postgres")
	}

	buy, err := storage.ReadDataset(cfg.BuyData)
	if err != nil {
		return fmt.Errorf("load buy dataset: %w", err)
	}
	sell, err := storage.ReadDataset(cfg.SellData)
	if err != nil {
		return fmt.Errorf("load sell dataset: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var balances report.BalanceReader
	for _, key := range sortKeys {
		if key == report.SortByBalance {
			balances = explorer.NewClient(explorer.Config{
				BaseURL:        cfg.EtherscanURL,
				APIKey:         cfg.EtherscanKey,
				Timeout:        cfg.Timeout,
				RequestsPerSec: cfg.ExplorerRate,
			})
		}
	}

	builder := report.New(report.Config{
		SortKeys: sortKeys,
		Top:      cfg.Top,
		Batch: batch.Config{
			GroupSize:  cfg.GroupSize,
			GroupDelay: cfg.GroupDelay,
		},
	}, balances, logger)

	records := builder.Build(ctx, buy, sell)
	printReport(records, balances != nil)

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if err := store.UpsertProfitRecords(ctx, cfg.Token, records); err != nil {
			return fmt.Errorf("store report: %w", err)
		}
	}

	if err := storage.WriteReport(cfg.Out, records); err != nil {
		return err
	}
	logger.Info("report saved", zap.String("path", cfg.Out), zap.Int("records", len(records)))

	return nil
}

func parseSortKeys(keys []string) ([]report.SortKey, error) {
	out := make([]report.SortKey, 0, len(keys))
	for _, key := range keys {
		switch report.SortKey(key) {
		case report.SortByRoi, report.SortByProfit, report.SortByBalance:
			out = append(out, report.SortKey(key))
		default:
			return nil, fmt.Errorf("unknown sort key %q", key)
		}
	}
	return out, nil
}

func printReport(records []model.ProfitRecord, withBalance bool) {
	table := tablewriter.NewWriter(os.Stdout)
	header := []string{"#", "Wallet", "Buy USD", "Sell USD", "Profit", "ROI %"}
	if withBalance {
		header = append(header, "Balance ETH")
	}
	table.SetHeader(header)
	table.SetBorder(false)

	for i, record := range records {
		row := []string{
			fmt.Sprintf("%d", i+1),
			record.Address,
			record.BuyUsd.StringFixed(2),
			record.SellUsd.StringFixed(2),
			record.Profit.StringFixed(2),
			record.Roi.StringFixed(2),
		}
		if withBalance {
			row = append(row, record.Balance.StringFixed(4))
		}
		table.Append(row)
	}
	table.Render()
}
