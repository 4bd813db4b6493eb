package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"walletScope/internal/model"
)

// WriteDataset writes an address-keyed wallet dataset as indented JSON.
// Decimal totals are encoded as strings, so profit and ROI recomputed
// from a reloaded dataset match the in-memory run exactly.
func WriteDataset(path string, dataset map[string]model.WalletAggregate) error {
	return writeJSON(path, dataset)
}

// ReadDataset loads an address-keyed wallet dataset.
func ReadDataset(path string) (map[string]model.WalletAggregate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	dataset := make(map[string]model.WalletAggregate)
	if err := json.Unmarshal(raw, &dataset); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}

	for wallet, agg := range dataset {
		if agg.Address == "" {
			agg.Address = wallet
			dataset[wallet] = agg
		}
	}
	return dataset, nil
}

// WriteReport writes the ranked profit report. The report is an array
// rather than an address-keyed object because its order is the ranking.
func WriteReport(path string, records []model.ProfitRecord) error {
	return writeJSON(path, records)
}

func writeJSON(path string, value any) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &PersistError{Path: path, Err: err}
		}
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return &PersistError{Path: path, Err: err}
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &PersistError{Path: path, Err: err}
	}
	return nil
}
