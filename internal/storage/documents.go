package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chiufan/tidescan/internal/core"
)

// Document paths inside the store.
const (
	TodayPath    = "stock_strategy_list.json"
	LedgerPath   = "stock_history.json"
	IndustryPath = "industry_cache.json"
)

// Documents manages the three persisted JSON documents on top of a
// blob Store. The today document is replaced wholesale every run; the
// ledger and industry cache are merge-on-write so a run never clobbers
// dates or classifications it did not touch.
type Documents struct {
	store Store
}

// NewDocuments creates the document layer.
func NewDocuments(store Store) *Documents {
	return &Documents{store: store}
}

// SaveToday overwrites the today document.
func (d *Documents) SaveToday(ctx context.Context, doc core.TodayDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := d.store.Write(ctx, TodayPath, data); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// LoadLedger reads the ledger document. A missing document is an empty
// ledger, not an error.
func (d *Documents) LoadLedger(ctx context.Context) (core.Ledger, error) {
	data, err := d.store.Read(ctx, LedgerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return core.Ledger{}, nil
		}
		if ok, exErr := d.store.Exists(ctx, LedgerPath); exErr == nil && !ok {
			return core.Ledger{}, nil
		}
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	var ledger core.Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding ledger: %w", err))
	}
	if ledger == nil {
		ledger = core.Ledger{}
	}
	return ledger, nil
}

// SaveLedger merges the given ledger into the stored document: date
// keys present in the update replace their stored lists, other dates
// are preserved. Existing dates are never dropped.
func (d *Documents) SaveLedger(ctx context.Context, ledger core.Ledger) error {
	stored, err := d.LoadLedger(ctx)
	if err != nil {
		return err
	}
	for date, entries := range ledger {
		stored[date] = entries
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := d.store.Write(ctx, LedgerPath, data); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// LoadIndustryCache reads the classification cache. Missing document
// is an empty cache.
func (d *Documents) LoadIndustryCache(ctx context.Context) (map[string]core.Classification, error) {
	data, err := d.store.Read(ctx, IndustryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]core.Classification{}, nil
		}
		if ok, exErr := d.store.Exists(ctx, IndustryPath); exErr == nil && !ok {
			return map[string]core.Classification{}, nil
		}
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	var cache map[string]core.Classification
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding industry cache: %w", err))
	}
	if cache == nil {
		cache = map[string]core.Classification{}
	}
	return cache, nil
}

// SaveIndustryCache merges new classifications into the stored cache.
// Append-only: existing labels are kept unless re-classified.
func (d *Documents) SaveIndustryCache(ctx context.Context, cache map[string]core.Classification) error {
	stored, err := d.LoadIndustryCache(ctx)
	if err != nil {
		return err
	}
	for id, cl := range cache {
		stored[id] = cl
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := d.store.Write(ctx, IndustryPath, data); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}
