// Package gormstore implements store.LedgerStore on Gorm + SQLite.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"qledger/internal/store"
)

// GormStore persists the trade ledger in a single SQLite file.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (and migrates) the ledger database at path.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: ledger path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&tradeRecordModel{}, &orderRecordModel{}, &orderPrimaryModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep contention low, this store has exactly two writers
	// (push handler and resync) that serialize per transaction anyway.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ store.LedgerStore = (*GormStore)(nil)

// --------------------- canonical trade rows -------------------------------

// ApplyMerge runs the whole merge-group write in one transaction:
//
//  1. claim the stable primary fill id for the order (first claim wins, an
//     existing claim is reused even if the candidate differs),
//  2. delete rows superseded by this merge,
//  3. insert-or-replace the canonical row under the claimed id.
func (s *GormStore) ApplyMerge(ctx context.Context, rec store.TradeRecord, groupFillIDs []string) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("gorm store not initialized")
	}
	if strings.TrimSpace(rec.OrderID) == "" {
		return "", fmt.Errorf("trade record requires order_id")
	}
	if strings.TrimSpace(rec.FillID) == "" {
		return "", fmt.Errorf("trade record requires a candidate fill_id")
	}

	primaryID := rec.FillID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := orderPrimaryModel{OrderID: rec.OrderID, PrimaryFillID: rec.FillID}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).Create(&claim).Error; err != nil {
			return err
		}
		var existing orderPrimaryModel
		if err := tx.Where("order_id = ?", rec.OrderID).First(&existing).Error; err != nil {
			return err
		}
		primaryID = existing.PrimaryFillID

		// Drop partial or stale rows: every fill id of the group other than
		// the primary, plus any previous canonical row stored under a
		// different id for this order.
		superseded := make([]string, 0, len(groupFillIDs))
		for _, id := range groupFillIDs {
			if id != "" && id != primaryID {
				superseded = append(superseded, id)
			}
		}
		if len(superseded) > 0 {
			if err := tx.Where("fill_id IN ?", superseded).Delete(&tradeRecordModel{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("order_id = ? AND fill_id != ?", rec.OrderID, primaryID).
			Delete(&tradeRecordModel{}).Error; err != nil {
			return err
		}

		rec.FillID = primaryID
		model := newTradeRecordModel(rec)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fill_id"}},
			DoUpdates: clause.AssignmentColumns(tradeUpdateColumns),
		}).Create(&model).Error
	})
	if err != nil {
		return "", err
	}
	return primaryID, nil
}

func (s *GormStore) GetTrade(ctx context.Context, fillID string) (store.TradeRecord, bool, error) {
	if s == nil || s.db == nil {
		return store.TradeRecord{}, false, fmt.Errorf("gorm store not initialized")
	}
	var model tradeRecordModel
	if err := s.db.WithContext(ctx).Where("fill_id = ?", fillID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.TradeRecord{}, false, nil
		}
		return store.TradeRecord{}, false, err
	}
	return tradeRecordModelToRecord(model), true, nil
}

func (s *GormStore) GetTradeByOrderID(ctx context.Context, orderID string) (store.TradeRecord, bool, error) {
	if s == nil || s.db == nil {
		return store.TradeRecord{}, false, fmt.Errorf("gorm store not initialized")
	}
	var model tradeRecordModel
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.TradeRecord{}, false, nil
		}
		return store.TradeRecord{}, false, err
	}
	return tradeRecordModelToRecord(model), true, nil
}

func (s *GormStore) ListTrades(ctx context.Context, date string) ([]store.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	query := s.db.WithContext(ctx).Model(&tradeRecordModel{})
	if date = strings.TrimSpace(date); date != "" {
		query = query.Where("trade_date = ?", date)
	}
	var models []tradeRecordModel
	if err := query.Order("exec_time ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.TradeRecord, 0, len(models))
	for _, m := range models {
		out = append(out, tradeRecordModelToRecord(m))
	}
	return out, nil
}

// --------------------- order snapshots ------------------------------------

// UpsertOrder installs the latest cumulative snapshot, overwriting every
// field. The brokerage reports full state each time, so last write wins.
func (s *GormStore) UpsertOrder(ctx context.Context, rec store.OrderRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if strings.TrimSpace(rec.OrderID) == "" {
		return fmt.Errorf("order record requires order_id")
	}
	model := newOrderRecordModel(rec)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns(orderUpdateColumns),
		}).
		Create(&model).Error
}

func (s *GormStore) ListOrders(ctx context.Context, date string) ([]store.OrderRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	query := s.db.WithContext(ctx).Model(&orderRecordModel{})
	if date = strings.TrimSpace(date); date != "" {
		query = query.Where("order_date = ?", date)
	}
	var models []orderRecordModel
	if err := query.Order("order_time ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.OrderRecord, 0, len(models))
	for _, m := range models {
		out = append(out, orderRecordModelToRecord(m))
	}
	return out, nil
}
