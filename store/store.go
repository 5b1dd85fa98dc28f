package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"pos.GO/agent"
	"pos.GO/catalog"
	"pos.GO/checkout"
)

// CatalogSnapshot is one agent's last fetched catalog, kept so the
// register can come up with a usable index before the agents answer.
type CatalogSnapshot struct {
	ID        uint           `gorm:"primaryKey"`
	Agent     string         `gorm:"uniqueIndex;size:16"`
	Items     datatypes.JSON `json:"items"`
	Aliases   datatypes.JSON `json:"aliases"`
	ItemCount int
	UpdatedAt time.Time
}

// SaleRow is the local journal of committed submissions. The agents hold
// the authoritative invoices; this exists for end-of-day review.
type SaleRow struct {
	ID           uint   `gorm:"primaryKey"`
	EventID      string `gorm:"index;size:64"`
	Company      string `gorm:"size:16"`
	Kind         string `gorm:"size:16"`
	Mode         string `gorm:"size:16"`
	Payment      string `gorm:"size:16"`
	CustomerID   string `gorm:"size:64"`
	CrossCompany bool
	Flagged      bool
	SplitGroupID string `gorm:"index;size:64"`
	LineCount    int
	TotalUSD     float64
	TotalLBP     float64
	CreatedAt    time.Time
}

// Store wraps the register's local sqlite file. It backs the catalog
// snapshot sink and the checkout journal. An optional redis client
// mirrors the latest snapshots for other terminals on the LAN.
type Store struct {
	db    *gorm.DB
	redis *redis.Client
}

// Open opens (or creates) the sqlite file and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&CatalogSnapshot{}, &SaleRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// SetRedis attaches the optional snapshot mirror. Mirror writes are best
// effort; redis being down never fails a save.
func (s *Store) SetRedis(c *redis.Client) { s.redis = c }

func (s *Store) DB() *gorm.DB { return s.db }

func redisSnapshotKey(k agent.Key) string {
	return "pos:catalog:" + k.String()
}

type snapshotPayload struct {
	Items   []catalog.Item         `json:"items"`
	Aliases []catalog.BarcodeAlias `json:"aliases"`
}

// SaveSnapshot upserts one agent's catalog snapshot.
func (s *Store) SaveSnapshot(k agent.Key, items []catalog.Item, aliases []catalog.BarcodeAlias) error {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: marshal items for %s: %w", k, err)
	}
	aliasJSON, err := json.Marshal(aliases)
	if err != nil {
		return fmt.Errorf("store: marshal aliases for %s: %w", k, err)
	}

	snap := CatalogSnapshot{
		Agent:     k.String(),
		Items:     itemsJSON,
		Aliases:   aliasJSON,
		ItemCount: len(items),
		UpdatedAt: time.Now(),
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "aliases", "item_count", "updated_at"}),
	}).Create(&snap).Error
	if err != nil {
		return fmt.Errorf("store: save snapshot for %s: %w", k, err)
	}

	if s.redis != nil {
		payload, _ := json.Marshal(snapshotPayload{Items: items, Aliases: aliases})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.redis.Set(ctx, redisSnapshotKey(k), payload, 0).Err(); err != nil {
			log.Printf("store: redis mirror for %s failed: %v", k, err)
		}
	}
	return nil
}

// LoadSnapshot returns the persisted catalog for one agent. A missing
// snapshot is not an error; it returns empty slices.
func (s *Store) LoadSnapshot(k agent.Key) ([]catalog.Item, []catalog.BarcodeAlias, error) {
	var snap CatalogSnapshot
	err := s.db.Where("agent = ?", k.String()).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: load snapshot for %s: %w", k, err)
	}

	var items []catalog.Item
	var aliases []catalog.BarcodeAlias
	if len(snap.Items) > 0 {
		if err := json.Unmarshal(snap.Items, &items); err != nil {
			return nil, nil, fmt.Errorf("store: decode items for %s: %w", k, err)
		}
	}
	if len(snap.Aliases) > 0 {
		if err := json.Unmarshal(snap.Aliases, &aliases); err != nil {
			return nil, nil, fmt.Errorf("store: decode aliases for %s: %w", k, err)
		}
	}
	return items, aliases, nil
}

// SnapshotAge returns when the agent's snapshot was last refreshed, zero
// if none exists.
func (s *Store) SnapshotAge(k agent.Key) time.Time {
	var snap CatalogSnapshot
	if err := s.db.Select("updated_at").Where("agent = ?", k.String()).First(&snap).Error; err != nil {
		return time.Time{}
	}
	return snap.UpdatedAt
}

// RecordSale appends a journal row.
func (s *Store) RecordSale(rec checkout.SaleRecord) error {
	row := SaleRow{
		EventID:      rec.EventID,
		Company:      rec.Company,
		Kind:         rec.Kind,
		Mode:         rec.Mode,
		Payment:      rec.Payment,
		CustomerID:   rec.CustomerID,
		CrossCompany: rec.CrossCompany,
		Flagged:      rec.Flagged,
		SplitGroupID: rec.SplitGroupID,
		LineCount:    rec.LineCount,
		TotalUSD:     rec.TotalUSD,
		TotalLBP:     rec.TotalLBP,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("store: record sale %s: %w", rec.EventID, err)
	}
	return nil
}

// RecentSales returns the newest journal rows, most recent first.
func (s *Store) RecentSales(limit int) ([]SaleRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []SaleRow
	err := s.db.Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}

// SalesBySplitGroup returns all legs of one split sale.
func (s *Store) SalesBySplitGroup(groupID string) ([]SaleRow, error) {
	var rows []SaleRow
	err := s.db.Where("split_group_id = ?", groupID).Order("id").Find(&rows).Error
	return rows, err
}

// FlaggedSales returns journal rows still marked for adjustment review.
func (s *Store) FlaggedSales(limit int) ([]SaleRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []SaleRow
	err := s.db.Where("flagged = ?", true).Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}
