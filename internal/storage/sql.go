package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one row of the storefront_kv table.
type Record struct {
	StorageKey string `gorm:"column:storage_key;primaryKey"`
	Value      string `gorm:"column:value;not null"`
	UpdatedAt  time.Time
}

func (Record) TableName() string { return "storefront_kv" }

// sqlConn is satisfied by *db.Client.
type sqlConn interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SQL stores records in the storefront_kv table created by the migrations.
type SQL struct {
	conn sqlConn
	now  func() time.Time
}

func NewSQL(conn sqlConn) *SQL {
	return &SQL{conn: conn, now: time.Now}
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var rec Record
	err := s.conn.DB().WithContext(ctx).Where("storage_key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	return s.upsert(s.conn.DB().WithContext(ctx), key, value)
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	return s.conn.DB().WithContext(ctx).Where("storage_key = ?", key).Delete(&Record{}).Error
}

// Batch applies ops in one transaction.
func (s *SQL) Batch(ctx context.Context, ops []Op) error {
	return s.conn.WithTx(ctx, func(tx *gorm.DB) error {
		for _, op := range ops {
			var err error
			if op.Delete {
				err = tx.Where("storage_key = ?", op.Key).Delete(&Record{}).Error
			} else {
				err = s.upsert(tx, op.Key, op.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQL) upsert(tx *gorm.DB, key, value string) error {
	rec := Record{StorageKey: key, Value: value, UpdatedAt: s.now().UTC()}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}
