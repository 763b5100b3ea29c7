package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrDataNotFound is returned when a data_cid has no stored blob.
var ErrDataNotFound = errors.New("storage: data not found")

// dataBlobRow is a reference-counted content-addressed blob. Multiple
// records can point at the same data_cid (e.g. re-uploading identical
// content, or a protocol where several records share an attachment);
// the blob is only deleted once every referencing record has released it.
type dataBlobRow struct {
	DataCID  string `gorm:"column:data_cid;primarykey;not null"`
	Data     []byte `gorm:"column:data;not null"`
	RefCount int    `gorm:"column:ref_count;not null"`
}

func (dataBlobRow) TableName() string { return "data_blobs" }

// DataStore is the reference-counted content-addressed store backing
// a record's data_cid: the bytes a balanced DAG-PB tree hashes to.
type DataStore struct {
	db *gorm.DB
}

// NewDataStore opens a DataStore against db, migrating its schema.
func NewDataStore(db *gorm.DB) (*DataStore, error) {
	if err := db.AutoMigrate(&dataBlobRow{}); err != nil {
		return nil, fmt.Errorf("storage: failed to migrate data schema: %w", err)
	}

	return &DataStore{db: db}, nil
}

// AddRef stores data under dataCID if not already present, else
// increments its reference count. data must already be known to hash
// to dataCID; this store does not re-derive or verify it.
func (s *DataStore) AddRef(ctx context.Context, dataCID string, data []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing dataBlobRow

		err := tx.Where("data_cid = ?", dataCID).First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&dataBlobRow{DataCID: dataCID, Data: data, RefCount: 1}).Error
		case err != nil:
			return fmt.Errorf("storage: failed to load data blob %q: %w", dataCID, err)
		}

		return tx.Model(&dataBlobRow{}).Where("data_cid = ?", dataCID).
			Update("ref_count", gorm.Expr("ref_count + 1")).Error
	})
}

// RemoveRef decrements dataCID's reference count, deleting the blob
// once it reaches zero.
func (s *DataStore) RemoveRef(ctx context.Context, dataCID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing dataBlobRow

		err := tx.Where("data_cid = ?", dataCID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDataNotFound
		}

		if err != nil {
			return fmt.Errorf("storage: failed to load data blob %q: %w", dataCID, err)
		}

		if existing.RefCount <= 1 {
			return tx.Delete(&dataBlobRow{}, "data_cid = ?", dataCID).Error
		}

		return tx.Model(&dataBlobRow{}).Where("data_cid = ?", dataCID).
			Update("ref_count", gorm.Expr("ref_count - 1")).Error
	})
}

// Read returns the bytes stored under dataCID.
func (s *DataStore) Read(ctx context.Context, dataCID string) ([]byte, error) {
	var row dataBlobRow

	err := s.db.WithContext(ctx).Where("data_cid = ?", dataCID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDataNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("storage: failed to read data blob %q: %w", dataCID, err)
	}

	return row.Data, nil
}
