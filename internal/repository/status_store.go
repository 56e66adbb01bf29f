package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationStatus tracks one order event through delivery.
type NotificationStatus struct {
	RequestID string `gorm:"primaryKey"`
	Event     string
	UserID    string
	Status    string
	Sent      int
	Failed    int
	Detail    string
	UpdatedAt time.Time
}

type StatusStore struct {
	db        *gorm.DB
	tableName string
}

func NewStatusStore(db *gorm.DB, tableName string) (*StatusStore, error) {
	if tableName == "" {
		tableName = "notification_statuses"
	}
	if err := db.Table(tableName).AutoMigrate(&NotificationStatus{}); err != nil {
		return nil, err
	}
	return &StatusStore{
		db:        db,
		tableName: tableName,
	}, nil
}

// UpdateStatus upserts the status row for ns.RequestID.
func (s *StatusStore) UpdateStatus(ctx context.Context, ns NotificationStatus) error {
	ns.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "sent", "failed", "detail", "updated_at"}),
		}).Create(&ns).Error
}
