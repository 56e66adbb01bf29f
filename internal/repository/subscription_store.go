package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
)

// ErrNotFound is returned when no subscription matches.
var ErrNotFound = errors.New("subscription not found")

// SubscriptionRecord is the persisted form of a browser push subscription.
type SubscriptionRecord struct {
	ID             string `gorm:"type:varchar(36);primaryKey"`
	Endpoint       string `gorm:"type:text;uniqueIndex;not null"`
	P256dh         string `gorm:"column:p256dh;type:text;not null"`
	Auth           string `gorm:"type:text;not null"`
	UserID         string `gorm:"type:varchar(255);index"`
	Username       string `gorm:"type:varchar(255)"`
	VAPIDKey       string `gorm:"column:vapid_key;type:text"`
	ExpirationTime *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Subscription converts the record back to the wire shape.
func (r *SubscriptionRecord) Subscription() models.PushSubscription {
	return models.PushSubscription{
		Endpoint:       r.Endpoint,
		ExpirationTime: r.ExpirationTime,
		Keys: models.Keys{
			P256dh: r.P256dh,
			Auth:   r.Auth,
		},
	}
}

// NewSubscriptionRecord builds a record from a subscribe request.
func NewSubscriptionRecord(req models.SubscribeRequest, vapidKey string) *SubscriptionRecord {
	rec := &SubscriptionRecord{
		ID:             uuid.NewString(),
		Endpoint:       req.Subscription.Endpoint,
		P256dh:         req.Subscription.Keys.P256dh,
		Auth:           req.Subscription.Keys.Auth,
		VAPIDKey:       vapidKey,
		ExpirationTime: req.Subscription.ExpirationTime,
	}
	if req.UserID != nil {
		rec.UserID = *req.UserID
	}
	if req.Username != nil {
		rec.Username = *req.Username
	}
	return rec
}

type SubscriptionStore struct {
	db        *gorm.DB
	tableName string
}

func NewSubscriptionStore(db *gorm.DB, tableName string) (*SubscriptionStore, error) {
	if tableName == "" {
		tableName = "push_subscriptions"
	}
	if err := db.Table(tableName).AutoMigrate(&SubscriptionRecord{}); err != nil {
		return nil, err
	}
	return &SubscriptionStore{
		db:        db,
		tableName: tableName,
	}, nil
}

// Save inserts the record or, when the endpoint is already known, rebinds it
// to the new keys and identity.
func (s *SubscriptionStore) Save(ctx context.Context, rec *SubscriptionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"p256dh", "auth", "user_id", "username", "vapid_key", "expiration_time", "updated_at",
			}),
		}).Create(rec).Error
}

// DeleteByEndpoint removes the subscription for endpoint. Missing rows are not an error.
func (s *SubscriptionStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Table(s.tableName).
		Where("endpoint = ?", endpoint).
		Delete(&SubscriptionRecord{}).Error
}

func (s *SubscriptionStore) GetByEndpoint(ctx context.Context, endpoint string) (*SubscriptionRecord, error) {
	var rec SubscriptionRecord
	err := s.db.WithContext(ctx).Table(s.tableName).
		Where("endpoint = ?", endpoint).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SubscriptionStore) ListByUser(ctx context.Context, userID string) ([]SubscriptionRecord, error) {
	var recs []SubscriptionRecord
	err := s.db.WithContext(ctx).Table(s.tableName).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&recs).Error
	return recs, err
}

func (s *SubscriptionStore) ListAll(ctx context.Context) ([]SubscriptionRecord, error) {
	var recs []SubscriptionRecord
	err := s.db.WithContext(ctx).Table(s.tableName).
		Order("created_at").
		Find(&recs).Error
	return recs, err
}
