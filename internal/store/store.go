// Package store is the persistence layer of the message pipeline. Every query is
// scoped to a workspace or to a business number that belongs to one.
package store

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-crm/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for operator tools that need raw access.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) LogWebhook(ctx context.Context, entry *models.WebhookLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
