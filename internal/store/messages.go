package store

import (
	"context"
	"fmt"
	"time"

	"whatsapp-crm/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// StatusUpdate is one delivery-status callback, already validated.
type StatusUpdate struct {
	NumberID          string
	ProviderMessageID string
	Status            string
	At                time.Time
	ErrorText         string
}

// statusColumns maps a delivery status to the timestamp column it stamps.
var statusColumns = map[string]string{
	models.StatusSent:      "sent_at",
	models.StatusDelivered: "delivered_at",
	models.StatusRead:      "read_at",
	models.StatusFailed:    "failed_at",
}

// statusRank orders delivery statuses. A callback never moves a message to a
// lower rank; it only stamps its own timestamp.
var statusRank = map[string]int{
	models.StatusPending:   0,
	models.StatusSent:      1,
	models.StatusDelivered: 2,
	models.StatusRead:      3,
	models.StatusFailed:    4,
}

// laterStatuses lists the statuses ranked above status.
func laterStatuses(status string) []string {
	var out []string
	for st, rank := range statusRank {
		if rank > statusRank[status] {
			out = append(out, st)
		}
	}
	return out
}

// KnownStatus reports whether status is one the reconciler applies.
func KnownStatus(status string) bool {
	_, ok := statusColumns[status]
	return ok
}

// ApplyStatus stamps the callback onto the matching outbound message and returns
// the updated rows. The status column only moves forward: a late "delivered"
// after "read" adds delivered_at and leaves the status at read. No match is not
// an error: the callback may precede our own insert or refer to a message never
// stored.
func (s *Store) ApplyStatus(ctx context.Context, upd StatusUpdate) ([]models.Message, error) {
	column, ok := statusColumns[upd.Status]
	if !ok {
		return nil, fmt.Errorf("apply status: unknown status %q", upd.Status)
	}
	values := map[string]interface{}{
		"status": upd.Status,
		column:   upd.At.UTC(),
	}
	if later := laterStatuses(upd.Status); len(later) > 0 {
		values["status"] = gorm.Expr("CASE WHEN status IN ? THEN status ELSE ? END", later, upd.Status)
	}
	if upd.Status == models.StatusFailed {
		values["error_text"] = upd.ErrorText
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&models.Message{}).
		Where("provider_message_id = ? AND whatsapp_number_id = ?", upd.ProviderMessageID, upd.NumberID).
		Updates(values)
	if res.Error != nil {
		return nil, fmt.Errorf("apply status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var updated []models.Message
	err := db.Where("provider_message_id = ? AND whatsapp_number_id = ?", upd.ProviderMessageID, upd.NumberID).
		Find(&updated).Error
	if err != nil {
		return nil, fmt.Errorf("reload status target: %w", err)
	}
	return updated, nil
}

func (s *Store) MessageByProviderID(ctx context.Context, numberID, providerMessageID string) (*models.Message, error) {
	var m models.Message
	err := s.db.WithContext(ctx).
		Where("provider_message_id = ? AND whatsapp_number_id = ?", providerMessageID, numberID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListMessages returns a page of a conversation, oldest first. before, when
// non-zero, pages backwards from that instant.
func (s *Store) ListMessages(ctx context.Context, workspaceID, conversationID string, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).
		Where("workspace_id = ? AND conversation_id = ?", workspaceID, conversationID)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}

	messages := []models.Message{}
	if err := q.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
