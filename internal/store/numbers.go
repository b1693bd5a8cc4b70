package store

import (
	"context"
	"fmt"

	"whatsapp-crm/internal/models"
)

// NumberByProviderID resolves the provider's phone_number_id from webhook metadata.
func (s *Store) NumberByProviderID(ctx context.Context, phoneNumberID string) (*models.WhatsAppNumber, error) {
	var n models.WhatsAppNumber
	if err := s.db.WithContext(ctx).Where("phone_number_id = ?", phoneNumberID).First(&n).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// Number loads a number by internal id. An empty workspaceID skips the tenant check.
func (s *Store) Number(ctx context.Context, workspaceID, id string) (*models.WhatsAppNumber, error) {
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if workspaceID != "" {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	var n models.WhatsAppNumber
	if err := q.First(&n).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (s *Store) ListNumbers(ctx context.Context, workspaceID string) ([]models.WhatsAppNumber, error) {
	numbers := []models.WhatsAppNumber{}
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&numbers).Error
	return numbers, err
}

func (s *Store) CreateNumber(ctx context.Context, n *models.WhatsAppNumber) error {
	if n.Status == "" {
		n.Status = models.NumberStatusPending
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("insert whatsapp number: %w", err)
	}
	return nil
}

type NumberUpdate struct {
	AccessToken        *string
	Status             *string
	DisplayPhoneNumber *string
}

func (s *Store) UpdateNumber(ctx context.Context, workspaceID, id string, upd NumberUpdate) (*models.WhatsAppNumber, error) {
	values := map[string]interface{}{}
	if upd.AccessToken != nil {
		values["access_token"] = *upd.AccessToken
	}
	if upd.Status != nil {
		values["status"] = *upd.Status
	}
	if upd.DisplayPhoneNumber != nil {
		values["display_phone_number"] = *upd.DisplayPhoneNumber
	}

	if len(values) > 0 {
		res := s.db.WithContext(ctx).Model(&models.WhatsAppNumber{}).
			Where("id = ? AND workspace_id = ?", id, workspaceID).
			Updates(values)
		if res.Error != nil {
			return nil, fmt.Errorf("update whatsapp number: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.Number(ctx, workspaceID, id)
}
