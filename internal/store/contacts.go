package store

import (
	"context"
	"fmt"
	"time"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/phone"

	"gorm.io/gorm/clause"
)

// ContactKey identifies a counterpart of one business number.
type ContactKey struct {
	WorkspaceID string
	NumberID    string
	Phone       string
}

// ResolveContact finds the contact for key or creates it. An existing name is
// never replaced; an empty one is filled from name.
func (s *Store) ResolveContact(ctx context.Context, key ContactKey, name string) (*models.Contact, error) {
	canonical := phone.Normalize(key.Phone)
	if canonical == "" {
		return nil, fmt.Errorf("resolve contact: phone %q has no digits", key.Phone)
	}
	db := s.db.WithContext(ctx)
	now := time.Now().UTC()

	existing, err := s.findContact(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		values := map[string]interface{}{"last_message_at": now}
		if name != "" && (existing.Name == nil || *existing.Name == "") {
			values["name"] = name
		}
		if err := db.Model(&models.Contact{}).Where("id = ?", existing.ID).Updates(values).Error; err != nil {
			return nil, fmt.Errorf("touch contact: %w", err)
		}
		return s.contactByID(ctx, existing.ID)
	}

	contact := models.Contact{
		WorkspaceID:      key.WorkspaceID,
		WhatsAppNumberID: key.NumberID,
		Phone:            canonical,
		Tags:             []string{},
		LastMessageAt:    &now,
	}
	if name != "" {
		contact.Name = &name
	}
	// a concurrent creator may win the unique index; its row is the one we return
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "whatsapp_number_id"}, {Name: "phone"}},
		DoNothing: true,
	}).Create(&contact).Error
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}

	var stored models.Contact
	if err := db.Where("whatsapp_number_id = ? AND phone = ?", key.NumberID, canonical).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload contact: %w", notFound(err))
	}
	return &stored, nil
}

func (s *Store) findContact(ctx context.Context, key ContactKey) (*models.Contact, error) {
	var matches []models.Contact
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND whatsapp_number_id = ? AND phone IN ?", key.WorkspaceID, key.NumberID, phone.Variants(key.Phone)).
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("find contact: %w", err)
	}
	return preferCanonical(matches, phone.Normalize(key.Phone), func(c models.Contact) string { return c.Phone }), nil
}

func (s *Store) contactByID(ctx context.Context, id string) (*models.Contact, error) {
	var c models.Contact
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) ListContacts(ctx context.Context, workspaceID, numberID string) ([]models.Contact, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if numberID != "" {
		q = q.Where("whatsapp_number_id = ?", numberID)
	}
	contacts := []models.Contact{}
	err := q.Order("last_message_at DESC").Order("created_at DESC").Find(&contacts).Error
	return contacts, err
}

type ContactUpdate struct {
	Name     *string
	Tags     *[]string
	Notes    *string
	Category *string
}

// UpdateContact applies an explicit dashboard edit.
func (s *Store) UpdateContact(ctx context.Context, workspaceID, id string, upd ContactUpdate) (*models.Contact, error) {
	c, err := s.contactByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}

	if upd.Name != nil {
		c.Name = upd.Name
	}
	if upd.Tags != nil {
		c.Tags = *upd.Tags
	}
	if upd.Notes != nil {
		c.Notes = *upd.Notes
	}
	if upd.Category != nil {
		c.Category = *upd.Category
	}
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return c, nil
}

// preferCanonical picks the row stored under the canonical phone, falling back
// to the first legacy spelling.
func preferCanonical[T any](rows []T, canonical string, phoneOf func(T) string) *T {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if phoneOf(rows[i]) == canonical {
			return &rows[i]
		}
	}
	return &rows[0]
}
