package store

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/phone"

	"gorm.io/gorm"
)

var errDryRun = errors.New("dry run")

// NormalizeReport counts what a phone retrofit changed.
type NormalizeReport struct {
	ContactsRewritten      int
	ContactsMerged         int
	ConversationsRewritten int
	ConversationsMerged    int
}

// NormalizePhones rewrites stored contact and conversation phones into canonical
// form. Rows that collide with an existing canonical row are merged into it.
// With dryRun the transaction is rolled back after counting.
func (s *Store) NormalizePhones(ctx context.Context, dryRun bool) (NormalizeReport, error) {
	var report NormalizeReport

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := normalizeContacts(tx, &report); err != nil {
			return err
		}
		if err := normalizeConversations(tx, &report); err != nil {
			return err
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return report, err
	}
	return report, nil
}

func normalizeContacts(tx *gorm.DB, report *NormalizeReport) error {
	var all []models.Contact
	if err := tx.Order("created_at ASC").Find(&all).Error; err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}

	for i := range all {
		c := &all[i]
		canonical := phone.Normalize(c.Phone)
		if canonical == c.Phone || canonical == "" {
			continue
		}

		var keeper models.Contact
		err := tx.Where("whatsapp_number_id = ? AND phone = ?", c.WhatsAppNumberID, canonical).First(&keeper).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Model(&models.Contact{}).Where("id = ?", c.ID).Update("phone", canonical).Error; err != nil {
				return fmt.Errorf("rewrite contact %s: %w", c.ID, err)
			}
			report.ContactsRewritten++
		case err != nil:
			return fmt.Errorf("find canonical contact: %w", err)
		default:
			mergeContact(&keeper, c)
			if err := tx.Save(&keeper).Error; err != nil {
				return fmt.Errorf("merge contact %s: %w", c.ID, err)
			}
			if err := tx.Model(&models.Conversation{}).Where("contact_id = ?", c.ID).Update("contact_id", keeper.ID).Error; err != nil {
				return fmt.Errorf("repoint conversations of %s: %w", c.ID, err)
			}
			if err := tx.Delete(&models.Contact{}, "id = ?", c.ID).Error; err != nil {
				return fmt.Errorf("delete merged contact %s: %w", c.ID, err)
			}
			report.ContactsMerged++
		}
	}
	return nil
}

// mergeContact folds dup into keeper without overwriting anything keeper already has.
func mergeContact(keeper, dup *models.Contact) {
	if (keeper.Name == nil || *keeper.Name == "") && dup.Name != nil {
		keeper.Name = dup.Name
	}
	if keeper.Notes == "" {
		keeper.Notes = dup.Notes
	}
	if keeper.Category == "" {
		keeper.Category = dup.Category
	}
	seen := make(map[string]bool, len(keeper.Tags))
	for _, t := range keeper.Tags {
		seen[t] = true
	}
	for _, t := range dup.Tags {
		if !seen[t] {
			keeper.Tags = append(keeper.Tags, t)
			seen[t] = true
		}
	}
	if dup.LastMessageAt != nil && (keeper.LastMessageAt == nil || dup.LastMessageAt.After(*keeper.LastMessageAt)) {
		keeper.LastMessageAt = dup.LastMessageAt
	}
}

func normalizeConversations(tx *gorm.DB, report *NormalizeReport) error {
	var all []models.Conversation
	if err := tx.Order("created_at ASC").Find(&all).Error; err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}

	for i := range all {
		c := &all[i]
		canonical := phone.Normalize(c.ContactPhone)
		if canonical == c.ContactPhone || canonical == "" {
			continue
		}

		var keeper models.Conversation
		err := tx.Where("whatsapp_number_id = ? AND contact_phone = ?", c.WhatsAppNumberID, canonical).First(&keeper).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Model(&models.Conversation{}).Where("id = ?", c.ID).Update("contact_phone", canonical).Error; err != nil {
				return fmt.Errorf("rewrite conversation %s: %w", c.ID, err)
			}
			report.ConversationsRewritten++
		case err != nil:
			return fmt.Errorf("find canonical conversation: %w", err)
		default:
			keeper.UnreadCount += c.UnreadCount
			if keeper.ContactID == nil {
				keeper.ContactID = c.ContactID
			}
			if c.LastMessageAt != nil && (keeper.LastMessageAt == nil || c.LastMessageAt.After(*keeper.LastMessageAt)) {
				keeper.LastMessageAt = c.LastMessageAt
				keeper.LastMessageText = c.LastMessageText
			}
			if err := tx.Save(&keeper).Error; err != nil {
				return fmt.Errorf("merge conversation %s: %w", c.ID, err)
			}
			if err := tx.Model(&models.Message{}).Where("conversation_id = ?", c.ID).Update("conversation_id", keeper.ID).Error; err != nil {
				return fmt.Errorf("move messages of %s: %w", c.ID, err)
			}
			if err := tx.Delete(&models.Conversation{}, "id = ?", c.ID).Error; err != nil {
				return fmt.Errorf("delete merged conversation %s: %w", c.ID, err)
			}
			report.ConversationsMerged++
		}
	}
	return nil
}
