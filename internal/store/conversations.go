package store

import (
	"context"
	"fmt"
	"time"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/phone"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationKey struct {
	WorkspaceID string
	NumberID    string
	Phone       string
	ContactID   *string
}

// Preview is the last-message snapshot written onto a conversation.
type Preview struct {
	Text string
	At   time.Time
}

// ResolveConversation finds the thread for key, matching legacy phone spellings,
// and records preview on it. Inbound traffic increments unread_count in the
// database and reopens a closed thread; outbound traffic leaves both alone. A
// missing thread is created with unread_count 1 (inbound) or 0 (outbound).
func (s *Store) ResolveConversation(ctx context.Context, key ConversationKey, preview Preview, inbound bool) (*models.Conversation, error) {
	canonical := phone.Normalize(key.Phone)
	if canonical == "" {
		return nil, fmt.Errorf("resolve conversation: phone %q has no digits", key.Phone)
	}
	db := s.db.WithContext(ctx)
	at := preview.At.UTC()
	if preview.At.IsZero() {
		at = time.Now().UTC()
	}

	existing, err := s.findConversation(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		values := map[string]interface{}{
			"last_message_text": preview.Text,
			"last_message_at":   at,
		}
		if inbound {
			values["unread_count"] = gorm.Expr("unread_count + ?", 1)
			values["status"] = models.ConversationOpen
		}
		if existing.ContactID == nil && key.ContactID != nil {
			values["contact_id"] = *key.ContactID
		}
		if err := db.Model(&models.Conversation{}).Where("id = ?", existing.ID).Updates(values).Error; err != nil {
			return nil, fmt.Errorf("update conversation: %w", err)
		}
		return s.Conversation(ctx, key.WorkspaceID, existing.ID)
	}

	conv := models.Conversation{
		WorkspaceID:      key.WorkspaceID,
		WhatsAppNumberID: key.NumberID,
		ContactID:        key.ContactID,
		ContactPhone:     canonical,
		Status:           models.ConversationOpen,
		LastMessageText:  preview.Text,
		LastMessageAt:    &at,
	}
	updates := clause.AssignmentColumns([]string{"last_message_text", "last_message_at", "updated_at"})
	if inbound {
		conv.UnreadCount = 1
		updates = append(updates,
			clause.Assignment{Column: clause.Column{Name: "unread_count"}, Value: gorm.Expr("conversations.unread_count + 1")},
			clause.Assignment{Column: clause.Column{Name: "status"}, Value: models.ConversationOpen},
		)
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "whatsapp_number_id"}, {Name: "contact_phone"}},
		DoUpdates: updates,
	}).Create(&conv).Error
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	var stored models.Conversation
	if err := db.Where("whatsapp_number_id = ? AND contact_phone = ?", key.NumberID, canonical).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload conversation: %w", notFound(err))
	}
	return &stored, nil
}

func (s *Store) findConversation(ctx context.Context, key ConversationKey) (*models.Conversation, error) {
	var matches []models.Conversation
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND whatsapp_number_id = ? AND contact_phone IN ?", key.WorkspaceID, key.NumberID, phone.Variants(key.Phone)).
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return preferCanonical(matches, phone.Normalize(key.Phone), func(c models.Conversation) string { return c.ContactPhone }), nil
}

func (s *Store) Conversation(ctx context.Context, workspaceID, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

type ConversationFilter struct {
	NumberID string
	Status   string
	Limit    int
	Offset   int
}

func (s *Store) ListConversations(ctx context.Context, workspaceID string, f ConversationFilter) ([]models.Conversation, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if f.NumberID != "" {
		q = q.Where("whatsapp_number_id = ?", f.NumberID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	conversations := []models.Conversation{}
	err := q.Order("last_message_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&conversations).Error
	return conversations, err
}

// MarkConversationRead is the explicit dashboard action that resets unread_count.
func (s *Store) MarkConversationRead(ctx context.Context, workspaceID, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND workspace_id = ?", id, workspaceID).
		Update("unread_count", 0)
	if res.Error != nil {
		return fmt.Errorf("mark conversation read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetConversationStatus(ctx context.Context, workspaceID, id, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND workspace_id = ?", id, workspaceID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("set conversation status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
