package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NumberStatusActive       = "active"
	NumberStatusPending      = "pending"
	NumberStatusDisconnected = "disconnected"
	NumberStatusError        = "error"

	ConversationOpen    = "open"
	ConversationClosed  = "closed"
	ConversationPending = "pending"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Base carries the uuid primary key and timestamps shared by every table.
type Base struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// WhatsAppNumber is a connected business phone line and its Graph API credential.
type WhatsAppNumber struct {
	Base
	WorkspaceID        string `gorm:"type:varchar(64);not null;index" json:"workspace_id"`
	PhoneNumberID      string `gorm:"type:varchar(64);not null;uniqueIndex" json:"phone_number_id"`
	BusinessAccountID  string `gorm:"type:varchar(64)" json:"business_account_id"`
	DisplayPhoneNumber string `gorm:"type:varchar(32)" json:"display_phone_number"`
	AccessToken        string `gorm:"type:text" json:"-"`
	Status             string `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
}

func (WhatsAppNumber) TableName() string {
	return "whatsapp_numbers"
}

// Contact is a counterpart of one business number.
type Contact struct {
	Base
	WorkspaceID      string                      `gorm:"type:varchar(64);not null;index" json:"workspace_id"`
	WhatsAppNumberID string                      `gorm:"column:whatsapp_number_id;type:varchar(36);not null;uniqueIndex:ux_contacts_number_phone,priority:1" json:"whatsapp_number_id"`
	Phone            string                      `gorm:"type:varchar(32);not null;uniqueIndex:ux_contacts_number_phone,priority:2" json:"phone"`
	Name             *string                     `gorm:"type:varchar(255)" json:"name"`
	Tags             datatypes.JSONSlice[string] `json:"tags"`
	Notes            string                      `gorm:"type:text" json:"notes"`
	Category         string                      `gorm:"type:varchar(64)" json:"category"`
	LastMessageAt    *time.Time                  `json:"last_message_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Conversation is the single thread between a business number and a phone.
type Conversation struct {
	Base
	WorkspaceID      string     `gorm:"type:varchar(64);not null;index" json:"workspace_id"`
	WhatsAppNumberID string     `gorm:"column:whatsapp_number_id;type:varchar(36);not null;uniqueIndex:ux_conversations_number_phone,priority:1" json:"whatsapp_number_id"`
	ContactID        *string    `gorm:"type:varchar(36);index" json:"contact_id"`
	ContactPhone     string     `gorm:"type:varchar(32);not null;uniqueIndex:ux_conversations_number_phone,priority:2" json:"contact_phone"`
	Status           string     `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	UnreadCount      int        `gorm:"not null;default:0" json:"unread_count"`
	LastMessageText  string     `gorm:"type:text" json:"last_message_text"`
	LastMessageAt    *time.Time `gorm:"index" json:"last_message_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message is one wire message. Rows are only ever mutated by status reconciliation.
type Message struct {
	Base
	WorkspaceID       string         `gorm:"type:varchar(64);not null;index" json:"workspace_id"`
	ConversationID    string         `gorm:"type:varchar(36);not null;index" json:"conversation_id"`
	WhatsAppNumberID  string         `gorm:"column:whatsapp_number_id;type:varchar(36);not null;uniqueIndex:ux_messages_number_provider_id,priority:1" json:"whatsapp_number_id"`
	Direction         string         `gorm:"type:varchar(10);not null" json:"direction"`
	Type              string         `gorm:"type:varchar(32);not null" json:"type"`
	Content           string         `gorm:"type:text" json:"content"`
	MediaID           string         `gorm:"type:varchar(128)" json:"media_id,omitempty"`
	MediaURL          string         `gorm:"type:text" json:"media_url,omitempty"`
	ProviderMessageID *string        `gorm:"type:varchar(128);uniqueIndex:ux_messages_number_provider_id,priority:2" json:"provider_message_id"`
	Status            string         `gorm:"type:varchar(20);not null" json:"status"`
	SentAt            *time.Time     `json:"sent_at"`
	DeliveredAt       *time.Time     `json:"delivered_at"`
	ReadAt            *time.Time     `json:"read_at"`
	FailedAt          *time.Time     `json:"failed_at"`
	ErrorText         string         `gorm:"type:text" json:"error_text,omitempty"`
	Metadata          datatypes.JSON `json:"metadata,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// WebhookLog is the raw audit trail of every webhook delivery.
type WebhookLog struct {
	ID             string                      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Payload        string                      `gorm:"type:text;not null" json:"payload"`
	SignatureValid bool                        `json:"signature_valid"`
	PhoneNumberIDs datatypes.JSONSlice[string] `json:"phone_number_ids"`
	ReceivedAt     time.Time                   `gorm:"autoCreateTime;index" json:"received_at"`
}

func (l *WebhookLog) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

func (WebhookLog) TableName() string {
	return "webhook_logs"
}

// SystemSetting holds runtime overrides for selected config keys.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;type:varchar(100)" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
