package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// WebhookPayload represents the incoming JSON payload from WhatsApp.
// Messages and statuses stay raw so that one malformed unit does not fail the batch.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         Metadata          `json:"metadata"`
	Contacts         []Contact         `json:"contacts,omitempty"`
	Messages         []json.RawMessage `json:"messages,omitempty"`
	Statuses         []json.RawMessage `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile WhatsApp attaches next to messages.
type Contact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

// ProfileName returns the display name WhatsApp reported for waID, if any.
func (v *ChangeValue) ProfileName(waID string) string {
	for _, c := range v.Contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	if len(v.Contacts) == 1 {
		return v.Contacts[0].Profile.Name
	}
	return ""
}

// PhoneNumberIDs lists the business numbers a payload addresses, in order, without repeats.
func (p *WebhookPayload) PhoneNumberIDs() []string {
	ids := []string{}
	seen := map[string]bool{}
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			id := ch.Value.Metadata.PhoneNumberID
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// InboundMessage is one element of value.messages. Only the member named by Type is set.
type InboundMessage struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *TextMessage        `json:"text,omitempty"`
	Image       *MediaMessage       `json:"image,omitempty"`
	Video       *MediaMessage       `json:"video,omitempty"`
	Audio       *MediaMessage       `json:"audio,omitempty"`
	Document    *MediaMessage       `json:"document,omitempty"`
	Sticker     *MediaMessage       `json:"sticker,omitempty"`
	Location    *LocationMessage    `json:"location,omitempty"`
	Interactive *InteractiveMessage `json:"interactive,omitempty"`
	Button      *ButtonMessage      `json:"button,omitempty"`
}

type TextMessage struct {
	Body string `json:"body"`
}

// MediaMessage represents a media attachment in a WhatsApp message
type MediaMessage struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type LocationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// InteractiveMessage represents an interactive message response (buttons, lists)
type InteractiveMessage struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
	ListReply   *ListReply   `json:"list_reply,omitempty"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ButtonMessage is a quick-reply tap on a template button.
type ButtonMessage struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

var ErrMalformedUnit = errors.New("malformed webhook unit")

// Media returns the attachment for media kinds, or nil.
func (m *InboundMessage) Media() *MediaMessage {
	switch m.Type {
	case "image":
		return m.Image
	case "video":
		return m.Video
	case "audio":
		return m.Audio
	case "document":
		return m.Document
	case "sticker":
		return m.Sticker
	}
	return nil
}

// Validate checks the fields every downstream step relies on.
func (m *InboundMessage) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: message without id", ErrMalformedUnit)
	case m.From == "":
		return fmt.Errorf("%w: message %s without sender", ErrMalformedUnit, m.ID)
	case m.Type == "":
		return fmt.Errorf("%w: message %s without type", ErrMalformedUnit, m.ID)
	case m.Type == "text" && m.Text == nil:
		return fmt.Errorf("%w: text message %s without body", ErrMalformedUnit, m.ID)
	}
	return nil
}

// DecodeMessage parses and validates one raw messages[] element.
func DecodeMessage(raw json.RawMessage) (*InboundMessage, error) {
	var m InboundMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUnit, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Status is one element of value.statuses.
type Status struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// ErrorTitle returns the first reported error title, or "".
func (s *Status) ErrorTitle() string {
	if len(s.Errors) == 0 {
		return ""
	}
	if s.Errors[0].Title != "" {
		return s.Errors[0].Title
	}
	return s.Errors[0].Message
}

// DecodeStatus parses one raw statuses[] element.
func DecodeStatus(raw json.RawMessage) (*Status, error) {
	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUnit, err)
	}
	if s.ID == "" || s.Status == "" {
		return nil, fmt.Errorf("%w: status without id or status", ErrMalformedUnit)
	}
	return &s, nil
}

// ParseTimestamp reads WhatsApp's unix-seconds string, falling back to fallback.
func ParseTimestamp(ts string, fallback time.Time) time.Time {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Unix(secs, 0).UTC()
}
