package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-crm/internal/logging"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/whatsapp"
)

var (
	ErrNumberNotFound    = errors.New("whatsapp number not found")
	ErrNumberUnavailable = errors.New("whatsapp number is not active")
)

// ProviderError is a send the Graph API refused, already translated.
type ProviderError struct {
	whatsapp.Translation
	Code  int
	Cause *whatsapp.APIError
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// TransportError is a send that never got an answer from the provider.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "whatsapp provider unreachable: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Repository interface {
	Number(ctx context.Context, workspaceID, id string) (*models.WhatsAppNumber, error)
	ResolveConversation(ctx context.Context, key store.ConversationKey, preview store.Preview, inbound bool) (*models.Conversation, error)
	CreateMessage(ctx context.Context, m *models.Message) error
}

// Sender delivers a wire message. *whatsapp.Client satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, creds whatsapp.Credentials, msg whatsapp.GenericMessage) (*whatsapp.SendResponse, error)
}

type Notifier interface {
	Publish(workspaceID, eventType string, data interface{})
}

type Result struct {
	Success   bool            `json:"success"`
	MessageID string          `json:"message_id"`
	Message   *models.Message `json:"message"`
}

type Dispatcher struct {
	repo   Repository
	sender Sender
	notify Notifier
	log    *logging.Logger
	now    func() time.Time
}

func New(repo Repository, sender Sender, notify Notifier, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		repo:   repo,
		sender: sender,
		notify: notify,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Send validates req, delivers it through the workspace's number and records the
// outbound message. Validation failures return before any I/O.
func (d *Dispatcher) Send(ctx context.Context, workspaceID string, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	number, err := d.repo.Number(ctx, workspaceID, req.WhatsAppNumberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNumberNotFound
		}
		return nil, fmt.Errorf("load number: %w", err)
	}
	if number.Status != models.NumberStatusActive {
		return nil, ErrNumberUnavailable
	}

	wire := req.Render()
	resp, err := d.sender.SendMessage(ctx, whatsapp.Credentials{
		PhoneNumberID: number.PhoneNumberID,
		AccessToken:   number.AccessToken,
	}, wire)
	if err != nil {
		var apiErr *whatsapp.APIError
		if errors.As(err, &apiErr) {
			tr := apiErr.Translate()
			d.log.Warn().
				Int("code", apiErr.Code).
				Int("subcode", apiErr.Subcode).
				Str("category", string(tr.Category)).
				Str("fbtrace_id", apiErr.FBTraceID).
				Msg("provider rejected send")
			return nil, &ProviderError{Translation: tr, Code: apiErr.Code, Cause: apiErr}
		}
		d.log.Error().Err(err).Str("number_id", number.ID).Msg("provider call failed")
		return nil, &TransportError{Err: err}
	}
	providerID := resp.MessageID()

	now := d.now()
	summary := req.Summary()
	conv, err := d.repo.ResolveConversation(ctx, store.ConversationKey{
		WorkspaceID: number.WorkspaceID,
		NumberID:    number.ID,
		Phone:       wire.To,
	}, store.Preview{Text: summary, At: now}, false)
	if err != nil {
		d.log.Error().Err(err).Str("provider_message_id", providerID).Msg("sent but conversation not recorded")
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}

	row := &models.Message{
		WorkspaceID:       number.WorkspaceID,
		ConversationID:    conv.ID,
		WhatsAppNumberID:  number.ID,
		Direction:         models.DirectionOutbound,
		Type:              req.MessageType,
		Content:           summary,
		MediaURL:          req.MediaURL,
		ProviderMessageID: &providerID,
		Status:            models.StatusSent,
		SentAt:            &now,
	}
	if err := d.repo.CreateMessage(ctx, row); err != nil {
		d.log.Error().Err(err).Str("provider_message_id", providerID).Msg("sent but message not recorded")
		return nil, fmt.Errorf("store message: %w", err)
	}

	if d.notify != nil {
		d.notify.Publish(number.WorkspaceID, "message.created", row)
		d.notify.Publish(number.WorkspaceID, "conversation.updated", conv)
	}
	return &Result{Success: true, MessageID: providerID, Message: row}, nil
}
