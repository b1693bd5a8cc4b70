package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"whatsapp-crm/internal/logging"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"
	wamodels "whatsapp-crm/pkg/models"

	"gorm.io/datatypes"
)

// Event types pushed to dashboard sockets.
const (
	EventMessageCreated      = "message.created"
	EventMessageStatus       = "message.status"
	EventConversationUpdated = "conversation.updated"
)

// Repository is the storage the pipeline writes through. *store.Store satisfies it.
type Repository interface {
	NumberByProviderID(ctx context.Context, phoneNumberID string) (*models.WhatsAppNumber, error)
	ResolveContact(ctx context.Context, key store.ContactKey, name string) (*models.Contact, error)
	ResolveConversation(ctx context.Context, key store.ConversationKey, preview store.Preview, inbound bool) (*models.Conversation, error)
	CreateMessage(ctx context.Context, m *models.Message) error
	MessageByProviderID(ctx context.Context, numberID, providerMessageID string) (*models.Message, error)
	ApplyStatus(ctx context.Context, upd store.StatusUpdate) ([]models.Message, error)
	LogWebhook(ctx context.Context, entry *models.WebhookLog) error
}

// Notifier fans pipeline events out to a workspace's live sessions.
type Notifier interface {
	Publish(workspaceID, eventType string, data interface{})
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, string, interface{}) {}

// Result counts what one delivery produced.
type Result struct {
	Messages int `json:"messages"`
	Statuses int `json:"statuses"`
	Skipped  int `json:"skipped"`
	// Duplicates are messages already stored by an earlier delivery.
	Duplicates int `json:"duplicates"`
}

// errDuplicate marks a redelivered message that is already stored.
var errDuplicate = errors.New("message already ingested")

// Ingestor turns webhook deliveries into contacts, conversations and messages.
type Ingestor struct {
	repo       Repository
	notify     Notifier
	reconciler *Reconciler
	log        *logging.Logger
	now        func() time.Time
}

func NewIngestor(repo Repository, notify Notifier, log *logging.Logger) *Ingestor {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &Ingestor{
		repo:       repo,
		notify:     notify,
		reconciler: NewReconciler(repo, notify, log),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Process walks entries, changes and units in array order. A unit that cannot be
// handled is logged and skipped; Process itself never fails.
func (in *Ingestor) Process(ctx context.Context, payload *wamodels.WebhookPayload) Result {
	var res Result
	for _, entry := range payload.Entry {
		for i := range entry.Changes {
			change := &entry.Changes[i]
			if change.Field != "messages" {
				continue
			}
			in.processChange(ctx, &change.Value, &res)
		}
	}
	return res
}

func (in *Ingestor) processChange(ctx context.Context, value *wamodels.ChangeValue, res *Result) {
	pnid := value.Metadata.PhoneNumberID
	number, err := in.repo.NumberByProviderID(ctx, pnid)
	if err != nil {
		units := len(value.Messages) + len(value.Statuses)
		res.Skipped += units
		if errors.Is(err, store.ErrNotFound) {
			in.log.Warn().Str("phone_number_id", pnid).Int("units", units).Msg("webhook for unknown number, skipping")
		} else {
			in.log.Error().Err(err).Str("phone_number_id", pnid).Msg("lookup number failed")
		}
		return
	}

	for _, raw := range value.Messages {
		if err := in.ingestMessage(ctx, number, value, raw); err != nil {
			if errors.Is(err, errDuplicate) {
				res.Duplicates++
				in.log.Debug().Str("phone_number_id", pnid).Msg("redelivered message ignored")
				continue
			}
			res.Skipped++
			in.log.Warn().Err(err).Str("phone_number_id", pnid).Msg("skipping inbound message")
			continue
		}
		res.Messages++
	}

	for _, raw := range value.Statuses {
		if err := in.reconciler.Apply(ctx, number, raw); err != nil {
			res.Skipped++
			in.log.Warn().Err(err).Str("phone_number_id", pnid).Msg("skipping status callback")
			continue
		}
		res.Statuses++
	}
}

func (in *Ingestor) ingestMessage(ctx context.Context, number *models.WhatsAppNumber, value *wamodels.ChangeValue, raw json.RawMessage) error {
	msg, err := wamodels.DecodeMessage(raw)
	if err != nil {
		return err
	}

	switch _, err := in.repo.MessageByProviderID(ctx, number.ID, msg.ID); {
	case err == nil:
		return errDuplicate
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	summary, typeTag := Classify(msg)
	at := wamodels.ParseTimestamp(msg.Timestamp, in.now())

	contact, err := in.repo.ResolveContact(ctx, store.ContactKey{
		WorkspaceID: number.WorkspaceID,
		NumberID:    number.ID,
		Phone:       msg.From,
	}, value.ProfileName(msg.From))
	if err != nil {
		return err
	}

	conv, err := in.repo.ResolveConversation(ctx, store.ConversationKey{
		WorkspaceID: number.WorkspaceID,
		NumberID:    number.ID,
		Phone:       contact.Phone,
		ContactID:   &contact.ID,
	}, store.Preview{Text: summary, At: at}, true)
	if err != nil {
		return err
	}

	providerID := msg.ID
	row := &models.Message{
		WorkspaceID:       number.WorkspaceID,
		ConversationID:    conv.ID,
		WhatsAppNumberID:  number.ID,
		Direction:         models.DirectionInbound,
		Type:              typeTag,
		Content:           summary,
		ProviderMessageID: &providerID,
		Status:            models.StatusDelivered,
		DeliveredAt:       &at,
		Metadata:          datatypes.JSON(raw),
	}
	if media := msg.Media(); media != nil {
		row.MediaID = media.ID
	}
	if err := in.repo.CreateMessage(ctx, row); err != nil {
		return err
	}

	in.log.Debug().
		Str("workspace_id", number.WorkspaceID).
		Str("conversation_id", conv.ID).
		Str("type", typeTag).
		Msg("inbound message stored")
	in.notify.Publish(number.WorkspaceID, EventMessageCreated, row)
	in.notify.Publish(number.WorkspaceID, EventConversationUpdated, conv)
	return nil
}
