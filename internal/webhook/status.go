package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"whatsapp-crm/internal/logging"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"
	wamodels "whatsapp-crm/pkg/models"
)

// Reconciler applies delivery-status callbacks to stored outbound messages.
type Reconciler struct {
	repo   Repository
	notify Notifier
	log    *logging.Logger
	now    func() time.Time
}

func NewReconciler(repo Repository, notify Notifier, log *logging.Logger) *Reconciler {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &Reconciler{
		repo:   repo,
		notify: notify,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Apply decodes one statuses[] element and stamps it onto the matching message.
// A callback for a message we never stored is not an error.
func (r *Reconciler) Apply(ctx context.Context, number *models.WhatsAppNumber, raw json.RawMessage) error {
	st, err := wamodels.DecodeStatus(raw)
	if err != nil {
		return err
	}
	if !store.KnownStatus(st.Status) {
		return fmt.Errorf("%w: unknown status %q for %s", wamodels.ErrMalformedUnit, st.Status, st.ID)
	}

	updated, err := r.repo.ApplyStatus(ctx, store.StatusUpdate{
		NumberID:          number.ID,
		ProviderMessageID: st.ID,
		Status:            st.Status,
		At:                wamodels.ParseTimestamp(st.Timestamp, r.now()),
		ErrorText:         st.ErrorTitle(),
	})
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		r.log.Debug().Str("provider_message_id", st.ID).Str("status", st.Status).Msg("status for unknown message")
		return nil
	}
	for i := range updated {
		r.notify.Publish(number.WorkspaceID, EventMessageStatus, &updated[i])
	}
	return nil
}
