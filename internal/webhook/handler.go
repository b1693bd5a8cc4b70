package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"whatsapp-crm/internal/config"
	"whatsapp-crm/internal/logging"
	"whatsapp-crm/internal/models"
	wamodels "whatsapp-crm/pkg/models"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Config   *config.Config
	Repo     Repository
	Ingestor *Ingestor
	log      *logging.Logger
}

func NewHandler(cfg *config.Config, repo Repository, ingestor *Ingestor, log *logging.Logger) *Handler {
	return &Handler{
		Config:   cfg,
		Repo:     repo,
		Ingestor: ingestor,
		log:      log,
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.Config.VerifyToken {
		h.log.Info().Msg("webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	h.log.Warn().Str("mode", mode).Msg("webhook verification rejected")
	c.Status(http.StatusForbidden)
}

// HandleMessage acknowledges every delivery with 200 so the provider keeps the
// subscription enabled. Only a forged signature is refused.
func (h *Handler) HandleMessage(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Error().Err(err).Msg("read webhook body")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	signatureValid := true
	if h.Config.AppSecret != "" {
		signatureValid = ValidSignature(h.Config.AppSecret, body, c.GetHeader(SignatureHeader))
	}

	var payload wamodels.WebhookPayload
	decodeErr := json.Unmarshal(body, &payload)

	entry := &models.WebhookLog{
		Payload:        string(body),
		SignatureValid: signatureValid,
		PhoneNumberIDs: payload.PhoneNumberIDs(),
	}
	if err := h.Repo.LogWebhook(ctx, entry); err != nil {
		h.log.Error().Err(err).Msg("store webhook log")
	}

	if !signatureValid {
		h.log.Warn().Str("log_id", entry.ID).Msg("webhook signature mismatch, payload not processed")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if decodeErr != nil {
		h.log.Warn().Err(decodeErr).Str("log_id", entry.ID).Msg("undecodable webhook body")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	res := h.Ingestor.Process(ctx, &payload)
	h.log.Info().
		Int("messages", res.Messages).
		Int("statuses", res.Statuses).
		Int("skipped", res.Skipped).
		Int("duplicates", res.Duplicates).
		Msg("webhook processed")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
