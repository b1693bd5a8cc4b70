package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"whatsapp-crm/internal/config"
	"whatsapp-crm/internal/database/dbtest"
	"whatsapp-crm/internal/logging"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordedEvent struct {
	workspace string
	kind      string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Publish(workspaceID, eventType string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{workspaceID, eventType})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.kind)
	}
	return out
}

type fixture struct {
	db     *gorm.DB
	store  *store.Store
	number *models.WhatsAppNumber
	events *recordingNotifier
	cfg    *config.Config
	router *gin.Engine
}

func newFixture(t *testing.T, appSecret string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	s := store.New(db)
	n := &models.WhatsAppNumber{
		WorkspaceID:   "ws-1",
		PhoneNumberID: "pnid-1",
		AccessToken:   "token",
		Status:        models.NumberStatusActive,
	}
	require.NoError(t, s.CreateNumber(context.Background(), n))

	cfg := &config.Config{VerifyToken: "verify-me", AppSecret: appSecret}
	events := &recordingNotifier{}
	log := logging.Nop()
	h := NewHandler(cfg, s, NewIngestor(s, events, log), log)

	r := gin.New()
	r.GET("/webhook", h.VerifyWebhook)
	r.POST("/webhook", h.HandleMessage)
	return &fixture{db: db, store: s, number: n, events: events, cfg: cfg, router: r}
}

func (f *fixture) post(t *testing.T, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func delivery(pnid string, contacts, messages, statuses string) string {
	value := `"messaging_product":"whatsapp","metadata":{"display_phone_number":"15550001111","phone_number_id":"` + pnid + `"}`
	if contacts != "" {
		value += `,"contacts":` + contacts
	}
	if messages != "" {
		value += `,"messages":` + messages
	}
	if statuses != "" {
		value += `,"statuses":` + statuses
	}
	return `{"object":"whatsapp_business_account","entry":[{"id":"waba-1","changes":[{"field":"messages","value":{` + value + `}}]}]}`
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestVerifyWebhook(t *testing.T) {
	f := newFixture(t, "")

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"match", "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing params", "", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestInboundTextFromNewPhone(t *testing.T) {
	f := newFixture(t, "")
	body := delivery("pnid-1",
		`[{"profile":{"name":"Asha"},"wa_id":"919999999999"}]`,
		`[{"from":"919999999999","id":"wamid.IN1","timestamp":"1700000000","type":"text","text":{"body":"Is the room free?"}}]`,
		"")

	w := f.post(t, body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["success"])

	var contact models.Contact
	require.NoError(t, f.db.Where("phone = ?", "919999999999").First(&contact).Error)
	require.NotNil(t, contact.Name)
	assert.Equal(t, "Asha", *contact.Name)
	assert.NotNil(t, contact.LastMessageAt)

	var conv models.Conversation
	require.NoError(t, f.db.Where("contact_phone = ?", "919999999999").First(&conv).Error)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, models.ConversationOpen, conv.Status)
	assert.Equal(t, "Is the room free?", conv.LastMessageText)
	require.NotNil(t, conv.ContactID)
	assert.Equal(t, contact.ID, *conv.ContactID)

	var msg models.Message
	require.NoError(t, f.db.Where("conversation_id = ?", conv.ID).First(&msg).Error)
	assert.Equal(t, models.DirectionInbound, msg.Direction)
	assert.Equal(t, models.StatusDelivered, msg.Status)
	assert.Equal(t, "text", msg.Type)
	assert.Equal(t, "wamid.IN1", *msg.ProviderMessageID)
	assert.Equal(t, "ws-1", msg.WorkspaceID)
	assert.Contains(t, string(msg.Metadata), "wamid.IN1")

	var logs []models.WebhookLog
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, body, logs[0].Payload)
	assert.Equal(t, []string{"pnid-1"}, []string(logs[0].PhoneNumberIDs))

	assert.Equal(t, []string{EventMessageCreated, EventConversationUpdated}, f.events.kinds())
}

func TestMalformedUnitDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t, "")
	body := delivery("pnid-1", "",
		`[{"from":"15551234567","type":"text","text":{"body":"no id"}},
		  "not even an object",
		  {"from":"15551234567","id":"wamid.OK","timestamp":"1700000001","type":"image","image":{"id":"media-1"}}]`,
		"")

	w := f.post(t, body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["success"])

	var msgs []models.Message
	require.NoError(t, f.db.Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, "[Image]", msgs[0].Content)
	assert.Equal(t, "media-1", msgs[0].MediaID)
}

func TestUnitsProcessedInOrder(t *testing.T) {
	f := newFixture(t, "")
	body := delivery("pnid-1", "",
		`[{"from":"15551234567","id":"wamid.1","timestamp":"1700000001","type":"text","text":{"body":"first"}},
		  {"from":"15551234567","id":"wamid.2","timestamp":"1700000002","type":"document","document":{"id":"d1","filename":"invoice.pdf"}}]`,
		"")

	require.Equal(t, http.StatusOK, f.post(t, body, nil).Code)

	var conv models.Conversation
	require.NoError(t, f.db.First(&conv).Error)
	assert.Equal(t, 2, conv.UnreadCount)
	assert.Equal(t, "[Document: invoice.pdf]", conv.LastMessageText)

	var contacts int64
	require.NoError(t, f.db.Model(&models.Contact{}).Count(&contacts).Error)
	assert.EqualValues(t, 1, contacts)
}

func TestRedeliveredMessageIsStoredOnce(t *testing.T) {
	f := newFixture(t, "")
	body := delivery("pnid-1", "",
		`[{"from":"15551234567","id":"wamid.RETRY","timestamp":"1700000001","type":"text","text":{"body":"are you open?"}}]`, "")

	require.Equal(t, http.StatusOK, f.post(t, body, nil).Code)
	require.Equal(t, http.StatusOK, f.post(t, body, nil).Code)

	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var conv models.Conversation
	require.NoError(t, f.db.First(&conv).Error)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, []string{EventMessageCreated, EventConversationUpdated}, f.events.kinds())
}

func TestUnknownNumberIsSkipped(t *testing.T) {
	f := newFixture(t, "")
	body := delivery("pnid-unknown", "",
		`[{"from":"15551234567","id":"wamid.X","timestamp":"1700000001","type":"text","text":{"body":"hello"}}]`, "")

	w := f.post(t, body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUndecodableBodyStillAcknowledged(t *testing.T) {
	f := newFixture(t, "")

	w := f.post(t, `{"entry": [oops`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["received"])

	var count int64
	require.NoError(t, f.db.Model(&models.WebhookLog{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestNonMessageFieldIgnored(t *testing.T) {
	f := newFixture(t, "")
	body := strings.Replace(delivery("pnid-1", "",
		`[{"from":"15551234567","id":"wamid.X","timestamp":"1700000001","type":"text","text":{"body":"hello"}}]`, ""),
		`"field":"messages"`, `"field":"account_update"`, 1)

	require.Equal(t, http.StatusOK, f.post(t, body, nil).Code)

	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSignatureMismatchIsAcknowledgedButNotProcessed(t *testing.T) {
	f := newFixture(t, "app-secret")
	body := delivery("pnid-1", "",
		`[{"from":"15551234567","id":"wamid.S","timestamp":"1700000001","type":"text","text":{"body":"signed"}}]`, "")

	w := f.post(t, body, map[string]string{SignatureHeader: Sign("rotated-secret", []byte(body))})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)

	w = f.post(t, body, map[string]string{SignatureHeader: Sign("app-secret", []byte(body))})
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var logs []models.WebhookLog
	require.NoError(t, f.db.Order("received_at").Find(&logs).Error)
	require.Len(t, logs, 2)
	valid := 0
	for _, l := range logs {
		if l.SignatureValid {
			valid++
		}
	}
	assert.Equal(t, 1, valid)
}

func seedOutbound(t *testing.T, f *fixture, providerID string) *models.Message {
	t.Helper()
	ctx := context.Background()
	conv, err := f.store.ResolveConversation(ctx, store.ConversationKey{
		WorkspaceID: "ws-1", NumberID: f.number.ID, Phone: "15551234567",
	}, store.Preview{Text: "hello"}, false)
	require.NoError(t, err)

	m := &models.Message{
		WorkspaceID:       "ws-1",
		ConversationID:    conv.ID,
		WhatsAppNumberID:  f.number.ID,
		Direction:         models.DirectionOutbound,
		Type:              "text",
		Content:           "hello",
		ProviderMessageID: &providerID,
		Status:            models.StatusSent,
	}
	require.NoError(t, f.store.CreateMessage(ctx, m))
	return m
}

func TestStatusCallbackIsIdempotent(t *testing.T) {
	f := newFixture(t, "")
	seeded := seedOutbound(t, f, "wamid.OUT1")
	body := delivery("pnid-1", "", "", `[{"id":"wamid.OUT1","status":"delivered","timestamp":"1700000100","recipient_id":"15551234567"}]`)

	require.Equal(t, http.StatusOK, f.post(t, body, nil).Code)
	var first models.Message
	require.NoError(t, f.db.First(&first, "id = ?", seeded.ID).Error)

	require.Equal(t, http.StatusOK, f.post(t, body, nil).Code)
	var second models.Message
	require.NoError(t, f.db.First(&second, "id = ?", seeded.ID).Error)

	assert.Equal(t, models.StatusDelivered, second.Status)
	require.NotNil(t, second.DeliveredAt)
	assert.Equal(t, int64(1700000100), second.DeliveredAt.Unix())
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.DeliveredAt.Equal(*second.DeliveredAt))
	assert.Contains(t, f.events.kinds(), EventMessageStatus)
}

func TestFailedStatusStoresFirstErrorTitle(t *testing.T) {
	f := newFixture(t, "")
	seeded := seedOutbound(t, f, "wamid.OUT2")
	body := delivery("pnid-1", "", "", `[{"id":"wamid.OUT2","status":"failed","timestamp":"1700000200","recipient_id":"15551234567",
		"errors":[{"code":131047,"title":"Re-engagement message"},{"code":1,"title":"second"}]}]`)

	require.Equal(t, http.StatusOK, f.post(t, body, nil).Code)

	var got models.Message
	require.NoError(t, f.db.First(&got, "id = ?", seeded.ID).Error)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "Re-engagement message", got.ErrorText)
	assert.NotNil(t, got.FailedAt)
}

func TestStatusForUnknownMessageIsNoop(t *testing.T) {
	f := newFixture(t, "")
	seeded := seedOutbound(t, f, "wamid.OUT3")
	body := delivery("pnid-1", "", "",
		`[{"id":"wamid.NEVER","status":"read","timestamp":"1700000300"},{"id":"wamid.OUT3","status":"exploded","timestamp":"1700000300"}]`)

	require.Equal(t, http.StatusOK, f.post(t, body, nil).Code)

	var got models.Message
	require.NoError(t, f.db.First(&got, "id = ?", seeded.ID).Error)
	assert.Equal(t, models.StatusSent, got.Status)
	assert.Nil(t, got.ReadAt)
}
