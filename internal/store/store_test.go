package store

import (
	"context"
	"testing"
	"time"

	"whatsapp-crm/internal/database/dbtest"
	"whatsapp-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workspace = "ws-1"

func testStore(t *testing.T) (*Store, *models.WhatsAppNumber) {
	t.Helper()
	s := New(dbtest.New(t))
	n := &models.WhatsAppNumber{
		WorkspaceID:   workspace,
		PhoneNumberID: "pnid-1",
		AccessToken:   "token",
		Status:        models.NumberStatusActive,
	}
	require.NoError(t, s.CreateNumber(context.Background(), n))
	return s, n
}

func strPtr(s string) *string { return &s }

// --- numbers ---

func TestNumberLookups(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()

	got, err := s.NumberByProviderID(ctx, "pnid-1")
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)

	_, err = s.NumberByProviderID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Number(ctx, "other-ws", n.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = s.Number(ctx, "", n.ID)
	require.NoError(t, err)
	assert.Equal(t, "token", got.AccessToken)
}

func TestUpdateNumber(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()

	got, err := s.UpdateNumber(ctx, workspace, n.ID, NumberUpdate{Status: strPtr(models.NumberStatusDisconnected)})
	require.NoError(t, err)
	assert.Equal(t, models.NumberStatusDisconnected, got.Status)

	_, err = s.UpdateNumber(ctx, "other-ws", n.ID, NumberUpdate{Status: strPtr(models.NumberStatusActive)})
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- contacts ---

func TestResolveContact_CreatesOnce(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	key := ContactKey{WorkspaceID: workspace, NumberID: n.ID, Phone: "+1 234 567 890"}

	first, err := s.ResolveContact(ctx, key, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", first.Phone)
	require.NotNil(t, first.Name)
	assert.Equal(t, "Alice", *first.Name)
	assert.NotNil(t, first.LastMessageAt)

	key.Phone = "1234567890"
	second, err := s.ResolveContact(ctx, key, "Mallory")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Alice", *second.Name, "existing name must not be overwritten")

	var count int64
	require.NoError(t, s.DB().Model(&models.Contact{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestResolveContact_FillsEmptyName(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	key := ContactKey{WorkspaceID: workspace, NumberID: n.ID, Phone: "1234567890"}

	first, err := s.ResolveContact(ctx, key, "")
	require.NoError(t, err)
	assert.Nil(t, first.Name)

	second, err := s.ResolveContact(ctx, key, "Bob")
	require.NoError(t, err)
	require.NotNil(t, second.Name)
	assert.Equal(t, "Bob", *second.Name)
}

func TestResolveContact_RejectsEmptyPhone(t *testing.T) {
	s, n := testStore(t)
	_, err := s.ResolveContact(context.Background(), ContactKey{WorkspaceID: workspace, NumberID: n.ID, Phone: "n/a"}, "")
	assert.Error(t, err)
}

func TestUpdateContact(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	c, err := s.ResolveContact(ctx, ContactKey{WorkspaceID: workspace, NumberID: n.ID, Phone: "1234567890"}, "")
	require.NoError(t, err)

	tags := []string{"vip", "hotel"}
	got, err := s.UpdateContact(ctx, workspace, c.ID, ContactUpdate{Name: strPtr("Carol"), Tags: &tags, Category: strPtr("guest")})
	require.NoError(t, err)
	assert.Equal(t, "Carol", *got.Name)
	assert.Equal(t, []string{"vip", "hotel"}, []string(got.Tags))

	_, err = s.UpdateContact(ctx, "other-ws", c.ID, ContactUpdate{Name: strPtr("Eve")})
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListContacts(ctx, workspace, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "guest", list[0].Category)
}

// --- conversations ---

func TestResolveConversation_InboundCounts(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	key := ConversationKey{WorkspaceID: workspace, NumberID: n.ID, Phone: "1234567890"}
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	conv, err := s.ResolveConversation(ctx, key, Preview{Text: "hi", At: t0}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, models.ConversationOpen, conv.Status)
	assert.Equal(t, "hi", conv.LastMessageText)

	conv2, err := s.ResolveConversation(ctx, key, Preview{Text: "again", At: t0.Add(time.Minute)}, true)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, conv2.ID)
	assert.Equal(t, 2, conv2.UnreadCount)
	assert.Equal(t, "again", conv2.LastMessageText)
	require.NotNil(t, conv2.LastMessageAt)
	assert.True(t, conv2.LastMessageAt.Equal(t0.Add(time.Minute)))
}

func TestResolveConversation_OutboundDoesNotCount(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	key := ConversationKey{WorkspaceID: workspace, NumberID: n.ID, Phone: "+1234567890"}

	conv, err := s.ResolveConversation(ctx, key, Preview{Text: "hello", At: time.Now()}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCount)
	assert.Equal(t, "1234567890", conv.ContactPhone)

	conv, err = s.ResolveConversation(ctx, key, Preview{Text: "follow-up", At: time.Now()}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCount)
	assert.Equal(t, "follow-up", conv.LastMessageText)
}

func TestResolveConversation_MatchesLegacyPhoneFormats(t *testing.T) {
	for _, stored := range []string{"919999999999", "+919999999999"} {
		t.Run(stored, func(t *testing.T) {
			s, n := testStore(t)
			ctx := context.Background()

			legacy := models.Conversation{
				WorkspaceID:      workspace,
				WhatsAppNumberID: n.ID,
				ContactPhone:     stored,
				Status:           models.ConversationOpen,
			}
			require.NoError(t, s.DB().Create(&legacy).Error)

			for _, lookup := range []string{"919999999999", "+919999999999", "+91 99999 99999"} {
				conv, err := s.ResolveConversation(ctx, ConversationKey{WorkspaceID: workspace, NumberID: n.ID, Phone: lookup}, Preview{Text: lookup, At: time.Now()}, false)
				require.NoError(t, err)
				assert.Equal(t, legacy.ID, conv.ID, "lookup %q", lookup)
			}

			var count int64
			require.NoError(t, s.DB().Model(&models.Conversation{}).Count(&count).Error)
			assert.EqualValues(t, 1, count)
		})
	}
}

func TestResolveConversation_ReopensClosedOnInbound(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	key := ConversationKey{WorkspaceID: workspace, NumberID: n.ID, Phone: "1234567890"}

	conv, err := s.ResolveConversation(ctx, key, Preview{Text: "a", At: time.Now()}, true)
	require.NoError(t, err)
	require.NoError(t, s.SetConversationStatus(ctx, workspace, conv.ID, models.ConversationClosed))

	conv, err = s.ResolveConversation(ctx, key, Preview{Text: "b", At: time.Now()}, false)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationClosed, conv.Status)

	conv, err = s.ResolveConversation(ctx, key, Preview{Text: "c", At: time.Now()}, true)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationOpen, conv.Status)
}

func TestMarkConversationRead(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	conv, err := s.ResolveConversation(ctx, ConversationKey{WorkspaceID: workspace, NumberID: n.ID, Phone: "1234567890"}, Preview{Text: "x", At: time.Now()}, true)
	require.NoError(t, err)

	require.NoError(t, s.MarkConversationRead(ctx, workspace, conv.ID))
	got, err := s.Conversation(ctx, workspace, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCount)

	assert.ErrorIs(t, s.MarkConversationRead(ctx, "other-ws", conv.ID), ErrNotFound)
}

// --- messages ---

func seedOutbound(t *testing.T, s *Store, n *models.WhatsAppNumber, providerID string) *models.Message {
	t.Helper()
	ctx := context.Background()
	conv, err := s.ResolveConversation(ctx, ConversationKey{WorkspaceID: workspace, NumberID: n.ID, Phone: "1234567890"}, Preview{Text: "out", At: time.Now()}, false)
	require.NoError(t, err)
	m := &models.Message{
		WorkspaceID:       workspace,
		ConversationID:    conv.ID,
		WhatsAppNumberID:  n.ID,
		Direction:         models.DirectionOutbound,
		Type:              "text",
		Content:           "out",
		ProviderMessageID: &providerID,
		Status:            models.StatusSent,
	}
	require.NoError(t, s.CreateMessage(ctx, m))
	return m
}

func TestApplyStatus_Idempotent(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	seedOutbound(t, s, n, "wamid.1")
	at := time.Unix(1_700_000_000, 0).UTC()

	upd := StatusUpdate{NumberID: n.ID, ProviderMessageID: "wamid.1", Status: models.StatusDelivered, At: at}
	first, err := s.ApplyStatus(ctx, upd)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := s.ApplyStatus(ctx, upd)
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, models.StatusDelivered, second[0].Status)
	require.NotNil(t, second[0].DeliveredAt)
	assert.True(t, second[0].DeliveredAt.Equal(at))
	assert.Equal(t, first[0].DeliveredAt.Unix(), second[0].DeliveredAt.Unix())
	assert.Nil(t, second[0].ReadAt)
}

func TestApplyStatus_FailedStoresError(t *testing.T) {
	s, n := testStore(t)
	seedOutbound(t, s, n, "wamid.2")

	got, err := s.ApplyStatus(context.Background(), StatusUpdate{
		NumberID: n.ID, ProviderMessageID: "wamid.2", Status: models.StatusFailed,
		At: time.Now(), ErrorText: "Message undeliverable",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusFailed, got[0].Status)
	assert.Equal(t, "Message undeliverable", got[0].ErrorText)
	assert.NotNil(t, got[0].FailedAt)
}

func TestApplyStatus_NoMatchIsNoop(t *testing.T) {
	s, n := testStore(t)
	seedOutbound(t, s, n, "wamid.3")
	ctx := context.Background()

	got, err := s.ApplyStatus(ctx, StatusUpdate{NumberID: n.ID, ProviderMessageID: "wamid.unknown", Status: models.StatusRead, At: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ApplyStatus(ctx, StatusUpdate{NumberID: "another-number", ProviderMessageID: "wamid.3", Status: models.StatusRead, At: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, got, "status from another number must not touch this message")

	_, err = s.ApplyStatus(ctx, StatusUpdate{NumberID: n.ID, ProviderMessageID: "wamid.3", Status: "deleted", At: time.Now()})
	assert.Error(t, err)
}

func TestListMessagesOldestFirst(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	first := seedOutbound(t, s, n, "wamid.a")
	time.Sleep(5 * time.Millisecond)
	second := seedOutbound(t, s, n, "wamid.b")

	msgs, err := s.ListMessages(ctx, workspace, first.ConversationID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)

	msgs, err = s.ListMessages(ctx, "other-ws", first.ConversationID, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestApplyStatus_LateCallbackKeepsHigherStatus(t *testing.T) {
	s, n := testStore(t)
	ctx := context.Background()
	seedOutbound(t, s, n, "wamid.late")
	readAt := time.Unix(1_700_000_200, 0).UTC()
	deliveredAt := time.Unix(1_700_000_100, 0).UTC()

	_, err := s.ApplyStatus(ctx, StatusUpdate{NumberID: n.ID, ProviderMessageID: "wamid.late", Status: models.StatusRead, At: readAt})
	require.NoError(t, err)

	got, err := s.ApplyStatus(ctx, StatusUpdate{NumberID: n.ID, ProviderMessageID: "wamid.late", Status: models.StatusDelivered, At: deliveredAt})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusRead, got[0].Status)
	require.NotNil(t, got[0].DeliveredAt)
	assert.True(t, got[0].DeliveredAt.Equal(deliveredAt))
	require.NotNil(t, got[0].ReadAt)
	assert.True(t, got[0].ReadAt.Equal(readAt))
}

func TestCreateMessageRejectsDuplicateProviderID(t *testing.T) {
	s, n := testStore(t)
	first := seedOutbound(t, s, n, "wamid.dup")

	providerID := "wamid.dup"
	err := s.CreateMessage(context.Background(), &models.Message{
		WorkspaceID: workspace, ConversationID: first.ConversationID, WhatsAppNumberID: n.ID,
		Direction: models.DirectionInbound, Type: "text", Status: models.StatusDelivered,
		ProviderMessageID: &providerID,
	})
	assert.Error(t, err)
}
