package api

import (
	"whatsapp-crm/internal/dispatch"
	"whatsapp-crm/internal/logging"
	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Messages      *MessageHandler
	Conversations *ConversationHandler
	Contacts      *ContactHandler
	Numbers       *NumberHandler
}

func NewHandlers(s *store.Store, d *dispatch.Dispatcher, log *logging.Logger) *Handlers {
	return &Handlers{
		Messages:      NewMessageHandler(d, log),
		Conversations: NewConversationHandler(s),
		Contacts:      NewContactHandler(s),
		Numbers:       NewNumberHandler(s),
	}
}

// Register mounts the dashboard API under g.
func (h *Handlers) Register(g *gin.RouterGroup) {
	g.Use(RequireWorkspace())

	g.POST("/messages/send", h.Messages.SendMessage)

	g.GET("/conversations", h.Conversations.GetConversations)
	g.GET("/conversations/:id/messages", h.Conversations.GetMessages)
	g.POST("/conversations/:id/read", h.Conversations.MarkRead)
	g.PUT("/conversations/:id/status", h.Conversations.UpdateStatus)

	// CRM Routes
	g.GET("/contacts", h.Contacts.GetContacts)
	g.GET("/contacts/export", h.Contacts.ExportContacts)
	g.PUT("/contacts/:id", h.Contacts.UpdateContact)

	g.GET("/numbers", h.Numbers.GetNumbers)
	g.POST("/numbers", h.Numbers.CreateNumber)
	g.PATCH("/numbers/:id", h.Numbers.UpdateNumber)
}
