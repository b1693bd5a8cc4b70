package api

import (
	"net/http"
	"strings"
	"time"

	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
)

type ContactHandler struct {
	Store *store.Store
}

func NewContactHandler(s *store.Store) *ContactHandler {
	return &ContactHandler{Store: s}
}

// GetContacts handles GET /api/contacts?number_id=
func (h *ContactHandler) GetContacts(c *gin.Context) {
	contacts, err := h.Store.ListContacts(c.Request.Context(), workspaceID(c), c.Query("number_id"))
	if err != nil {
		storeError(c, err, "contacts")
		return
	}
	c.JSON(http.StatusOK, contacts)
}

type UpdateContactRequest struct {
	Name     *string   `json:"name"`
	Tags     *[]string `json:"tags"`
	Notes    *string   `json:"notes"`
	Category *string   `json:"category"`
}

// UpdateContact handles PUT /api/contacts/:id
func (h *ContactHandler) UpdateContact(c *gin.Context) {
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.Store.UpdateContact(c.Request.Context(), workspaceID(c), c.Param("id"), store.ContactUpdate{
		Name:     req.Name,
		Tags:     req.Tags,
		Notes:    req.Notes,
		Category: req.Category,
	})
	if err != nil {
		storeError(c, err, "contact")
		return
	}
	c.JSON(http.StatusOK, contact)
}

type contactRow struct {
	Phone         string `csv:"Phone"`
	Name          string `csv:"Name"`
	Tags          string `csv:"Tags"`
	Category      string `csv:"Category"`
	Notes         string `csv:"Notes"`
	LastMessageAt string `csv:"Last Message At"`
	CreatedAt     string `csv:"Created At"`
}

// ExportContacts handles GET /api/contacts/export
func (h *ContactHandler) ExportContacts(c *gin.Context) {
	contacts, err := h.Store.ListContacts(c.Request.Context(), workspaceID(c), c.Query("number_id"))
	if err != nil {
		storeError(c, err, "contacts")
		return
	}

	rows := make([]contactRow, 0, len(contacts))
	for _, ct := range contacts {
		row := contactRow{
			Phone:     ct.Phone,
			Tags:      strings.Join(ct.Tags, ";"),
			Category:  ct.Category,
			Notes:     ct.Notes,
			CreatedAt: ct.CreatedAt.UTC().Format(time.RFC3339),
		}
		if ct.Name != nil {
			row.Name = *ct.Name
		}
		if ct.LastMessageAt != nil {
			row.LastMessageAt = ct.LastMessageAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export contacts"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}
