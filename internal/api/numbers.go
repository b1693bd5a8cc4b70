package api

import (
	"net/http"
	"strings"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

type NumberHandler struct {
	Store *store.Store
}

func NewNumberHandler(s *store.Store) *NumberHandler {
	return &NumberHandler{Store: s}
}

// GetNumbers handles GET /api/numbers
func (h *NumberHandler) GetNumbers(c *gin.Context) {
	numbers, err := h.Store.ListNumbers(c.Request.Context(), workspaceID(c))
	if err != nil {
		storeError(c, err, "numbers")
		return
	}
	c.JSON(http.StatusOK, numbers)
}

type CreateNumberRequest struct {
	PhoneNumberID      string `json:"phone_number_id" binding:"required"`
	BusinessAccountID  string `json:"business_account_id"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	AccessToken        string `json:"access_token" binding:"required"`
	Status             string `json:"status" binding:"omitempty,oneof=active pending disconnected error"`
}

// CreateNumber handles POST /api/numbers
func (h *NumberHandler) CreateNumber(c *gin.Context) {
	var req CreateNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n := &models.WhatsAppNumber{
		WorkspaceID:        workspaceID(c),
		PhoneNumberID:      strings.TrimSpace(req.PhoneNumberID),
		BusinessAccountID:  req.BusinessAccountID,
		DisplayPhoneNumber: req.DisplayPhoneNumber,
		AccessToken:        req.AccessToken,
		Status:             req.Status,
	}
	if err := h.Store.CreateNumber(c.Request.Context(), n); err != nil {
		// phone_number_id is unique across workspaces
		if _, lookupErr := h.Store.NumberByProviderID(c.Request.Context(), n.PhoneNumberID); lookupErr == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "phone_number_id is already registered"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register number"})
		return
	}
	c.JSON(http.StatusCreated, n)
}

type UpdateNumberRequest struct {
	AccessToken        *string `json:"access_token"`
	Status             *string `json:"status" binding:"omitempty,oneof=active pending disconnected error"`
	DisplayPhoneNumber *string `json:"display_phone_number"`
}

// UpdateNumber handles PATCH /api/numbers/:id
func (h *NumberHandler) UpdateNumber(c *gin.Context) {
	var req UpdateNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.Store.UpdateNumber(c.Request.Context(), workspaceID(c), c.Param("id"), store.NumberUpdate{
		AccessToken:        req.AccessToken,
		Status:             req.Status,
		DisplayPhoneNumber: req.DisplayPhoneNumber,
	})
	if err != nil {
		storeError(c, err, "number")
		return
	}
	c.JSON(http.StatusOK, n)
}
