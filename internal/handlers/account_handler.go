package handlers

import (
	"net/http"
	"strconv"

	"prediction-settlement/internal/auth"
	"prediction-settlement/internal/repository"
	"prediction-settlement/internal/services"

	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	gameService *services.GameService
	repo        *repository.Repository
}

func NewAccountHandler(gameService *services.GameService, repo *repository.Repository) *AccountHandler {
	return &AccountHandler{
		gameService: gameService,
		repo:        repo,
	}
}

// GetMyAccount retrieves the current user's ledger account
// GET /api/account
func (h *AccountHandler) GetMyAccount(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	account, err := h.gameService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// GetMyTransactions retrieves the current user's ledger history
// GET /api/account/transactions
func (h *AccountHandler) GetMyTransactions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	account, err := h.gameService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	limit := 50
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	transactions, err := h.repo.GetAccountTransactions(c.Request.Context(), account.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get transactions"})
		return
	}

	c.JSON(http.StatusOK, transactions)
}
