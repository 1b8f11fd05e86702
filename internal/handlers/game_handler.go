package handlers

import (
	"net/http"
	"strconv"

	"prediction-settlement/internal/auth"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type GameHandler struct {
	gameService       *services.GameService
	settlementService *services.SettlementService
}

func NewGameHandler(gameService *services.GameService, settlementService *services.SettlementService) *GameHandler {
	return &GameHandler{
		gameService:       gameService,
		settlementService: settlementService,
	}
}

// CreateGame creates a new prediction game
// POST /api/admin/games
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req models.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.CreateGame(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, game)
}

// ActivateGame opens a game for wagers
// POST /api/admin/games/:id/activate
func (h *GameHandler) ActivateGame(c *gin.Context) {
	gameID, err := parseGameID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}

	if err := h.gameService.ActivateGame(c.Request.Context(), gameID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.GameStatusActive})
}

// CloseGame closes wager registration on a game early
// POST /api/admin/games/:id/close
func (h *GameHandler) CloseGame(c *gin.Context) {
	gameID, err := parseGameID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}

	if err := h.gameService.CloseGame(c.Request.Context(), gameID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.GameStatusClosed})
}

// CancelGame cancels a game and refunds all active stakes
// POST /api/admin/games/:id/cancel
func (h *GameHandler) CancelGame(c *gin.Context) {
	gameID, err := parseGameID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}

	if err := h.gameService.CancelGame(c.Request.Context(), gameID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.GameStatusCancelled})
}

// SettleGame settles a closed game against its resolved outcome
// POST /api/admin/games/:id/settle
func (h *GameHandler) SettleGame(c *gin.Context) {
	gameID, err := parseGameID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}

	if err := h.settlementService.SettleGame(c.Request.Context(), gameID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.GameStatusSettled})
}

// GetGame retrieves the public state of a game
// GET /api/games/:id
func (h *GameHandler) GetGame(c *gin.Context) {
	gameID, err := parseGameID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}

	state, err := h.gameService.GetGameState(c.Request.Context(), gameID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// ListGames lists games by status
// GET /api/games?status=ACTIVE
func (h *GameHandler) ListGames(c *gin.Context) {
	status := models.GameStatus(c.DefaultQuery("status", string(models.GameStatusActive)))

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	games, err := h.gameService.ListGamesByStatus(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list games"})
		return
	}

	c.JSON(http.StatusOK, games)
}

// PlaceWager places a wager on an active game for the current user
// POST /api/wagers
func (h *GameHandler) PlaceWager(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.PlaceWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wager, err := h.gameService.PlaceWager(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, wager)
}

// GetMyWagers retrieves the current user's wagers
// GET /api/wagers
func (h *GameHandler) GetMyWagers(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	wagers, err := h.gameService.GetAccountWagers(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get wagers"})
		return
	}

	c.JSON(http.StatusOK, wagers)
}

func parseGameID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
