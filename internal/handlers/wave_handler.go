package handlers

import (
	"net/http"
	"time"

	"prediction-settlement/internal/repository"
	"prediction-settlement/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WaveHandler struct {
	waveService *services.WaveService
	repo        *repository.Repository
}

func NewWaveHandler(waveService *services.WaveService, repo *repository.Repository) *WaveHandler {
	return &WaveHandler{
		waveService: waveService,
		repo:        repo,
	}
}

// RunWave triggers a money-wave run for the current hour
// POST /api/admin/waves/run
func (h *WaveHandler) RunWave(c *gin.Context) {
	record, err := h.waveService.Run(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetWave retrieves a wave run record with its stage audit rows
// GET /api/admin/waves/:id
func (h *WaveHandler) GetWave(c *gin.Context) {
	waveID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wave id"})
		return
	}

	record, err := h.repo.GetWaveRecord(c.Request.Context(), waveID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wave not found"})
		return
	}

	issuances, err := h.repo.GetIssuanceRecords(c.Request.Context(), waveID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get issuance records"})
		return
	}

	moves, err := h.repo.GetRedistributionRecords(c.Request.Context(), waveID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get redistribution records"})
		return
	}

	ventures, err := h.repo.GetVentureRecords(c.Request.Context(), waveID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get venture records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wave":            record,
		"issuances":       issuances,
		"redistributions": moves,
		"ventures":        ventures,
	})
}
