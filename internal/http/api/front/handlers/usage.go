package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resolv-sh/resolv-gateway/internal/usage"
)

// UsageHandler serves the caller's billed turns.
type UsageHandler struct {
	turns *usage.GormTurnStore
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(turns *usage.GormTurnStore) *UsageHandler {
	return &UsageHandler{turns: turns}
}

// turnItem is one billed turn as returned to the caller.
type turnItem struct {
	ID               uint64    `json:"id"`
	SessionID        string    `json:"session_id,omitempty"`
	Title            string    `json:"title,omitempty"`
	Model            string    `json:"model"`
	BaseCost         float64   `json:"base_cost"`
	FinalCost        float64   `json:"final_cost"`
	MarkupPercentage float64   `json:"markup_percentage"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	Calls            int64     `json:"calls"`
	Estimated        bool      `json:"estimated"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Turns lists recent turns, optionally for one session.
func (h *UsageHandler) Turns(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	turns, errList := h.turns.ListTurns(c.Request.Context(), usage.TurnQuery{
		UserID:    userID,
		SessionID: c.Query("session_id"),
		Limit:     limit,
	})
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query turns failed"})
		return
	}
	items := make([]turnItem, 0, len(turns))
	for _, t := range turns {
		item := turnItem{
			ID:               t.ID,
			Title:            t.Title,
			Model:            t.Model,
			BaseCost:         t.BaseCost,
			FinalCost:        t.FinalCost,
			MarkupPercentage: t.MarkupPercentage,
			PromptTokens:     t.PromptTokens,
			CompletionTokens: t.CompletionTokens,
			Calls:            t.Calls,
			Estimated:        t.Estimated,
			CreatedAt:        t.CreatedAt,
			UpdatedAt:        t.UpdatedAt,
		}
		if t.SessionID != nil {
			item.SessionID = *t.SessionID
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"turns": items})
}

// Stats returns spend summaries for recent time windows.
func (h *UsageHandler) Stats(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	periods := map[string]time.Time{
		"today":   today,
		"7_days":  today.AddDate(0, 0, -6),
		"30_days": today.AddDate(0, 0, -29),
	}

	result := make(map[string]usage.TurnSummary, len(periods))
	for name, since := range periods {
		summary, errSum := h.turns.Summarize(c.Request.Context(), userID, since)
		if errSum != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query usage failed"})
			return
		}
		result[name] = summary
	}
	c.JSON(http.StatusOK, result)
}
