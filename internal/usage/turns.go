package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/resolv-sh/resolv-gateway/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const turnTitlePrefix = "Turn "

// TurnDelta is one call's contribution merged into an existing turn.
type TurnDelta struct {
	Model            string
	BaseCost         float64
	FinalCost        float64
	PromptTokens     int64
	CompletionTokens int64
	Estimated        bool
	Detail           datatypes.JSON
}

// TurnStore persists consolidated chat turns.
type TurnStore interface {
	FindLatestTurn(ctx context.Context, userID, sessionID string) (*models.ChatTurn, error)
	InsertTurn(ctx context.Context, turn *models.ChatTurn) error
	UpdateTurn(ctx context.Context, id uint64, delta TurnDelta) error
}

// GormTurnStore implements TurnStore on GORM.
type GormTurnStore struct {
	db *gorm.DB
}

// NewGormTurnStore constructs a GormTurnStore.
func NewGormTurnStore(db *gorm.DB) *GormTurnStore { return &GormTurnStore{db: db} }

// FindLatestTurn returns the most recently created turn of a session, or nil.
func (s *GormTurnStore) FindLatestTurn(ctx context.Context, userID, sessionID string) (*models.ChatTurn, error) {
	var turn models.ChatTurn
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Take(&turn).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("usage: find latest turn: %w", errFind)
	}
	return &turn, nil
}

// InsertTurn creates a new turn row.
func (s *GormTurnStore) InsertTurn(ctx context.Context, turn *models.ChatTurn) error {
	if turn == nil {
		return errors.New("usage: nil turn")
	}
	if turn.Calls == 0 {
		turn.Calls = 1
	}
	if errCreate := s.db.WithContext(ctx).Create(turn).Error; errCreate != nil {
		return fmt.Errorf("usage: insert turn: %w", errCreate)
	}
	return nil
}

// UpdateTurn adds delta to the running totals in a single statement and
// replaces the model with the latest call's.
func (s *GormTurnStore) UpdateTurn(ctx context.Context, id uint64, delta TurnDelta) error {
	updates := map[string]any{
		"base_cost":         gorm.Expr("base_cost + ?", delta.BaseCost),
		"final_cost":        gorm.Expr("final_cost + ?", delta.FinalCost),
		"prompt_tokens":     gorm.Expr("prompt_tokens + ?", delta.PromptTokens),
		"completion_tokens": gorm.Expr("completion_tokens + ?", delta.CompletionTokens),
		"calls":             gorm.Expr("calls + 1"),
		"model":             delta.Model,
	}
	if delta.Estimated {
		updates["estimated"] = true
	}
	if len(delta.Detail) > 0 {
		updates["detail"] = delta.Detail
	}
	res := s.db.WithContext(ctx).Model(&models.ChatTurn{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("usage: update turn %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("usage: update turn %d: not found", id)
	}
	return nil
}

// TurnQuery filters ListTurns.
type TurnQuery struct {
	UserID    string
	SessionID string
	Limit     int
}

// ListTurns returns a user's turns, newest first.
func (s *GormTurnStore) ListTurns(ctx context.Context, q TurnQuery) ([]models.ChatTurn, error) {
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Where("user_id = ?", q.UserID)
	if sessionID := strings.TrimSpace(q.SessionID); sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}
	var turns []models.ChatTurn
	if errFind := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&turns).Error; errFind != nil {
		return nil, fmt.Errorf("usage: list turns: %w", errFind)
	}
	return turns, nil
}

// NextTurnTitle labels the turn following prev: "Turn N+1" when prev is
// "Turn N", otherwise "Turn 1".
func NextTurnTitle(prev *models.ChatTurn) string {
	next := 1
	if prev != nil && strings.HasPrefix(prev.Title, turnTitlePrefix) {
		rest := strings.TrimSpace(strings.TrimPrefix(prev.Title, turnTitlePrefix))
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		if n, errAtoi := strconv.Atoi(rest[:end]); errAtoi == nil {
			next = n + 1
		}
	}
	return turnTitlePrefix + strconv.Itoa(next)
}

// TurnSummary aggregates a user's turns over a window.
type TurnSummary struct {
	Turns            int64   `json:"turns"`
	Calls            int64   `json:"calls"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	FinalCost        float64 `json:"final_cost"`
}

// Summarize totals the turns a user created at or after since.
func (s *GormTurnStore) Summarize(ctx context.Context, userID string, since time.Time) (TurnSummary, error) {
	var summary TurnSummary
	errScan := s.db.WithContext(ctx).Model(&models.ChatTurn{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Select("COUNT(*) AS turns, COALESCE(SUM(calls), 0) AS calls, " +
			"COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens, " +
			"COALESCE(SUM(completion_tokens), 0) AS completion_tokens, " +
			"COALESCE(SUM(final_cost), 0) AS final_cost").
		Scan(&summary).Error
	if errScan != nil {
		return TurnSummary{}, fmt.Errorf("usage: summarize turns: %w", errScan)
	}
	return summary, nil
}
