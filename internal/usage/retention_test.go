package usage

import (
	"context"
	"testing"
	"time"

	"github.com/resolv-sh/resolv-gateway/internal/models"
)

func TestRetentionCleanerDeletesOldTurns(t *testing.T) {
	conn := openTestDB(t)
	old := time.Now().UTC().AddDate(0, 0, -40)
	rows := []models.ChatTurn{
		{UserID: "u1", Model: "m", CreatedAt: old, UpdatedAt: old},
		{UserID: "u1", Model: "m"},
	}
	for i := range rows {
		if errCreate := conn.Create(&rows[i]).Error; errCreate != nil {
			t.Fatalf("seed: %v", errCreate)
		}
	}
	// autoUpdateTime overwrites UpdatedAt on create.
	if errUpdate := conn.Model(&models.ChatTurn{}).Where("id = ?", rows[0].ID).UpdateColumn("updated_at", old).Error; errUpdate != nil {
		t.Fatalf("age row: %v", errUpdate)
	}

	if n := NewRetentionCleaner(conn, 0).CleanupOnce(context.Background()); n != 0 {
		t.Fatalf("disabled cleaner deleted %d rows", n)
	}
	if n := NewRetentionCleaner(conn, 30).CleanupOnce(context.Background()); n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}
	var left int64
	conn.Model(&models.ChatTurn{}).Count(&left)
	if left != 1 {
		t.Fatalf("remaining = %d, want 1", left)
	}
}
