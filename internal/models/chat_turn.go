package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChatTurn is a billed unit covering one or more upstream completion calls.
type ChatTurn struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    string  `gorm:"type:varchar(64);not null;index:idx_chat_turns_user_session,priority:1"` // Owning account.
	SessionID *string `gorm:"type:varchar(128);index:idx_chat_turns_user_session,priority:2"`         // Caller supplied session, optional.

	Model string `gorm:"type:text;not null"` // Model of the latest call merged in.
	Title string `gorm:"type:text"`          // Sequence label, "Turn N".

	BaseCost         float64 `gorm:"type:decimal(20,10);not null;default:0"` // Cumulative pre-markup cost.
	FinalCost        float64 `gorm:"type:decimal(20,10);not null;default:0"` // Cumulative post-markup cost.
	MarkupPercentage float64 `gorm:"type:decimal(10,4);not null;default:0"`  // Markup rate snapshot, in percent.

	PromptTokens     int64 `gorm:"not null;default:0"`     // Cumulative prompt tokens.
	CompletionTokens int64 `gorm:"not null;default:0"`     // Cumulative completion tokens.
	Calls            int64 `gorm:"not null;default:1"`     // Number of upstream calls merged.
	Estimated        bool  `gorm:"not null;default:false"` // Any merged call used the character estimate.

	Detail datatypes.JSON `gorm:"type:jsonb"` // Breakdown of the latest call.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_chat_turns_user_session,priority:3"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`                                              // Last merge timestamp.
}
