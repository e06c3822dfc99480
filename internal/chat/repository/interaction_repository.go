package repository

import (
	"time"

	chatdomain "mailpilot-backend/internal/chat/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatbotInteractionRepository tracks daily completion counts per user.
type ChatbotInteractionRepository interface {
	// CountForDay returns the number of successful completions recorded for
	// the user on the given day. No row means zero.
	CountForDay(userID, day string) (int, error)
	// Increment adds one to the user's counter for the day, creating the row
	// on first use. Atomic against concurrent requests.
	Increment(userID, day string) error
}

type interactionRepository struct {
	db *gorm.DB
}

func NewChatbotInteractionRepository(db *gorm.DB) ChatbotInteractionRepository {
	return &interactionRepository{db: db}
}

func (r *interactionRepository) CountForDay(userID, day string) (int, error) {
	var interaction chatdomain.ChatbotInteraction
	err := r.db.Where("user_id = ? AND day = ?", userID, day).First(&interaction).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return interaction.Count, nil
}

func (r *interactionRepository) Increment(userID, day string) error {
	now := time.Now()
	interaction := chatdomain.ChatbotInteraction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Day:       day,
		Count:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Single statement so two racing requests cannot both observe the missing
	// row and insert twice.
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("chatbot_interactions.count + 1"),
			"updated_at": now,
		}),
	}).Create(&interaction).Error
}
