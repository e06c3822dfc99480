package domain

import "time"

// ChatbotInteraction is the per-user daily completion counter. The key
// includes the calendar day, so a new day simply has no row until first use;
// nothing is ever explicitly reset.
type ChatbotInteraction struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_user_day;not null"`
	Day       string    `json:"day" gorm:"uniqueIndex:idx_user_day;not null"` // "2006-01-02", server-local
	Count     int       `json:"count" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ChatbotInteraction) TableName() string {
	return "chatbot_interactions"
}

// DayKey formats the quota day for a point in time, in the server's local
// timezone.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
