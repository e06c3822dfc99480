package domain

import "time"

// Account is one linked mailbox. AccessToken is stored encrypted; the delta
// tokens are opaque provider cursors, advanced only after a fully successful
// page walk (see sync usecase).
type Account struct {
	ID                     string    `json:"id" gorm:"primaryKey"`
	UserID                 string    `json:"user_id" gorm:"index;not null"`
	Email                  string    `json:"email" gorm:"uniqueIndex;not null"`
	Name                   string    `json:"name"`
	Provider               string    `json:"provider"` // Google, Office365
	AccessToken            string    `json:"-" gorm:"not null"`
	NextDeltaToken         string    `json:"-"`
	NextDeltaTokenCalendar string    `json:"-"`
	CalendarID             string    `json:"-"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
