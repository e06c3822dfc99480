package repository

import (
	"time"

	accountdomain "mailpilot-backend/internal/account/domain"

	"gorm.io/gorm"
)

// AccountRepository defines the interface for account persistence. Delta
// tokens go through dedicated setters so the write path is easy to audit:
// only the sync usecase calls them, and only after a full page walk.
type AccountRepository interface {
	GetByID(id string) (*accountdomain.Account, error)
	GetByUserID(userID string) ([]*accountdomain.Account, error)
	Create(account *accountdomain.Account) error
	UpdateDeltaToken(accountID, token string) error
	UpdateCalendarSyncState(accountID, calendarID, token string) error
	Delete(accountID string) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetByID(id string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByUserID(userID string) ([]*accountdomain.Account, error) {
	var accounts []*accountdomain.Account
	if err := r.db.Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) Create(account *accountdomain.Account) error {
	return r.db.Create(account).Error
}

func (r *accountRepository) UpdateDeltaToken(accountID, token string) error {
	return r.db.Model(&accountdomain.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"next_delta_token": token,
			"updated_at":       time.Now(),
		}).Error
}

func (r *accountRepository) UpdateCalendarSyncState(accountID, calendarID, token string) error {
	updates := map[string]interface{}{
		"next_delta_token_calendar": token,
		"updated_at":                time.Now(),
	}
	if calendarID != "" {
		updates["calendar_id"] = calendarID
	}
	return r.db.Model(&accountdomain.Account{}).
		Where("id = ?", accountID).
		Updates(updates).Error
}

func (r *accountRepository) Delete(accountID string) error {
	return r.db.Where("id = ?", accountID).Delete(&accountdomain.Account{}).Error
}
