package repository

import (
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type emailSyncHistoryRepository struct {
	db *gorm.DB
}

func NewEmailSyncHistoryRepository(db *gorm.DB) EmailSyncHistoryRepository {
	return &emailSyncHistoryRepository{db: db}
}

func (r *emailSyncHistoryRepository) IsEmailSynced(accountID, emailID, bodyDigest string) (bool, error) {
	var history emaildomain.EmailSyncHistory
	err := r.db.Where("account_id = ? AND email_id = ?", accountID, emailID).First(&history).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	// A changed body means the search document must be rebuilt.
	return history.BodyDigest == bodyDigest, nil
}

func (r *emailSyncHistoryRepository) MarkEmailSynced(accountID, emailID, bodyDigest string) error {
	now := time.Now()
	history := emaildomain.EmailSyncHistory{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		EmailID:    emailID,
		BodyDigest: bodyDigest,
		SyncedAt:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "email_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"body_digest", "synced_at", "updated_at"}),
	}).Create(&history).Error
}

func (r *emailSyncHistoryRepository) DeleteAccountHistory(accountID string) error {
	return r.db.Where("account_id = ?", accountID).Delete(&emaildomain.EmailSyncHistory{}).Error
}
