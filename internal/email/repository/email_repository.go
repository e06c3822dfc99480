package repository

import (
	"fmt"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{db: db}
}

func (r *emailRepository) UpsertEmail(email *emaildomain.Email, to, cc, bcc, replyTo []emaildomain.EmailAddress) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Row keyed by provider id: conflict means a replayed or updated record.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Omit(clause.Associations).Create(email).Error; err != nil {
			return fmt.Errorf("failed to upsert email %s: %w", email.ID, err)
		}

		// Each association needs a fresh statement; a chain that already ran
		// an association operation cannot be reused.
		if err := tx.Model(email).Association("To").Replace(toPointers(to)); err != nil {
			return fmt.Errorf("failed to replace to-recipients: %w", err)
		}
		if err := tx.Model(email).Association("Cc").Replace(toPointers(cc)); err != nil {
			return fmt.Errorf("failed to replace cc-recipients: %w", err)
		}
		if err := tx.Model(email).Association("Bcc").Replace(toPointers(bcc)); err != nil {
			return fmt.Errorf("failed to replace bcc-recipients: %w", err)
		}
		if err := tx.Model(email).Association("ReplyTo").Replace(toPointers(replyTo)); err != nil {
			return fmt.Errorf("failed to replace reply-to recipients: %w", err)
		}

		// Attachments are replaced wholesale; provider ids key the rows.
		if err := tx.Where("email_id = ?", email.ID).Delete(&emaildomain.EmailAttachment{}).Error; err != nil {
			return fmt.Errorf("failed to clear attachments: %w", err)
		}
		for i := range email.Attachments {
			email.Attachments[i].EmailID = email.ID
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&email.Attachments[i]).Error; err != nil {
				return fmt.Errorf("failed to upsert attachment %s: %w", email.Attachments[i].ID, err)
			}
		}
		return nil
	})
}

func toPointers(addrs []emaildomain.EmailAddress) []*emaildomain.EmailAddress {
	out := make([]*emaildomain.EmailAddress, 0, len(addrs))
	for i := range addrs {
		out = append(out, &addrs[i])
	}
	return out
}

func (r *emailRepository) GetEmailByID(id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Preload("From").Preload("To").Preload("Attachments").
		Where("id = ?", id).First(&email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) GetEmailsByThread(threadID string) ([]*emaildomain.Email, error) {
	var emails []*emaildomain.Email
	err := r.db.Where("thread_id = ?", threadID).
		Order("sent_at asc").
		Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *emailRepository) UpsertEmailAddress(addr *emaildomain.EmailAddress) (*emaildomain.EmailAddress, error) {
	if addr.ID == "" {
		addr.ID = uuid.New().String()
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "raw", "updated_at"}),
	}).Create(addr).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert address %s: %w", addr.Address, err)
	}

	// On conflict the generated id was discarded; fetch the canonical row.
	var persisted emaildomain.EmailAddress
	if err := r.db.Where("account_id = ? AND address = ?", addr.AccountID, addr.Address).
		First(&persisted).Error; err != nil {
		return nil, err
	}
	return &persisted, nil
}

func (r *emailRepository) GetThread(id string) (*emaildomain.Thread, error) {
	var thread emaildomain.Thread
	err := r.db.Where("id = ?", id).First(&thread).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *emailRepository) SaveThread(thread *emaildomain.Thread) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"subject", "last_message_date", "participant_ids",
			"inbox_status", "draft_status", "sent_status", "updated_at",
		}),
	}).Create(thread).Error
}

func (r *emailRepository) GetThreadsByAccount(accountID string, limit, offset int) ([]*emaildomain.Thread, error) {
	var threads []*emaildomain.Thread
	err := r.db.Where("account_id = ?", accountID).
		Order("last_message_date desc").
		Limit(limit).Offset(offset).
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *emailRepository) DeleteAccountData(accountID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var emailIDs []string
		if err := tx.Model(&emaildomain.Email{}).
			Where("account_id = ?", accountID).
			Pluck("id", &emailIDs).Error; err != nil {
			return err
		}

		if len(emailIDs) > 0 {
			if err := tx.Where("email_id IN ?", emailIDs).Delete(&emaildomain.EmailAttachment{}).Error; err != nil {
				return err
			}
			for _, table := range []string{"email_to_recipients", "email_cc_recipients", "email_bcc_recipients", "email_reply_to_recipients"} {
				if err := tx.Exec("DELETE FROM "+table+" WHERE email_id IN ?", emailIDs).Error; err != nil {
					return err
				}
			}
		}

		if err := tx.Where("account_id = ?", accountID).Delete(&emaildomain.Email{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&emaildomain.Thread{}).Error; err != nil {
			return err
		}
		return tx.Where("account_id = ?", accountID).Delete(&emaildomain.EmailAddress{}).Error
	})
}
