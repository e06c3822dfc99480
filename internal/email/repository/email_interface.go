package repository

import (
	emaildomain "mailpilot-backend/internal/email/domain"
)

// EmailRepository defines the interface for email/thread/address persistence.
// All writes are idempotent: rows are keyed by provider ids and conflicts
// update in place, so a replayed sync window converges to the same state.
type EmailRepository interface {
	// UpsertEmail writes the email row and replaces its recipient relations
	// and attachments wholesale.
	UpsertEmail(email *emaildomain.Email, to, cc, bcc, replyTo []emaildomain.EmailAddress) error
	GetEmailByID(id string) (*emaildomain.Email, error)
	GetEmailsByThread(threadID string) ([]*emaildomain.Email, error)

	// UpsertEmailAddress deduplicates per (account, address); name/raw follow
	// last-write-wins. Returns the persisted row (with the canonical id).
	UpsertEmailAddress(addr *emaildomain.EmailAddress) (*emaildomain.EmailAddress, error)

	GetThread(id string) (*emaildomain.Thread, error)
	SaveThread(thread *emaildomain.Thread) error
	GetThreadsByAccount(accountID string, limit, offset int) ([]*emaildomain.Thread, error)

	// DeleteAccountData removes all rows owned by the account (teardown).
	DeleteAccountData(accountID string) error
}

// EmailSyncHistoryRepository tracks which email bodies have reached the
// vector index.
type EmailSyncHistoryRepository interface {
	// IsEmailSynced reports whether the email was already indexed with the
	// given body digest. A changed digest counts as not synced.
	IsEmailSynced(accountID, emailID, bodyDigest string) (bool, error)
	MarkEmailSynced(accountID, emailID, bodyDigest string) error
	DeleteAccountHistory(accountID string) error
}
