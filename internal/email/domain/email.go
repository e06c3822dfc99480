package domain

import "time"

// EmailLabel is the folder classification derived from provider sysLabels.
type EmailLabel string

const (
	LabelInbox EmailLabel = "inbox"
	LabelSent  EmailLabel = "sent"
	LabelDraft EmailLabel = "draft"
)

// Thread aggregates the emails of one provider conversation. The three folder
// flags are derived from the whole member set and recomputed on every member
// upsert; inbox wins over draft, draft over sent.
type Thread struct {
	ID              string     `json:"id" gorm:"primaryKey"` // provider thread id
	AccountID       string     `json:"account_id" gorm:"index;not null"`
	Subject         string     `json:"subject"`
	LastMessageDate time.Time  `json:"last_message_date" gorm:"index"`
	ParticipantIDs  StringList `json:"participant_ids" gorm:"type:text"`
	InboxStatus     bool       `json:"inbox_status" gorm:"index"`
	DraftStatus     bool       `json:"draft_status"`
	SentStatus      bool       `json:"sent_status"`
	Done            bool       `json:"done"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Emails []Email `json:"emails,omitempty" gorm:"foreignKey:ThreadID"`
}

// Email is one provider message. The row is keyed by the provider id so
// replayed sync windows overwrite rather than duplicate.
type Email struct {
	ID                   string     `json:"id" gorm:"primaryKey"` // provider message id
	ThreadID             string     `json:"thread_id" gorm:"index;not null"`
	AccountID            string     `json:"account_id" gorm:"index;not null"`
	CreatedTime          time.Time  `json:"created_time"`
	LastModifiedTime     time.Time  `json:"last_modified_time"`
	SentAt               time.Time  `json:"sent_at" gorm:"index"`
	ReceivedAt           time.Time  `json:"received_at"`
	InternetMessageID    string     `json:"internet_message_id"`
	Subject              string     `json:"subject"`
	SysLabels            StringList `json:"sys_labels" gorm:"type:text"`
	Keywords             StringList `json:"keywords" gorm:"type:text"`
	SysClassifications   StringList `json:"sys_classifications" gorm:"type:text"`
	Sensitivity          string     `json:"sensitivity" gorm:"default:normal"`
	MeetingMessageMethod string     `json:"meeting_message_method"`
	FromID               string     `json:"from_id" gorm:"index"`
	HasAttachments       bool       `json:"has_attachments"`
	Body                 string     `json:"body" gorm:"type:text"`
	BodySnippet          string     `json:"body_snippet"`
	InReplyTo            string     `json:"in_reply_to"`
	References           string     `json:"references" gorm:"type:text"`
	ThreadIndex          string     `json:"thread_index"`
	InternetHeaders      HeaderList `json:"internet_headers" gorm:"type:text"`
	FolderID             string     `json:"folder_id"`
	Omitted              StringList `json:"omitted" gorm:"type:text"`
	EmailLabel           EmailLabel `json:"email_label" gorm:"index;default:inbox"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	From        *EmailAddress     `json:"from,omitempty" gorm:"foreignKey:FromID"`
	To          []EmailAddress    `json:"to,omitempty" gorm:"many2many:email_to_recipients"`
	Cc          []EmailAddress    `json:"cc,omitempty" gorm:"many2many:email_cc_recipients"`
	Bcc         []EmailAddress    `json:"bcc,omitempty" gorm:"many2many:email_bcc_recipients"`
	ReplyTo     []EmailAddress    `json:"reply_to,omitempty" gorm:"many2many:email_reply_to_recipients"`
	Attachments []EmailAttachment `json:"attachments,omitempty" gorm:"foreignKey:EmailID"`
}

// EmailAddress is deduplicated per (account, address). Name and Raw follow
// last-write-wins on conflict.
type EmailAddress struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	AccountID string    `json:"account_id" gorm:"uniqueIndex:idx_account_address;not null"`
	Address   string    `json:"address" gorm:"uniqueIndex:idx_account_address;not null"`
	Name      string    `json:"name"`
	Raw       string    `json:"raw"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EmailAttachment struct {
	ID              string    `json:"id" gorm:"primaryKey"` // provider attachment id
	EmailID         string    `json:"email_id" gorm:"index;not null"`
	Name            string    `json:"name"`
	MimeType        string    `json:"mime_type"`
	Size            int       `json:"size"`
	Inline          bool      `json:"inline"`
	ContentID       string    `json:"content_id"`
	ContentLocation string    `json:"content_location"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EmailSyncHistory tracks which emails have reached the vector index, so a
// replayed sync window does not re-embed unchanged documents.
type EmailSyncHistory struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	AccountID  string    `json:"account_id" gorm:"uniqueIndex:idx_account_email;not null"`
	EmailID    string    `json:"email_id" gorm:"uniqueIndex:idx_account_email;not null"`
	BodyDigest string    `json:"body_digest"`
	SyncedAt   time.Time `json:"synced_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
