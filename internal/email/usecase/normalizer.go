package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/pkg/aurinko"
)

// ErrMissingFrom marks a malformed provider record. The sync loop skips the
// record and continues the batch; it is never fatal.
var ErrMissingFrom = errors.New("email record has no from address")

// NormalizedEmail is the persistence-ready shape of one provider record. The
// address map is deduplicated across from/to/cc/bcc/replyTo so each distinct
// address is upserted exactly once per record.
type NormalizedEmail struct {
	Email     emaildomain.Email
	From      aurinko.EmailAddress
	To        []string
	Cc        []string
	Bcc       []string
	ReplyTo   []string
	Addresses map[string]aurinko.EmailAddress
}

// ClassifyEmailLabel derives the folder label of a single email from its
// provider sysLabels. Inbox and important both count as inbox.
func ClassifyEmailLabel(sysLabels []string) emaildomain.EmailLabel {
	hasDraft := false
	hasSent := false
	for _, label := range sysLabels {
		switch strings.ToLower(label) {
		case "inbox", "important":
			return emaildomain.LabelInbox
		case "draft":
			hasDraft = true
		case "sent":
			hasSent = true
		}
	}
	_ = hasSent
	if hasDraft {
		return emaildomain.LabelDraft
	}
	// Sent is the fallback: an email with no recognized folder label must not
	// pull its thread into the inbox.
	return emaildomain.LabelSent
}

// ClassifyThreadFolders recomputes the thread folder flags over the complete
// member set. Labels can arrive out of order across pages, so this must look
// at every sibling, not just the incoming email. Priority: inbox over draft
// over sent.
func ClassifyThreadFolders(emails []*emaildomain.Email) (inbox, draft, sent bool) {
	anyDraft := false
	for _, email := range emails {
		switch email.EmailLabel {
		case emaildomain.LabelInbox:
			return true, false, false
		case emaildomain.LabelDraft:
			anyDraft = true
		}
	}
	if anyDraft {
		return false, true, false
	}
	return false, false, len(emails) > 0
}

// CollectAddresses builds one deduplicated map over every address mentioned
// by the record. Later occurrences win on name/raw, so a bare entry followed
// by a named one keeps the name.
func CollectAddresses(msg *aurinko.EmailMessage) map[string]aurinko.EmailAddress {
	addresses := make(map[string]aurinko.EmailAddress)
	add := func(addr aurinko.EmailAddress) {
		if addr.Address == "" {
			return
		}
		key := strings.ToLower(addr.Address)
		if existing, ok := addresses[key]; ok {
			// Last write wins, but never erase a known name with a blank one.
			if addr.Name == "" {
				addr.Name = existing.Name
			}
			if addr.Raw == "" {
				addr.Raw = existing.Raw
			}
		}
		addresses[key] = addr
	}

	if msg.From != nil {
		add(*msg.From)
	}
	for _, list := range [][]aurinko.EmailAddress{msg.To, msg.Cc, msg.Bcc, msg.ReplyTo} {
		for _, addr := range list {
			add(addr)
		}
	}
	return addresses
}

// NormalizeEmail maps a provider email record into the relational upsert
// shape. Returns ErrMissingFrom for records without a usable sender.
func NormalizeEmail(accountID string, msg *aurinko.EmailMessage) (*NormalizedEmail, error) {
	if msg.From == nil || msg.From.Address == "" {
		return nil, ErrMissingFrom
	}

	headers := make(emaildomain.HeaderList, 0, len(msg.InternetHeaders))
	for _, h := range msg.InternetHeaders {
		headers = append(headers, emaildomain.Header{Name: h.Name, Value: h.Value})
	}

	normalized := &NormalizedEmail{
		Email: emaildomain.Email{
			ID:                   msg.ID,
			ThreadID:             msg.ThreadID,
			AccountID:            accountID,
			CreatedTime:          msg.CreatedTime,
			LastModifiedTime:     msg.LastModifiedTime,
			SentAt:               msg.SentAt,
			ReceivedAt:           msg.ReceivedAt,
			InternetMessageID:    msg.InternetMessageID,
			Subject:              msg.Subject,
			SysLabels:            emaildomain.StringList(msg.SysLabels),
			Keywords:             emaildomain.StringList(msg.Keywords),
			SysClassifications:   emaildomain.StringList(msg.SysClassifications),
			Sensitivity:          msg.Sensitivity,
			MeetingMessageMethod: msg.MeetingMessageMethod,
			HasAttachments:       msg.HasAttachments,
			Body:                 msg.Body,
			BodySnippet:          msg.BodySnippet,
			InReplyTo:            msg.InReplyTo,
			References:           msg.References,
			ThreadIndex:          msg.ThreadIndex,
			InternetHeaders:      headers,
			FolderID:             msg.FolderID,
			Omitted:              emaildomain.StringList(msg.Omitted),
			EmailLabel:           ClassifyEmailLabel(msg.SysLabels),
		},
		From:      *msg.From,
		To:        addressKeys(msg.To),
		Cc:        addressKeys(msg.Cc),
		Bcc:       addressKeys(msg.Bcc),
		ReplyTo:   addressKeys(msg.ReplyTo),
		Addresses: CollectAddresses(msg),
	}

	normalized.Email.Attachments = make([]emaildomain.EmailAttachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		normalized.Email.Attachments = append(normalized.Email.Attachments, emaildomain.EmailAttachment{
			ID:              att.ID,
			EmailID:         msg.ID,
			Name:            att.Name,
			MimeType:        att.MimeType,
			Size:            att.Size,
			Inline:          att.Inline,
			ContentID:       att.ContentID,
			ContentLocation: att.ContentLocation,
		})
	}

	return normalized, nil
}

func addressKeys(list []aurinko.EmailAddress) []string {
	seen := make(map[string]struct{}, len(list))
	keys := make([]string, 0, len(list))
	for _, addr := range list {
		if addr.Address == "" {
			continue
		}
		key := strings.ToLower(addr.Address)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// BodyDigest fingerprints the searchable content of an email so the indexer
// can tell whether a replayed record actually changed.
func BodyDigest(subject, body string) string {
	sum := sha256.Sum256([]byte(subject + "\x00" + body))
	return hex.EncodeToString(sum[:])
}
