package aurinko

import "time"

// SyncResponse is returned by the start-sync endpoints. The provider indexes
// the mailbox asynchronously; callers poll until Ready is true, then walk the
// change stream from SyncUpdatedToken.
type SyncResponse struct {
	Ready            bool   `json:"ready"`
	SyncUpdatedToken string `json:"syncUpdatedToken"`
	SyncDeletedToken string `json:"syncDeletedToken"`
}

// UpdatedEmailsPage is one page of the email change stream. NextDeltaToken is
// only present on the final page; NextPageToken is present on every page but
// the last.
type UpdatedEmailsPage struct {
	NextDeltaToken string         `json:"nextDeltaToken"`
	NextPageToken  string         `json:"nextPageToken"`
	Records        []EmailMessage `json:"records"`
}

// UpdatedEventsPage is one page of the calendar change stream.
type UpdatedEventsPage struct {
	NextDeltaToken string          `json:"nextDeltaToken"`
	NextPageToken  string          `json:"nextPageToken"`
	Records        []CalendarEvent `json:"records"`
}

// EmailMessage is the provider wire shape for a single email record.
type EmailMessage struct {
	ID                   string            `json:"id"`
	ThreadID             string            `json:"threadId"`
	CreatedTime          time.Time         `json:"createdTime"`
	LastModifiedTime     time.Time         `json:"lastModifiedTime"`
	SentAt               time.Time         `json:"sentAt"`
	ReceivedAt           time.Time         `json:"receivedAt"`
	InternetMessageID    string            `json:"internetMessageId"`
	Subject              string            `json:"subject"`
	SysLabels            []string          `json:"sysLabels"`
	Keywords             []string          `json:"keywords"`
	SysClassifications   []string          `json:"sysClassifications"`
	Sensitivity          string            `json:"sensitivity"`
	MeetingMessageMethod string            `json:"meetingMessageMethod"`
	From                 *EmailAddress     `json:"from"`
	To                   []EmailAddress    `json:"to"`
	Cc                   []EmailAddress    `json:"cc"`
	Bcc                  []EmailAddress    `json:"bcc"`
	ReplyTo              []EmailAddress    `json:"replyTo"`
	HasAttachments       bool              `json:"hasAttachments"`
	Body                 string            `json:"body"`
	BodySnippet          string            `json:"bodySnippet"`
	Attachments          []EmailAttachment `json:"attachments"`
	InReplyTo            string            `json:"inReplyTo"`
	References           string            `json:"references"`
	ThreadIndex          string            `json:"threadIndex"`
	InternetHeaders      []EmailHeader     `json:"internetHeaders"`
	FolderID             string            `json:"folderId"`
	Omitted              []string          `json:"omitted"`
}

// EmailAddress as sent by the provider. Raw is the original header form
// ("Name <addr@example.com>").
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Raw     string `json:"raw"`
}

type EmailAttachment struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	MimeType        string `json:"mimeType"`
	Size            int    `json:"size"`
	Inline          bool   `json:"inline"`
	ContentID       string `json:"contentId"`
	ContentLocation string `json:"contentLocation"`
}

type EmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CalendarEvent is the provider wire shape for a calendar event.
type CalendarEvent struct {
	ID               string            `json:"id"`
	CalendarID       string            `json:"calendarId"`
	Subject          string            `json:"subject"`
	Description      string            `json:"description"`
	Location         string            `json:"location"`
	Start            *EventTime        `json:"start"`
	End              *EventTime        `json:"end"`
	AllDay           bool              `json:"allDay"`
	Status           string            `json:"status"`
	Organizer        *EventOrganizer   `json:"organizer"`
	Attendees        []EventAttendee   `json:"attendees"`
	Recurrence       *EventRecurrence  `json:"recurrence"`
	MeetingInfo      *MeetingInfo      `json:"meetingInfo"`
	Attachments      []EmailAttachment `json:"attachments"`
	CreatedTime      time.Time         `json:"createdTime"`
	LastModifiedTime time.Time         `json:"lastModifiedTime"`
}

type EventTime struct {
	DateTime time.Time `json:"dateTime"`
	TimeZone string    `json:"timeZone"`
}

type EventOrganizer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type EventAttendee struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Status   string `json:"status"`
	Required bool   `json:"required"`
}

// EventRecurrence carries the provider recurrence rule. Pattern/Range follow
// the unified API's shape across Google and Microsoft calendars.
type EventRecurrence struct {
	Pattern *RecurrencePattern `json:"pattern"`
	Range   *RecurrenceRange   `json:"range"`
}

type RecurrencePattern struct {
	Type       string   `json:"type"` // daily, weekly, absoluteMonthly, relativeMonthly, absoluteYearly
	Interval   int      `json:"interval"`
	DaysOfWeek []string `json:"daysOfWeek"`
	DayOfMonth int      `json:"dayOfMonth"`
	Month      int      `json:"month"`
}

type RecurrenceRange struct {
	Type          string `json:"type"` // endDate, noEnd, numbered
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	NumberOfTimes int    `json:"numberOfTimes"`
	RecurrenceTZ  string `json:"recurrenceTimeZone"`
}

type MeetingInfo struct {
	Provider  string `json:"provider"` // teams, meet, zoom
	JoinURL   string `json:"joinUrl"`
	MeetingID string `json:"meetingId"`
	Passcode  string `json:"passcode"`
}

// Calendar describes one provider calendar.
type Calendar struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
}

// AccountInfo describes the linked provider account.
type AccountInfo struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Type  string `json:"type"` // Google, Office365
}
