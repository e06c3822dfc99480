package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CalendarEvent is keyed by the provider event id. Attendees and attachments
// are replaced wholesale on each sync; recurrence, organizer and meeting info
// are typed in memory and serialized to JSON only at the storage boundary.
type CalendarEvent struct {
	ID               string      `json:"id" gorm:"primaryKey"` // provider event id
	AccountID        string      `json:"account_id" gorm:"index;not null"`
	CalendarID       string      `json:"calendar_id"`
	Title            string      `json:"title"`
	Description      string      `json:"description" gorm:"type:text"`
	Location         string      `json:"location"`
	StartAt          time.Time   `json:"start_at" gorm:"index"`
	EndAt            time.Time   `json:"end_at"`
	AllDay           bool        `json:"all_day"`
	Status           string      `json:"status"`
	Organizer        Organizer   `json:"organizer" gorm:"type:text"`
	Recurrence       Recurrence  `json:"recurrence" gorm:"type:text"`
	MeetingInfo      MeetingInfo `json:"meeting_info" gorm:"type:text"`
	CreatedTime      time.Time   `json:"created_time"`
	LastModifiedTime time.Time   `json:"last_modified_time"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`

	Attendees   []EventAttendee   `json:"attendees,omitempty" gorm:"foreignKey:EventID"`
	Attachments []EventAttachment `json:"attachments,omitempty" gorm:"foreignKey:EventID"`
}

type EventAttendee struct {
	ID       string `json:"id" gorm:"primaryKey"`
	EventID  string `json:"event_id" gorm:"index;not null"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Status   string `json:"status"` // accepted, declined, tentative, none
	Required bool   `json:"required"`
}

type EventAttachment struct {
	ID       string `json:"id" gorm:"primaryKey"`
	EventID  string `json:"event_id" gorm:"index;not null"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// Organizer is the denormalized event organizer.
type Organizer struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// RecurrenceKind tags the recurrence variant.
type RecurrenceKind string

const (
	RecurrenceNone    RecurrenceKind = ""
	RecurrenceDaily   RecurrenceKind = "daily"
	RecurrenceWeekly  RecurrenceKind = "weekly"
	RecurrenceMonthly RecurrenceKind = "monthly"
	RecurrenceYearly  RecurrenceKind = "yearly"
)

// Recurrence is a tagged variant: Kind selects which of the optional fields
// are meaningful. A zero Kind means a non-recurring event.
type Recurrence struct {
	Kind       RecurrenceKind `json:"kind,omitempty"`
	Interval   int            `json:"interval,omitempty"`
	DaysOfWeek []string       `json:"days_of_week,omitempty"` // weekly only
	DayOfMonth int            `json:"day_of_month,omitempty"` // monthly/yearly
	Month      int            `json:"month,omitempty"`        // yearly only
	Until      string         `json:"until,omitempty"`        // endDate ranges
	Count      int            `json:"count,omitempty"`        // numbered ranges
}

// MeetingKind tags the online-meeting variant.
type MeetingKind string

const (
	MeetingNone  MeetingKind = ""
	MeetingTeams MeetingKind = "teams"
	MeetingMeet  MeetingKind = "meet"
	MeetingZoom  MeetingKind = "zoom"
)

type MeetingInfo struct {
	Kind      MeetingKind `json:"kind,omitempty"`
	JoinURL   string      `json:"join_url,omitempty"`
	MeetingID string      `json:"meeting_id,omitempty"`
	Passcode  string      `json:"passcode,omitempty"`
}

func (o Organizer) Value() (driver.Value, error)   { return jsonValue(o) }
func (o *Organizer) Scan(src interface{}) error    { return jsonScan(src, o) }
func (r Recurrence) Value() (driver.Value, error)  { return jsonValue(r) }
func (r *Recurrence) Scan(src interface{}) error   { return jsonScan(src, r) }
func (m MeetingInfo) Value() (driver.Value, error) { return jsonValue(m) }
func (m *MeetingInfo) Scan(src interface{}) error  { return jsonScan(src, m) }

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported column type: %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
