package usecase

import (
	calendardomain "mailpilot-backend/internal/calendar/domain"
	"mailpilot-backend/pkg/aurinko"
)

// NormalizeEvent maps a provider calendar record into the relational upsert
// shape, decoding the JSON-ish polymorphic fields into tagged variants.
func NormalizeEvent(accountID string, wire *aurinko.CalendarEvent) *calendardomain.CalendarEvent {
	event := &calendardomain.CalendarEvent{
		ID:               wire.ID,
		AccountID:        accountID,
		CalendarID:       wire.CalendarID,
		Title:            wire.Subject,
		Description:      wire.Description,
		Location:         wire.Location,
		AllDay:           wire.AllDay,
		Status:           wire.Status,
		Recurrence:       normalizeRecurrence(wire.Recurrence),
		MeetingInfo:      normalizeMeetingInfo(wire.MeetingInfo),
		CreatedTime:      wire.CreatedTime,
		LastModifiedTime: wire.LastModifiedTime,
	}

	if wire.Start != nil {
		event.StartAt = wire.Start.DateTime
	}
	if wire.End != nil {
		event.EndAt = wire.End.DateTime
	}
	if wire.Organizer != nil {
		event.Organizer = calendardomain.Organizer{
			Name:    wire.Organizer.Name,
			Address: wire.Organizer.Address,
		}
	}

	event.Attendees = make([]calendardomain.EventAttendee, 0, len(wire.Attendees))
	for _, a := range wire.Attendees {
		event.Attendees = append(event.Attendees, calendardomain.EventAttendee{
			Name:     a.Name,
			Address:  a.Address,
			Status:   a.Status,
			Required: a.Required,
		})
	}

	event.Attachments = make([]calendardomain.EventAttachment, 0, len(wire.Attachments))
	for _, att := range wire.Attachments {
		event.Attachments = append(event.Attachments, calendardomain.EventAttachment{
			ID:       att.ID,
			Name:     att.Name,
			MimeType: att.MimeType,
			Size:     att.Size,
		})
	}

	return event
}

func normalizeRecurrence(r *aurinko.EventRecurrence) calendardomain.Recurrence {
	if r == nil || r.Pattern == nil {
		return calendardomain.Recurrence{}
	}

	out := calendardomain.Recurrence{Interval: r.Pattern.Interval}
	switch r.Pattern.Type {
	case "daily":
		out.Kind = calendardomain.RecurrenceDaily
	case "weekly":
		out.Kind = calendardomain.RecurrenceWeekly
		out.DaysOfWeek = r.Pattern.DaysOfWeek
	case "absoluteMonthly", "relativeMonthly":
		out.Kind = calendardomain.RecurrenceMonthly
		out.DayOfMonth = r.Pattern.DayOfMonth
	case "absoluteYearly":
		out.Kind = calendardomain.RecurrenceYearly
		out.DayOfMonth = r.Pattern.DayOfMonth
		out.Month = r.Pattern.Month
	default:
		return calendardomain.Recurrence{}
	}

	if r.Range != nil {
		switch r.Range.Type {
		case "endDate":
			out.Until = r.Range.EndDate
		case "numbered":
			out.Count = r.Range.NumberOfTimes
		}
	}
	return out
}

func normalizeMeetingInfo(m *aurinko.MeetingInfo) calendardomain.MeetingInfo {
	if m == nil {
		return calendardomain.MeetingInfo{}
	}

	out := calendardomain.MeetingInfo{
		JoinURL:   m.JoinURL,
		MeetingID: m.MeetingID,
		Passcode:  m.Passcode,
	}
	switch m.Provider {
	case "teams":
		out.Kind = calendardomain.MeetingTeams
	case "meet":
		out.Kind = calendardomain.MeetingMeet
	case "zoom":
		out.Kind = calendardomain.MeetingZoom
	}
	return out
}
