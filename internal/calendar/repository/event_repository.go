package repository

import (
	"fmt"

	calendardomain "mailpilot-backend/internal/calendar/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository defines the interface for calendar event persistence.
// Attendees and attachments are replaced wholesale on each upsert; the
// provider is the source of truth for both sets.
type EventRepository interface {
	UpsertEvent(event *calendardomain.CalendarEvent) error
	GetEventByID(id string) (*calendardomain.CalendarEvent, error)
	GetEventsByAccount(accountID string, limit, offset int) ([]*calendardomain.CalendarEvent, error)
	DeleteAccountData(accountID string) error
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) UpsertEvent(event *calendardomain.CalendarEvent) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Omit(clause.Associations).Create(event).Error; err != nil {
			return fmt.Errorf("failed to upsert event %s: %w", event.ID, err)
		}

		if err := tx.Where("event_id = ?", event.ID).Delete(&calendardomain.EventAttendee{}).Error; err != nil {
			return fmt.Errorf("failed to clear attendees: %w", err)
		}
		for i := range event.Attendees {
			event.Attendees[i].ID = uuid.New().String()
			event.Attendees[i].EventID = event.ID
			if err := tx.Create(&event.Attendees[i]).Error; err != nil {
				return fmt.Errorf("failed to insert attendee: %w", err)
			}
		}

		if err := tx.Where("event_id = ?", event.ID).Delete(&calendardomain.EventAttachment{}).Error; err != nil {
			return fmt.Errorf("failed to clear event attachments: %w", err)
		}
		for i := range event.Attachments {
			if event.Attachments[i].ID == "" {
				event.Attachments[i].ID = uuid.New().String()
			}
			event.Attachments[i].EventID = event.ID
			if err := tx.Create(&event.Attachments[i]).Error; err != nil {
				return fmt.Errorf("failed to insert event attachment: %w", err)
			}
		}
		return nil
	})
}

func (r *eventRepository) GetEventByID(id string) (*calendardomain.CalendarEvent, error) {
	var event calendardomain.CalendarEvent
	err := r.db.Preload("Attendees").Preload("Attachments").
		Where("id = ?", id).First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) GetEventsByAccount(accountID string, limit, offset int) ([]*calendardomain.CalendarEvent, error) {
	var events []*calendardomain.CalendarEvent
	err := r.db.Where("account_id = ?", accountID).
		Order("start_at asc").
		Limit(limit).Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) DeleteAccountData(accountID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var eventIDs []string
		if err := tx.Model(&calendardomain.CalendarEvent{}).
			Where("account_id = ?", accountID).
			Pluck("id", &eventIDs).Error; err != nil {
			return err
		}
		if len(eventIDs) > 0 {
			if err := tx.Where("event_id IN ?", eventIDs).Delete(&calendardomain.EventAttendee{}).Error; err != nil {
				return err
			}
			if err := tx.Where("event_id IN ?", eventIDs).Delete(&calendardomain.EventAttachment{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("account_id = ?", accountID).Delete(&calendardomain.CalendarEvent{}).Error
	})
}
