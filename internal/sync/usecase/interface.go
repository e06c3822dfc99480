package usecase

import (
	"context"
	"errors"

	"mailpilot-backend/pkg/aurinko"
	"mailpilot-backend/pkg/chroma"
)

var (
	// ErrAccountNotFound maps to the ACCOUNT_NOT_FOUND response code.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNoDeltaToken is fatal: an incremental sync was requested for an
	// account that never completed an initial sync. Requires operator
	// intervention (a fresh initial sync), never retried automatically.
	ErrNoDeltaToken = errors.New("no stored delta token; account requires initial sync")
	// ErrSyncInProgress rejects a second concurrent sync for one account.
	ErrSyncInProgress = errors.New("sync already in progress for account")
	// ErrCalendarSync marks a failure in the calendar track; the mail delta
	// token was already committed when it is returned.
	ErrCalendarSync = errors.New("calendar sync failed")
)

// SyncUsecase drives initial and incremental mail/calendar sync.
type SyncUsecase interface {
	// PerformInitialSync runs the full mail then calendar sync for the
	// account and returns the committed mail delta token.
	PerformInitialSync(ctx context.Context, accountID string) (string, error)
	// PerformIncrementalSync walks the change stream from the stored tokens.
	PerformIncrementalSync(ctx context.Context, accountID string) (string, error)
	// TeardownAccount removes all relational rows and search documents owned
	// by the account.
	TeardownAccount(ctx context.Context, accountID string) error
	// SetEventService allows wiring the SSE hub after creation.
	SetEventService(svc EventService)
	// Stop drains the index worker queue.
	Stop()
}

// DeltaClient is the provider surface the orchestrator needs. Implemented by
// *aurinko.Service; faked in tests.
type DeltaClient interface {
	StartSync(ctx context.Context, accessToken string, daysWithin int) (*aurinko.SyncResponse, error)
	GetUpdatedEmails(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error)
	StartCalendarSync(ctx context.Context, accessToken, calendarID string) (*aurinko.SyncResponse, error)
	GetUpdatedEvents(ctx context.Context, accessToken, calendarID, deltaToken, pageToken string) (*aurinko.UpdatedEventsPage, error)
	GetPrimaryCalendar(ctx context.Context, accessToken string) (*aurinko.Calendar, error)
}

// Indexer is the search-index surface. Implemented by *chroma.ChromaClient.
// Index failures never propagate into the relational upsert path.
type Indexer interface {
	UpsertEmailDocument(ctx context.Context, accountID string, doc chroma.EmailDocument) error
	DeleteAccountDocuments(ctx context.Context, accountID string) error
}

// EventService publishes sync progress to connected clients.
type EventService interface {
	SendToUser(userID string, eventType string, payload interface{})
}
