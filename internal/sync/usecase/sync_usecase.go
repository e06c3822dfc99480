package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	accountdomain "mailpilot-backend/internal/account/domain"
	accountrepo "mailpilot-backend/internal/account/repository"
	calendarrepo "mailpilot-backend/internal/calendar/repository"
	calendarusecase "mailpilot-backend/internal/calendar/usecase"
	emaildomain "mailpilot-backend/internal/email/domain"
	emailrepo "mailpilot-backend/internal/email/repository"
	emailusecase "mailpilot-backend/internal/email/usecase"
	"mailpilot-backend/pkg/aurinko"
	"mailpilot-backend/pkg/chroma"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/utils/crypto"
)

const (
	initialSyncDaysWithin = 30
	pollInterval          = 1 * time.Second
	maxConcurrentUpserts  = 10
	indexQueueSize        = 1000
	indexWorkerCount      = 5
)

// IndexJob mirrors one upserted email into the search index.
type IndexJob struct {
	AccountID string
	Doc       chroma.EmailDocument
	Digest    string
}

type syncUsecase struct {
	accountRepo accountrepo.AccountRepository
	emailRepo   emailrepo.EmailRepository
	historyRepo emailrepo.EmailSyncHistoryRepository
	eventRepo   calendarrepo.EventRepository
	client      DeltaClient
	indexer     Indexer
	config      *config.Config

	eventService EventService

	// One sync per account at a time; the delta token is a single mutable
	// value and concurrent walks would race on it.
	guardMu sync.Mutex
	guard   map[string]struct{}

	indexQueue chan IndexJob
	workerWg   sync.WaitGroup
	stopOnce   sync.Once
}

func NewSyncUsecase(
	accountRepo accountrepo.AccountRepository,
	emailRepo emailrepo.EmailRepository,
	historyRepo emailrepo.EmailSyncHistoryRepository,
	eventRepo calendarrepo.EventRepository,
	client DeltaClient,
	indexer Indexer,
	cfg *config.Config,
) SyncUsecase {
	uc := &syncUsecase{
		accountRepo: accountRepo,
		emailRepo:   emailRepo,
		historyRepo: historyRepo,
		eventRepo:   eventRepo,
		client:      client,
		indexer:     indexer,
		config:      cfg,
		guard:       make(map[string]struct{}),
		indexQueue:  make(chan IndexJob, indexQueueSize),
	}
	uc.startIndexWorkers(indexWorkerCount)
	return uc
}

// SetEventService allows wiring the SSE hub after creation.
func (u *syncUsecase) SetEventService(svc EventService) {
	u.eventService = svc
}

// Stop drains the index queue and waits for the workers. Safe to call twice.
func (u *syncUsecase) Stop() {
	u.stopOnce.Do(func() {
		close(u.indexQueue)
		u.workerWg.Wait()
		log.Println("[Sync] Index workers stopped")
	})
}

// PerformInitialSync runs the full mail sync, then the calendar sync, each a
// poll-until-ready followed by a complete page walk. The delta token is only
// persisted after the walk succeeds end to end: a crash mid-walk replays the
// same window into idempotent upserts instead of silently skipping records.
func (u *syncUsecase) PerformInitialSync(ctx context.Context, accountID string) (string, error) {
	release, err := u.acquire(accountID)
	if err != nil {
		return "", err
	}
	defer release()

	account, token, err := u.loadAccount(accountID)
	if err != nil {
		return "", err
	}

	u.notify(account.UserID, "sync.started", map[string]interface{}{"account_id": accountID})

	start, err := u.pollEmailSyncReady(ctx, token)
	if err != nil {
		u.notify(account.UserID, "sync.failed", map[string]interface{}{"account_id": accountID})
		return "", fmt.Errorf("initial email sync: %w", err)
	}

	deltaToken, err := u.walkEmailPages(ctx, account, token, start.SyncUpdatedToken)
	if err != nil {
		u.notify(account.UserID, "sync.failed", map[string]interface{}{"account_id": accountID})
		return "", fmt.Errorf("initial email sync: %w", err)
	}
	if err := u.accountRepo.UpdateDeltaToken(accountID, deltaToken); err != nil {
		return "", fmt.Errorf("failed to persist delta token: %w", err)
	}

	if err := u.initialCalendarSync(ctx, account, token); err != nil {
		u.notify(account.UserID, "sync.failed", map[string]interface{}{"account_id": accountID})
		return "", fmt.Errorf("%w: %v", ErrCalendarSync, err)
	}

	u.notify(account.UserID, "sync.completed", map[string]interface{}{
		"account_id": accountID,
	})
	log.Printf("[Sync] Initial sync complete for account %s", accountID)
	return deltaToken, nil
}

// PerformIncrementalSync walks both change streams from the stored tokens.
// A missing token is a fatal inconsistency, not a retryable failure.
func (u *syncUsecase) PerformIncrementalSync(ctx context.Context, accountID string) (string, error) {
	release, err := u.acquire(accountID)
	if err != nil {
		return "", err
	}
	defer release()

	account, token, err := u.loadAccount(accountID)
	if err != nil {
		return "", err
	}
	if account.NextDeltaToken == "" {
		return "", ErrNoDeltaToken
	}

	deltaToken, err := u.walkEmailPages(ctx, account, token, account.NextDeltaToken)
	if err != nil {
		return "", fmt.Errorf("incremental email sync: %w", err)
	}
	if err := u.accountRepo.UpdateDeltaToken(accountID, deltaToken); err != nil {
		return "", fmt.Errorf("failed to persist delta token: %w", err)
	}

	if account.NextDeltaTokenCalendar != "" && account.CalendarID != "" {
		calToken, err := u.walkEventPages(ctx, account, token, account.CalendarID, account.NextDeltaTokenCalendar)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCalendarSync, err)
		}
		if err := u.accountRepo.UpdateCalendarSyncState(accountID, account.CalendarID, calToken); err != nil {
			return "", fmt.Errorf("failed to persist calendar delta token: %w", err)
		}
	} else {
		// Calendar state can be missing after a half-failed initial sync.
		// Re-bootstrap the track instead of skipping it forever.
		log.Printf("[Sync] No calendar sync state for account %s, bootstrapping", accountID)
		if err := u.initialCalendarSync(ctx, account, token); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCalendarSync, err)
		}
	}

	u.notify(account.UserID, "sync.completed", map[string]interface{}{"account_id": accountID})
	return deltaToken, nil
}

func (u *syncUsecase) TeardownAccount(ctx context.Context, accountID string) error {
	account, err := u.accountRepo.GetByID(accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	if err := u.emailRepo.DeleteAccountData(accountID); err != nil {
		return fmt.Errorf("failed to delete email data: %w", err)
	}
	if err := u.eventRepo.DeleteAccountData(accountID); err != nil {
		return fmt.Errorf("failed to delete calendar data: %w", err)
	}
	if err := u.historyRepo.DeleteAccountHistory(accountID); err != nil {
		return fmt.Errorf("failed to delete sync history: %w", err)
	}
	if u.indexer != nil {
		if err := u.indexer.DeleteAccountDocuments(ctx, accountID); err != nil {
			// The relational teardown already happened; orphaned documents are
			// unreachable behind the account filter. Log and move on.
			log.Printf("[Sync] Failed to delete index documents for account %s: %v", accountID, err)
		}
	}
	return u.accountRepo.Delete(accountID)
}

func (u *syncUsecase) acquire(accountID string) (func(), error) {
	u.guardMu.Lock()
	defer u.guardMu.Unlock()
	if _, running := u.guard[accountID]; running {
		return nil, ErrSyncInProgress
	}
	u.guard[accountID] = struct{}{}
	return func() {
		u.guardMu.Lock()
		delete(u.guard, accountID)
		u.guardMu.Unlock()
	}, nil
}

func (u *syncUsecase) loadAccount(accountID string) (*accountdomain.Account, string, error) {
	account, err := u.accountRepo.GetByID(accountID)
	if err != nil {
		return nil, "", err
	}
	if account == nil {
		return nil, "", ErrAccountNotFound
	}

	token := account.AccessToken
	if u.config != nil && u.config.EncryptionKey != "" {
		decrypted, err := crypto.Decrypt(token, u.config.EncryptionKey)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decrypt access token: %w", err)
		}
		token = decrypted
	}
	return account, token, nil
}

// pollEmailSyncReady asks the provider to start indexing and polls with a
// fixed backoff until it reports ready. The request context carries the hard
// wall-clock ceiling.
func (u *syncUsecase) pollEmailSyncReady(ctx context.Context, token string) (*aurinko.SyncResponse, error) {
	for {
		resp, err := u.client.StartSync(ctx, token, initialSyncDaysWithin)
		if err != nil {
			return nil, err
		}
		if resp.Ready {
			return resp, nil
		}

		log.Printf("[Sync] Provider not ready, polling again in %s", pollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// walkEmailPages performs a complete page walk of the email change stream and
// returns the final delta token. The provider emits the next delta token on
// the last page only; intermediate pages carry an empty one, which must never
// overwrite a token already seen.
func (u *syncUsecase) walkEmailPages(ctx context.Context, account *accountdomain.Account, token, deltaToken string) (string, error) {
	var records []aurinko.EmailMessage
	lastDeltaToken := deltaToken

	page, err := u.client.GetUpdatedEmails(ctx, token, deltaToken, "")
	if err != nil {
		return "", err
	}
	records = append(records, page.Records...)
	if page.NextDeltaToken != "" {
		lastDeltaToken = page.NextDeltaToken
	}

	for page.NextPageToken != "" {
		page, err = u.client.GetUpdatedEmails(ctx, token, "", page.NextPageToken)
		if err != nil {
			return "", err
		}
		records = append(records, page.Records...)
		if page.NextDeltaToken != "" {
			lastDeltaToken = page.NextDeltaToken
		}
	}

	log.Printf("[Sync] Fetched %d email records for account %s", len(records), account.ID)
	if err := u.processEmailBatch(ctx, account, records); err != nil {
		return "", err
	}
	return lastDeltaToken, nil
}

// processEmailBatch normalizes and upserts one fetched window. Upserts run
// concurrently up to a fixed limit, but emails of the same thread stay on one
// goroutine: the thread aggregate is read-modify-write and sibling emails
// racing on it would lose updates.
func (u *syncUsecase) processEmailBatch(ctx context.Context, account *accountdomain.Account, records []aurinko.EmailMessage) error {
	byThread := make(map[string][]aurinko.EmailMessage)
	order := make([]string, 0)
	for _, rec := range records {
		if _, ok := byThread[rec.ThreadID]; !ok {
			order = append(order, rec.ThreadID)
		}
		byThread[rec.ThreadID] = append(byThread[rec.ThreadID], rec)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUpserts)

	for _, threadID := range order {
		group := byThread[threadID]
		g.Go(func() error {
			for i := range group {
				if err := u.upsertEmailRecord(gctx, account, &group[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (u *syncUsecase) upsertEmailRecord(ctx context.Context, account *accountdomain.Account, rec *aurinko.EmailMessage) error {
	normalized, err := emailusecase.NormalizeEmail(account.ID, rec)
	if err != nil {
		// Malformed record: isolated failure, skip and continue the batch.
		log.Printf("[Sync] Skipping record %s: %v", rec.ID, err)
		return nil
	}

	addressIDs, err := u.upsertAddresses(account.ID, normalized)
	if err != nil {
		return err
	}

	normalized.Email.FromID = addressIDs[strings.ToLower(normalized.From.Address)].ID
	to := pickAddresses(addressIDs, normalized.To)
	cc := pickAddresses(addressIDs, normalized.Cc)
	bcc := pickAddresses(addressIDs, normalized.Bcc)
	replyTo := pickAddresses(addressIDs, normalized.ReplyTo)

	if err := u.emailRepo.UpsertEmail(&normalized.Email, to, cc, bcc, replyTo); err != nil {
		return err
	}

	if err := u.recomputeThread(account.ID, &normalized.Email); err != nil {
		return err
	}

	u.enqueueIndexJob(account.ID, normalized, addressIDs)
	return nil
}

func (u *syncUsecase) upsertAddresses(accountID string, normalized *emailusecase.NormalizedEmail) (map[string]*emaildomain.EmailAddress, error) {
	// Stable iteration keeps the upsert order deterministic across retries.
	keys := make([]string, 0, len(normalized.Addresses))
	for key := range normalized.Addresses {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	persisted := make(map[string]*emaildomain.EmailAddress, len(keys))
	for _, key := range keys {
		wire := normalized.Addresses[key]
		row, err := u.emailRepo.UpsertEmailAddress(&emaildomain.EmailAddress{
			AccountID: accountID,
			Address:   key,
			Name:      wire.Name,
			Raw:       wire.Raw,
		})
		if err != nil {
			return nil, err
		}
		persisted[key] = row
	}
	return persisted, nil
}

// recomputeThread rebuilds the thread aggregate from the complete member set.
// O(thread size): acceptable for conversation-sized threads, revisit if
// threads grow unbounded.
func (u *syncUsecase) recomputeThread(accountID string, email *emaildomain.Email) error {
	emails, err := u.emailRepo.GetEmailsByThread(email.ThreadID)
	if err != nil {
		return err
	}

	inbox, draft, sent := emailusecase.ClassifyThreadFolders(emails)

	participants := make(map[string]struct{})
	var lastMessageDate time.Time
	subject := email.Subject
	for _, member := range emails {
		if member.FromID != "" {
			participants[member.FromID] = struct{}{}
		}
		if member.SentAt.After(lastMessageDate) {
			lastMessageDate = member.SentAt
			subject = member.Subject
		}
	}

	participantIDs := make(emaildomain.StringList, 0, len(participants))
	for id := range participants {
		participantIDs = append(participantIDs, id)
	}
	sort.Strings(participantIDs)

	return u.emailRepo.SaveThread(&emaildomain.Thread{
		ID:              email.ThreadID,
		AccountID:       accountID,
		Subject:         subject,
		LastMessageDate: lastMessageDate,
		ParticipantIDs:  participantIDs,
		InboxStatus:     inbox,
		DraftStatus:     draft,
		SentStatus:      sent,
	})
}

func pickAddresses(persisted map[string]*emaildomain.EmailAddress, keys []string) []emaildomain.EmailAddress {
	out := make([]emaildomain.EmailAddress, 0, len(keys))
	for _, key := range keys {
		if row, ok := persisted[key]; ok {
			out = append(out, *row)
		}
	}
	return out
}

// ---- calendar track ----

func (u *syncUsecase) initialCalendarSync(ctx context.Context, account *accountdomain.Account, token string) error {
	calendarID := account.CalendarID
	if calendarID == "" {
		calendar, err := u.client.GetPrimaryCalendar(ctx, token)
		if err != nil {
			return fmt.Errorf("initial calendar sync: %w", err)
		}
		calendarID = calendar.ID
	}

	start, err := u.pollCalendarSyncReady(ctx, token, calendarID)
	if err != nil {
		return fmt.Errorf("initial calendar sync: %w", err)
	}

	deltaToken, err := u.walkEventPages(ctx, account, token, calendarID, start.SyncUpdatedToken)
	if err != nil {
		return fmt.Errorf("initial calendar sync: %w", err)
	}
	if err := u.accountRepo.UpdateCalendarSyncState(account.ID, calendarID, deltaToken); err != nil {
		return fmt.Errorf("failed to persist calendar delta token: %w", err)
	}
	return nil
}

func (u *syncUsecase) pollCalendarSyncReady(ctx context.Context, token, calendarID string) (*aurinko.SyncResponse, error) {
	for {
		resp, err := u.client.StartCalendarSync(ctx, token, calendarID)
		if err != nil {
			return nil, err
		}
		if resp.Ready {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (u *syncUsecase) walkEventPages(ctx context.Context, account *accountdomain.Account, token, calendarID, deltaToken string) (string, error) {
	var records []aurinko.CalendarEvent
	lastDeltaToken := deltaToken

	page, err := u.client.GetUpdatedEvents(ctx, token, calendarID, deltaToken, "")
	if err != nil {
		return "", err
	}
	records = append(records, page.Records...)
	if page.NextDeltaToken != "" {
		lastDeltaToken = page.NextDeltaToken
	}

	for page.NextPageToken != "" {
		page, err = u.client.GetUpdatedEvents(ctx, token, calendarID, "", page.NextPageToken)
		if err != nil {
			return "", err
		}
		records = append(records, page.Records...)
		if page.NextDeltaToken != "" {
			lastDeltaToken = page.NextDeltaToken
		}
	}

	log.Printf("[Sync] Fetched %d event records for account %s", len(records), account.ID)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUpserts)
	for i := range records {
		rec := &records[i]
		g.Go(func() error {
			event := calendarusecase.NormalizeEvent(account.ID, rec)
			event.CalendarID = calendarID
			return u.eventRepo.UpsertEvent(event)
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return lastDeltaToken, nil
}

// ---- index worker pool ----

func (u *syncUsecase) startIndexWorkers(workerCount int) {
	for i := 0; i < workerCount; i++ {
		u.workerWg.Add(1)
		go u.indexWorker(i)
	}
}

func (u *syncUsecase) enqueueIndexJob(accountID string, normalized *emailusecase.NormalizedEmail, addresses map[string]*emaildomain.EmailAddress) {
	if u.indexer == nil {
		return
	}
	if normalized.Email.Subject == "" && normalized.Email.Body == "" {
		return
	}

	to := make([]string, 0, len(normalized.To))
	to = append(to, normalized.To...)

	job := IndexJob{
		AccountID: accountID,
		Doc: chroma.EmailDocument{
			EmailID:  normalized.Email.ID,
			ThreadID: normalized.Email.ThreadID,
			Subject:  normalized.Email.Subject,
			From:     normalized.From.Address,
			To:       to,
			Body:     normalized.Email.BodySnippet,
			RawBody:  normalized.Email.Body,
			SentAt:   normalized.Email.SentAt,
		},
		Digest: emailusecase.BodyDigest(normalized.Email.Subject, normalized.Email.Body),
	}

	select {
	case u.indexQueue <- job:
	default:
		// Queue full: skip rather than block the sync; the record is indexed
		// on the next replayed window because the digest stays unmarked.
		log.Printf("[Sync] Index queue full, skipping email %s", normalized.Email.ID)
	}
}

// indexWorker mirrors upserted emails into the search index. Failures here
// are logged and skipped: the relational truth is already committed, and the
// document is retried whenever the email is synced again.
func (u *syncUsecase) indexWorker(workerID int) {
	defer u.workerWg.Done()

	for job := range u.indexQueue {
		synced, err := u.historyRepo.IsEmailSynced(job.AccountID, job.Doc.EmailID, job.Digest)
		if err != nil {
			log.Printf("[Index] Worker %d: failed to check sync state for %s: %v", workerID, job.Doc.EmailID, err)
			continue
		}
		if synced {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = u.indexer.UpsertEmailDocument(ctx, job.AccountID, job.Doc)
		cancel()
		if err != nil {
			log.Printf("[Index] Worker %d: failed to index email %s: %v", workerID, job.Doc.EmailID, err)
			continue
		}

		if err := u.historyRepo.MarkEmailSynced(job.AccountID, job.Doc.EmailID, job.Digest); err != nil {
			log.Printf("[Index] Worker %d: failed to mark email %s synced: %v", workerID, job.Doc.EmailID, err)
		}
	}
}

func (u *syncUsecase) notify(userID, event string, payload interface{}) {
	if u.eventService == nil {
		return
	}
	u.eventService.SendToUser(userID, event, payload)
}
