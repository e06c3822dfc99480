package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountdomain "mailpilot-backend/internal/account/domain"
	calendardomain "mailpilot-backend/internal/calendar/domain"
	emaildomain "mailpilot-backend/internal/email/domain"
	emailusecase "mailpilot-backend/internal/email/usecase"
	"mailpilot-backend/pkg/aurinko"
	"mailpilot-backend/pkg/chroma"
	"mailpilot-backend/pkg/config"
)

// ---- fakes ----

type fakeAccountRepo struct {
	mu             sync.Mutex
	accounts       map[string]*accountdomain.Account
	savedTokens    []string
	savedCalTokens []string
	deleted        []string
}

func newFakeAccountRepo(accounts ...*accountdomain.Account) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: make(map[string]*accountdomain.Account)}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) GetByID(id string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) GetByUserID(userID string) ([]*accountdomain.Account, error) {
	return nil, nil
}

func (r *fakeAccountRepo) Create(account *accountdomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
	return nil
}

func (r *fakeAccountRepo) UpdateDeltaToken(accountID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.savedTokens = append(r.savedTokens, token)
	if a, ok := r.accounts[accountID]; ok {
		a.NextDeltaToken = token
	}
	return nil
}

func (r *fakeAccountRepo) UpdateCalendarSyncState(accountID, calendarID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.savedCalTokens = append(r.savedCalTokens, token)
	if a, ok := r.accounts[accountID]; ok {
		a.CalendarID = calendarID
		a.NextDeltaTokenCalendar = token
	}
	return nil
}

func (r *fakeAccountRepo) Delete(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, accountID)
	delete(r.accounts, accountID)
	return nil
}

type fakeEmailRepo struct {
	mu      sync.Mutex
	emails  map[string]*emaildomain.Email
	threads map[string]*emaildomain.Thread
	purged  []string
}

func newFakeEmailRepo() *fakeEmailRepo {
	return &fakeEmailRepo{
		emails:  make(map[string]*emaildomain.Email),
		threads: make(map[string]*emaildomain.Thread),
	}
}

func (r *fakeEmailRepo) UpsertEmail(email *emaildomain.Email, to, cc, bcc, replyTo []emaildomain.EmailAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *email
	r.emails[email.ID] = &copied
	return nil
}

func (r *fakeEmailRepo) GetEmailByID(id string) (*emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emails[id], nil
}

func (r *fakeEmailRepo) GetEmailsByThread(threadID string) ([]*emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*emaildomain.Email
	for _, e := range r.emails {
		if e.ThreadID == threadID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEmailRepo) UpsertEmailAddress(addr *emaildomain.EmailAddress) (*emaildomain.EmailAddress, error) {
	copied := *addr
	copied.ID = "addr-" + addr.Address
	return &copied, nil
}

func (r *fakeEmailRepo) GetThread(id string) (*emaildomain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threads[id], nil
}

func (r *fakeEmailRepo) SaveThread(thread *emaildomain.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *thread
	r.threads[thread.ID] = &copied
	return nil
}

func (r *fakeEmailRepo) GetThreadsByAccount(accountID string, limit, offset int) ([]*emaildomain.Thread, error) {
	return nil, nil
}

func (r *fakeEmailRepo) DeleteAccountData(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged = append(r.purged, accountID)
	return nil
}

type fakeHistoryRepo struct {
	mu     sync.Mutex
	synced map[string]string // accountID+emailID -> digest
	purged []string
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{synced: make(map[string]string)}
}

func (r *fakeHistoryRepo) IsEmailSynced(accountID, emailID, bodyDigest string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.synced[accountID+"/"+emailID] == bodyDigest, nil
}

func (r *fakeHistoryRepo) MarkEmailSynced(accountID, emailID, bodyDigest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced[accountID+"/"+emailID] = bodyDigest
	return nil
}

func (r *fakeHistoryRepo) DeleteAccountHistory(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged = append(r.purged, accountID)
	return nil
}

type fakeEventRepo struct {
	mu       sync.Mutex
	upserted []string
	purged   []string
}

func (r *fakeEventRepo) UpsertEvent(event *calendardomain.CalendarEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserted = append(r.upserted, event.ID)
	return nil
}

func (r *fakeEventRepo) GetEventByID(id string) (*calendardomain.CalendarEvent, error) {
	return nil, nil
}

func (r *fakeEventRepo) GetEventsByAccount(accountID string, limit, offset int) ([]*calendardomain.CalendarEvent, error) {
	return nil, nil
}

func (r *fakeEventRepo) DeleteAccountData(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged = append(r.purged, accountID)
	return nil
}

type fakeIndexer struct {
	mu        sync.Mutex
	docs      []chroma.EmailDocument
	deleted   []string
	deleteErr error
}

func (f *fakeIndexer) UpsertEmailDocument(ctx context.Context, accountID string, doc chroma.EmailDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeIndexer) DeleteAccountDocuments(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, accountID)
	return f.deleteErr
}

// fakeDeltaClient delegates to per-test closures; unset calls fail the test.
type fakeDeltaClient struct {
	t *testing.T

	startSync        func(ctx context.Context, accessToken string, daysWithin int) (*aurinko.SyncResponse, error)
	getUpdatedEmails func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error)
	startCalSync     func(ctx context.Context, accessToken, calendarID string) (*aurinko.SyncResponse, error)
	getUpdatedEvents func(ctx context.Context, accessToken, calendarID, deltaToken, pageToken string) (*aurinko.UpdatedEventsPage, error)
	getPrimaryCal    func(ctx context.Context, accessToken string) (*aurinko.Calendar, error)
}

func (f *fakeDeltaClient) StartSync(ctx context.Context, accessToken string, daysWithin int) (*aurinko.SyncResponse, error) {
	if f.startSync == nil {
		f.t.Fatal("unexpected StartSync call")
	}
	return f.startSync(ctx, accessToken, daysWithin)
}

func (f *fakeDeltaClient) GetUpdatedEmails(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
	if f.getUpdatedEmails == nil {
		f.t.Fatal("unexpected GetUpdatedEmails call")
	}
	return f.getUpdatedEmails(ctx, accessToken, deltaToken, pageToken)
}

func (f *fakeDeltaClient) StartCalendarSync(ctx context.Context, accessToken, calendarID string) (*aurinko.SyncResponse, error) {
	if f.startCalSync == nil {
		f.t.Fatal("unexpected StartCalendarSync call")
	}
	return f.startCalSync(ctx, accessToken, calendarID)
}

func (f *fakeDeltaClient) GetUpdatedEvents(ctx context.Context, accessToken, calendarID, deltaToken, pageToken string) (*aurinko.UpdatedEventsPage, error) {
	if f.getUpdatedEvents == nil {
		f.t.Fatal("unexpected GetUpdatedEvents call")
	}
	return f.getUpdatedEvents(ctx, accessToken, calendarID, deltaToken, pageToken)
}

func (f *fakeDeltaClient) GetPrimaryCalendar(ctx context.Context, accessToken string) (*aurinko.Calendar, error) {
	if f.getPrimaryCal == nil {
		f.t.Fatal("unexpected GetPrimaryCalendar call")
	}
	return f.getPrimaryCal(ctx, accessToken)
}

func testMessage(id, threadID, from string) aurinko.EmailMessage {
	return aurinko.EmailMessage{
		ID:        id,
		ThreadID:  threadID,
		Subject:   "subject " + id,
		Body:      "body " + id,
		SysLabels: []string{"inbox"},
		From:      &aurinko.EmailAddress{Address: from},
		SentAt:    time.Now(),
	}
}

func testAccount(id string) *accountdomain.Account {
	return &accountdomain.Account{
		ID:          id,
		UserID:      "user-1",
		Email:       id + "@example.com",
		AccessToken: "token-" + id,
	}
}

// withCalendar gives the account a settled calendar track so incremental
// syncs exercise the steady-state path.
func withCalendar(account *accountdomain.Account) *accountdomain.Account {
	account.CalendarID = "cal-1"
	account.NextDeltaTokenCalendar = "cal-delta-0"
	return account
}

func emptyEventsPage(ctx context.Context, accessToken, calendarID, deltaToken, pageToken string) (*aurinko.UpdatedEventsPage, error) {
	return &aurinko.UpdatedEventsPage{}, nil
}

type syncFixture struct {
	accountRepo *fakeAccountRepo
	emailRepo   *fakeEmailRepo
	historyRepo *fakeHistoryRepo
	eventRepo   *fakeEventRepo
	client      *fakeDeltaClient
	indexer     *fakeIndexer
	uc          SyncUsecase
}

func newSyncFixture(t *testing.T, accounts ...*accountdomain.Account) *syncFixture {
	f := &syncFixture{
		accountRepo: newFakeAccountRepo(accounts...),
		emailRepo:   newFakeEmailRepo(),
		historyRepo: newFakeHistoryRepo(),
		eventRepo:   &fakeEventRepo{},
		client:      &fakeDeltaClient{t: t},
		indexer:     &fakeIndexer{},
	}
	f.uc = NewSyncUsecase(f.accountRepo, f.emailRepo, f.historyRepo, f.eventRepo, f.client, f.indexer, &config.Config{})
	t.Cleanup(f.uc.Stop)
	return f
}

// ---- tests ----

func TestIncrementalSyncCarriesLastNonEmptyDeltaToken(t *testing.T) {
	account := withCalendar(testAccount("acc-1"))
	account.NextDeltaToken = "delta-0"
	f := newSyncFixture(t, account)
	f.client.getUpdatedEvents = emptyEventsPage

	// Three pages: the middle one carries a token, the last one is empty. The
	// committed token must be the last non-empty one seen during the walk.
	f.client.getUpdatedEmails = func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
		switch {
		case deltaToken == "delta-0" && pageToken == "":
			return &aurinko.UpdatedEmailsPage{
				NextPageToken: "p2",
				Records:       []aurinko.EmailMessage{testMessage("m1", "t1", "alice@example.com")},
			}, nil
		case pageToken == "p2":
			return &aurinko.UpdatedEmailsPage{
				NextDeltaToken: "delta-1",
				NextPageToken:  "p3",
				Records:        []aurinko.EmailMessage{testMessage("m2", "t1", "bob@example.com")},
			}, nil
		case pageToken == "p3":
			return &aurinko.UpdatedEmailsPage{}, nil
		default:
			return nil, errors.New("unexpected page request")
		}
	}

	token, err := f.uc.PerformIncrementalSync(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "delta-1", token)
	assert.Equal(t, []string{"delta-1"}, f.accountRepo.savedTokens)
}

func TestIncrementalSyncEmptyWindowKeepsToken(t *testing.T) {
	account := withCalendar(testAccount("acc-1"))
	account.NextDeltaToken = "delta-0"
	f := newSyncFixture(t, account)
	f.client.getUpdatedEvents = emptyEventsPage

	// A window with no changes and no new token must re-commit the old token,
	// never an empty one.
	f.client.getUpdatedEmails = func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
		return &aurinko.UpdatedEmailsPage{}, nil
	}

	token, err := f.uc.PerformIncrementalSync(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "delta-0", token)
}

func TestIncrementalSyncDoesNotCommitTokenOnPageError(t *testing.T) {
	account := testAccount("acc-1")
	account.NextDeltaToken = "delta-0"
	f := newSyncFixture(t, account)

	f.client.getUpdatedEmails = func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
		if pageToken == "" {
			return &aurinko.UpdatedEmailsPage{NextDeltaToken: "delta-1", NextPageToken: "p2"}, nil
		}
		return nil, errors.New("provider 500")
	}

	_, err := f.uc.PerformIncrementalSync(context.Background(), "acc-1")
	require.Error(t, err)
	assert.Empty(t, f.accountRepo.savedTokens, "token must not be persisted after a failed walk")
	assert.Equal(t, "delta-0", f.accountRepo.accounts["acc-1"].NextDeltaToken)
}

func TestIncrementalSyncRequiresDeltaToken(t *testing.T) {
	f := newSyncFixture(t, testAccount("acc-1"))

	_, err := f.uc.PerformIncrementalSync(context.Background(), "acc-1")
	assert.ErrorIs(t, err, ErrNoDeltaToken)
}

// An account whose calendar track never got a token, for example after a
// half-failed first sync, must be re-bootstrapped rather than skipped forever.
func TestIncrementalSyncBootstrapsMissingCalendarState(t *testing.T) {
	account := testAccount("acc-1")
	account.NextDeltaToken = "delta-0"
	f := newSyncFixture(t, account)

	f.client.getUpdatedEmails = func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
		return &aurinko.UpdatedEmailsPage{NextDeltaToken: "delta-1"}, nil
	}
	f.client.getPrimaryCal = func(ctx context.Context, accessToken string) (*aurinko.Calendar, error) {
		return &aurinko.Calendar{ID: "cal-1", Primary: true}, nil
	}
	f.client.startCalSync = func(ctx context.Context, accessToken, calendarID string) (*aurinko.SyncResponse, error) {
		assert.Equal(t, "cal-1", calendarID)
		return &aurinko.SyncResponse{Ready: true, SyncUpdatedToken: "cal-start"}, nil
	}
	f.client.getUpdatedEvents = func(ctx context.Context, accessToken, calendarID, deltaToken, pageToken string) (*aurinko.UpdatedEventsPage, error) {
		assert.Equal(t, "cal-start", deltaToken)
		return &aurinko.UpdatedEventsPage{NextDeltaToken: "cal-final"}, nil
	}

	_, err := f.uc.PerformIncrementalSync(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cal-final"}, f.accountRepo.savedCalTokens)
	assert.Equal(t, "cal-1", f.accountRepo.accounts["acc-1"].CalendarID)
}

func TestSyncUnknownAccount(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.uc.PerformIncrementalSync(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestConcurrentSyncForSameAccountRejected(t *testing.T) {
	account := withCalendar(testAccount("acc-1"))
	account.NextDeltaToken = "delta-0"
	f := newSyncFixture(t, account)
	f.client.getUpdatedEvents = emptyEventsPage

	entered := make(chan struct{})
	proceed := make(chan struct{})
	f.client.getUpdatedEmails = func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
		close(entered)
		<-proceed
		return &aurinko.UpdatedEmailsPage{NextDeltaToken: "delta-1"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.uc.PerformIncrementalSync(context.Background(), "acc-1")
		done <- err
	}()

	<-entered
	_, err := f.uc.PerformIncrementalSync(context.Background(), "acc-1")
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(proceed)
	require.NoError(t, <-done)

	// The guard is released once the first sync finishes.
	f.client.getUpdatedEmails = func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
		return &aurinko.UpdatedEmailsPage{}, nil
	}
	_, err = f.uc.PerformIncrementalSync(context.Background(), "acc-1")
	assert.NoError(t, err)
}

func TestInitialSyncPollsUntilReadyAndSyncsCalendar(t *testing.T) {
	f := newSyncFixture(t, testAccount("acc-1"))

	startCalls := 0
	f.client.startSync = func(ctx context.Context, accessToken string, daysWithin int) (*aurinko.SyncResponse, error) {
		assert.Equal(t, "token-acc-1", accessToken)
		assert.Equal(t, 30, daysWithin)
		startCalls++
		if startCalls < 3 {
			return &aurinko.SyncResponse{Ready: false}, nil
		}
		return &aurinko.SyncResponse{Ready: true, SyncUpdatedToken: "mail-start"}, nil
	}
	f.client.getUpdatedEmails = func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
		assert.Equal(t, "mail-start", deltaToken)
		return &aurinko.UpdatedEmailsPage{
			NextDeltaToken: "mail-final",
			Records: []aurinko.EmailMessage{
				testMessage("m1", "t1", "alice@example.com"),
				testMessage("m2", "t1", "bob@example.com"),
			},
		}, nil
	}
	f.client.getPrimaryCal = func(ctx context.Context, accessToken string) (*aurinko.Calendar, error) {
		return &aurinko.Calendar{ID: "cal-1"}, nil
	}
	f.client.startCalSync = func(ctx context.Context, accessToken, calendarID string) (*aurinko.SyncResponse, error) {
		assert.Equal(t, "cal-1", calendarID)
		return &aurinko.SyncResponse{Ready: true, SyncUpdatedToken: "cal-start"}, nil
	}
	f.client.getUpdatedEvents = func(ctx context.Context, accessToken, calendarID, deltaToken, pageToken string) (*aurinko.UpdatedEventsPage, error) {
		return &aurinko.UpdatedEventsPage{NextDeltaToken: "cal-final"}, nil
	}

	token, err := f.uc.PerformInitialSync(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "mail-final", token)
	assert.Equal(t, 3, startCalls)
	assert.Equal(t, []string{"mail-final"}, f.accountRepo.savedTokens)
	assert.Equal(t, []string{"cal-final"}, f.accountRepo.savedCalTokens)

	// Both emails landed and the thread aggregate was recomputed over them.
	assert.Len(t, f.emailRepo.emails, 2)
	thread := f.emailRepo.threads["t1"]
	require.NotNil(t, thread)
	assert.True(t, thread.InboxStatus)
	assert.Len(t, thread.ParticipantIDs, 2)
}

func TestMalformedRecordSkippedNotFatal(t *testing.T) {
	account := withCalendar(testAccount("acc-1"))
	account.NextDeltaToken = "delta-0"
	f := newSyncFixture(t, account)
	f.client.getUpdatedEvents = emptyEventsPage

	f.client.getUpdatedEmails = func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
		return &aurinko.UpdatedEmailsPage{
			NextDeltaToken: "delta-1",
			Records: []aurinko.EmailMessage{
				{ID: "broken", ThreadID: "t1"}, // no from address
				testMessage("m1", "t1", "alice@example.com"),
			},
		}, nil
	}

	token, err := f.uc.PerformIncrementalSync(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "delta-1", token)
	assert.Contains(t, f.emailRepo.emails, "m1")
	assert.NotContains(t, f.emailRepo.emails, "broken")
}

func TestIndexMirrorMarksHistory(t *testing.T) {
	account := withCalendar(testAccount("acc-1"))
	account.NextDeltaToken = "delta-0"
	f := newSyncFixture(t, account)
	f.client.getUpdatedEvents = emptyEventsPage

	f.client.getUpdatedEmails = func(ctx context.Context, accessToken, deltaToken, pageToken string) (*aurinko.UpdatedEmailsPage, error) {
		return &aurinko.UpdatedEmailsPage{
			NextDeltaToken: "delta-1",
			Records:        []aurinko.EmailMessage{testMessage("m1", "t1", "alice@example.com")},
		}, nil
	}

	_, err := f.uc.PerformIncrementalSync(context.Background(), "acc-1")
	require.NoError(t, err)

	// Stop drains the index queue so the mirror is observable.
	f.uc.Stop()

	require.Len(t, f.indexer.docs, 1)
	assert.Equal(t, "m1", f.indexer.docs[0].EmailID)
	synced, err := f.historyRepo.IsEmailSynced("acc-1", "m1", emailusecase.BodyDigest("subject m1", "body m1"))
	require.NoError(t, err)
	assert.True(t, synced)
}

func TestTeardownAccountCascades(t *testing.T) {
	f := newSyncFixture(t, testAccount("acc-1"))
	f.indexer.deleteErr = errors.New("index down")

	// An index failure during teardown is non-fatal.
	err := f.uc.TeardownAccount(context.Background(), "acc-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"acc-1"}, f.emailRepo.purged)
	assert.Equal(t, []string{"acc-1"}, f.eventRepo.purged)
	assert.Equal(t, []string{"acc-1"}, f.historyRepo.purged)
	assert.Equal(t, []string{"acc-1"}, f.indexer.deleted)
	assert.Equal(t, []string{"acc-1"}, f.accountRepo.deleted)
}
