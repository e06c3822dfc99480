package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	emaildomain "mailpilot-backend/internal/email/domain"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	// One named in-memory database per test; shared cache keeps gorm's pooled
	// connections on the same instance.
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&emaildomain.Thread{},
		&emaildomain.Email{},
		&emaildomain.EmailAddress{},
		&emaildomain.EmailAttachment{},
		&emaildomain.EmailSyncHistory{},
	))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func sampleEmail(id, threadID string) *emaildomain.Email {
	return &emaildomain.Email{
		ID:         id,
		ThreadID:   threadID,
		AccountID:  "acc-1",
		Subject:    "original subject",
		Body:       "original body",
		SentAt:     time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		SysLabels:  emaildomain.StringList{"inbox"},
		EmailLabel: emaildomain.LabelInbox,
	}
}

func TestUpsertEmailIdempotent(t *testing.T) {
	db := testDB(t)
	repo := NewEmailRepository(db)

	email := sampleEmail("m1", "t1")
	email.Attachments = []emaildomain.EmailAttachment{
		{ID: "att-1", Name: "a.pdf"},
	}
	require.NoError(t, repo.UpsertEmail(email, nil, nil, nil, nil))

	// Replay with updated fields: same row, updated in place.
	updated := sampleEmail("m1", "t1")
	updated.Subject = "edited subject"
	updated.Attachments = []emaildomain.EmailAttachment{
		{ID: "att-1", Name: "a-v2.pdf"},
		{ID: "att-2", Name: "b.png"},
	}
	require.NoError(t, repo.UpsertEmail(updated, nil, nil, nil, nil))

	var count int64
	require.NoError(t, db.Model(&emaildomain.Email{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := repo.GetEmailByID("m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "edited subject", got.Subject)
	assert.Len(t, got.Attachments, 2)
}

func TestUpsertEmailReplacesRecipients(t *testing.T) {
	db := testDB(t)
	repo := NewEmailRepository(db)

	bob, err := repo.UpsertEmailAddress(&emaildomain.EmailAddress{AccountID: "acc-1", Address: "bob@example.com"})
	require.NoError(t, err)
	carol, err := repo.UpsertEmailAddress(&emaildomain.EmailAddress{AccountID: "acc-1", Address: "carol@example.com"})
	require.NoError(t, err)

	email := sampleEmail("m1", "t1")
	require.NoError(t, repo.UpsertEmail(email, []emaildomain.EmailAddress{*bob}, nil, nil, nil))

	got, err := repo.GetEmailByID("m1")
	require.NoError(t, err)
	require.Len(t, got.To, 1)
	assert.Equal(t, "bob@example.com", got.To[0].Address)

	// Replay with a different recipient set: replaced wholesale, not appended.
	require.NoError(t, repo.UpsertEmail(sampleEmail("m1", "t1"), []emaildomain.EmailAddress{*carol}, nil, nil, nil))

	got, err = repo.GetEmailByID("m1")
	require.NoError(t, err)
	require.Len(t, got.To, 1)
	assert.Equal(t, "carol@example.com", got.To[0].Address)
}

func TestUpsertEmailAllRecipientKinds(t *testing.T) {
	db := testDB(t)
	repo := NewEmailRepository(db)

	addrs := make(map[string]*emaildomain.EmailAddress, 4)
	for _, a := range []string{"to@example.com", "cc@example.com", "bcc@example.com", "reply@example.com"} {
		saved, err := repo.UpsertEmailAddress(&emaildomain.EmailAddress{AccountID: "acc-1", Address: a})
		require.NoError(t, err)
		addrs[a] = saved
	}

	// All four relations written in one call; each replace runs on its own
	// statement, so none may fail on the prior one's state.
	email := sampleEmail("m1", "t1")
	require.NoError(t, repo.UpsertEmail(email,
		[]emaildomain.EmailAddress{*addrs["to@example.com"]},
		[]emaildomain.EmailAddress{*addrs["cc@example.com"]},
		[]emaildomain.EmailAddress{*addrs["bcc@example.com"]},
		[]emaildomain.EmailAddress{*addrs["reply@example.com"]},
	))

	var got emaildomain.Email
	require.NoError(t, db.Preload("To").Preload("Cc").Preload("Bcc").Preload("ReplyTo").
		Where("id = ?", "m1").First(&got).Error)
	require.Len(t, got.To, 1)
	require.Len(t, got.Cc, 1)
	require.Len(t, got.Bcc, 1)
	require.Len(t, got.ReplyTo, 1)
	assert.Equal(t, "cc@example.com", got.Cc[0].Address)
	assert.Equal(t, "bcc@example.com", got.Bcc[0].Address)
	assert.Equal(t, "reply@example.com", got.ReplyTo[0].Address)
}

func TestUpsertEmailAddressDedup(t *testing.T) {
	db := testDB(t)
	repo := NewEmailRepository(db)

	first, err := repo.UpsertEmailAddress(&emaildomain.EmailAddress{
		AccountID: "acc-1", Address: "alice@example.com",
	})
	require.NoError(t, err)

	second, err := repo.UpsertEmailAddress(&emaildomain.EmailAddress{
		AccountID: "acc-1", Address: "alice@example.com", Name: "Alice Liddell",
	})
	require.NoError(t, err)

	// Same canonical row, name updated last-write-wins.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Alice Liddell", second.Name)

	var count int64
	require.NoError(t, db.Model(&emaildomain.EmailAddress{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Same address under a different account is a distinct row.
	other, err := repo.UpsertEmailAddress(&emaildomain.EmailAddress{
		AccountID: "acc-2", Address: "alice@example.com",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSaveThreadUpsert(t *testing.T) {
	db := testDB(t)
	repo := NewEmailRepository(db)

	require.NoError(t, repo.SaveThread(&emaildomain.Thread{
		ID: "t1", AccountID: "acc-1", Subject: "first", SentStatus: true,
	}))
	require.NoError(t, repo.SaveThread(&emaildomain.Thread{
		ID: "t1", AccountID: "acc-1", Subject: "second", InboxStatus: true,
		ParticipantIDs: emaildomain.StringList{"addr-1", "addr-2"},
	}))

	thread, err := repo.GetThread("t1")
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.Equal(t, "second", thread.Subject)
	assert.True(t, thread.InboxStatus)
	assert.False(t, thread.SentStatus)
	assert.Equal(t, emaildomain.StringList{"addr-1", "addr-2"}, thread.ParticipantIDs)

	var count int64
	require.NoError(t, db.Model(&emaildomain.Thread{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeleteAccountDataScopedToAccount(t *testing.T) {
	db := testDB(t)
	repo := NewEmailRepository(db)

	mine := sampleEmail("m1", "t1")
	require.NoError(t, repo.UpsertEmail(mine, nil, nil, nil, nil))
	require.NoError(t, repo.SaveThread(&emaildomain.Thread{ID: "t1", AccountID: "acc-1"}))

	theirs := sampleEmail("m2", "t2")
	theirs.AccountID = "acc-2"
	require.NoError(t, repo.UpsertEmail(theirs, nil, nil, nil, nil))
	require.NoError(t, repo.SaveThread(&emaildomain.Thread{ID: "t2", AccountID: "acc-2"}))

	require.NoError(t, repo.DeleteAccountData("acc-1"))

	gone, err := repo.GetEmailByID("m1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := repo.GetEmailByID("m2")
	require.NoError(t, err)
	require.NotNil(t, kept)

	threads, err := repo.GetThreadsByAccount("acc-2", 10, 0)
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}

func TestSyncHistoryDigest(t *testing.T) {
	db := testDB(t)
	repo := NewEmailSyncHistoryRepository(db)

	synced, err := repo.IsEmailSynced("acc-1", "m1", "digest-a")
	require.NoError(t, err)
	assert.False(t, synced)

	require.NoError(t, repo.MarkEmailSynced("acc-1", "m1", "digest-a"))

	synced, err = repo.IsEmailSynced("acc-1", "m1", "digest-a")
	require.NoError(t, err)
	assert.True(t, synced)

	// A changed body digest counts as not synced, forcing a re-embed.
	synced, err = repo.IsEmailSynced("acc-1", "m1", "digest-b")
	require.NoError(t, err)
	assert.False(t, synced)

	require.NoError(t, repo.MarkEmailSynced("acc-1", "m1", "digest-b"))
	synced, err = repo.IsEmailSynced("acc-1", "m1", "digest-b")
	require.NoError(t, err)
	assert.True(t, synced)

	var count int64
	require.NoError(t, db.Model(&emaildomain.EmailSyncHistory{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
