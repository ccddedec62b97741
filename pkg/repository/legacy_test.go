package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestLegacyCaseStoreGetCase(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLegacyCaseStore(db)

	rows := sqlmock.NewRows([]string{
		"case_id", "case_number", "short_description", "long_description", "priority",
		"urgency", "company", "assignment_group", "account", "category", "fetched_at",
	}).AddRow("sys-1", "CS0001001", "VPN down", "20 users affected", "1", "1", "Acme", "Network", "acme", "Network", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT case_id, case_number")).WithArgs("sys-1").WillReturnRows(rows)

	c, err := store.GetCase(context.Background(), "sys-1")
	require.NoError(t, err)
	assert.Equal(t, "CS0001001", c.Number)
	assert.Equal(t, "VPN down", c.ShortDescription)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLegacyCaseStoreGetCaseNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLegacyCaseStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT case_id, case_number")).WillReturnError(errors.New("no rows in result set"))

	_, err := store.GetCase(context.Background(), "missing")
	require.Error(t, err)
	_, ok := caseerrors.KindOf(err)
	assert.True(t, ok)
}

func TestLegacyBusinessContextStoreGetBusinessContext(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLegacyBusinessContextStore(db)

	rows := sqlmock.NewRows([]string{"account_name", "service_offerings", "support_tier", "executive_sponsor"}).
		AddRow("Acme Corp", "{managed-network,managed-voip}", "platinum", "Jane Doe")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT account_name, service_offerings")).WithArgs("acme").WillReturnRows(rows)

	bc, err := store.GetBusinessContext(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", bc.AccountName)
	assert.Equal(t, []string{"managed-network", "managed-voip"}, bc.ServiceOfferings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLegacyKBStoreSearchKB(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLegacyKBStore(db)

	rows := sqlmock.NewRows([]string{"id", "title", "snippet", "url"}).
		AddRow("kb-1", "VPN troubleshooting", "restart the client", "https://kb/1")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, snippet, url FROM kb_articles")).
		WithArgs("vpn", 3).WillReturnRows(rows)

	arts, err := store.SearchKB(context.Background(), "vpn", 3)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "VPN troubleshooting", arts[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLegacyWorkNoteWriterPostWorkNote(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLegacyWorkNoteWriter(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO work_note_outbox")).
		WithArgs(sqlmock.AnyArg(), "sys-1", "investigating").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.PostWorkNote(context.Background(), "sys-1", "investigating")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
