package audit

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/svcdesk/caseintake/pkg/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestSinkRecordIncrementsCounter(t *testing.T) {
	db, mock := newMockDB(t)
	sink := NewSink(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_entries")).WillReturnResult(sqlmock.NewResult(1, 1))

	before := testutil.ToFloat64(entriesRecordedTotal.WithLabelValues("gate", "approved"))
	err := sink.Record(context.Background(), models.AuditEntry{
		EntityType: "gate",
		EntityID:   "gate-1",
		Action:     "approved",
		NewState:   "APPROVED",
		Actor:      "validator.engine",
	})
	require.NoError(t, err)
	after := testutil.ToFloat64(entriesRecordedTotal.WithLabelValues("gate", "approved"))
	require.Equal(t, before+1, after)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkRecordFailureIncrementsFailureCounter(t *testing.T) {
	db, mock := newMockDB(t)
	sink := NewSink(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_entries")).WillReturnError(assertErr)

	before := testutil.ToFloat64(writeFailuresTotal.WithLabelValues("gate"))
	err := sink.Record(context.Background(), models.AuditEntry{EntityType: "gate", EntityID: "gate-1", Action: "approved"})
	require.Error(t, err)
	after := testutil.ToFloat64(writeFailuresTotal.WithLabelValues("gate"))
	require.Equal(t, before+1, after)
}

func TestRecordFallback(t *testing.T) {
	db, mock := newMockDB(t)
	sink := NewSink(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_entries")).WillReturnResult(sqlmock.NewResult(1, 1))

	err := sink.RecordFallback(context.Background(), "case", "sys-1", "new-path timeout")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

var assertErr = dbErr{}

type dbErr struct{}

func (dbErr) Error() string { return "insert failed" }
