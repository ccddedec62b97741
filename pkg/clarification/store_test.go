package clarification

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
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

func TestStoreCreateInsertsSession(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clarification_sessions")).WillReturnResult(sqlmock.NewResult(1, 1))

	sess := &models.ClarificationSession{
		CaseID: "sys-1", CaseNumber: "CS0001001", QualityGateID: "gate-1",
		Status: models.SessionStatusActive, ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(context.Background(), sess))
	require.NotEmpty(t, sess.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetReturnsSession(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	rows := sqlmock.NewRows([]string{
		"id", "case_id", "case_number", "quality_gate_id", "questions", "responses",
		"status", "channel_id", "thread_ts", "reminders_sent", "created_at", "expires_at", "version",
	}).AddRow("sess-1", "sys-1", "CS0001001", "gate-1", []byte(`[]`), []byte(`{}`),
		"ACTIVE", "C1", "", 0, time.Now(), time.Now().Add(time.Hour), 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM clarification_sessions WHERE id = $1")).
		WithArgs("sess-1").WillReturnRows(rows)

	sess, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusActive, sess.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateFailsOnLostOptimisticLock(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE clarification_sessions SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	sess := &models.ClarificationSession{ID: "sess-1", Status: models.SessionStatusActive, Version: 1}
	err := store.Update(context.Background(), sess)
	require.Error(t, err)
}
