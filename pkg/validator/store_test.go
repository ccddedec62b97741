package validator

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
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

func TestStoreCreateInsertsNewGate(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quality_gates")).WillReturnResult(sqlmock.NewResult(1, 1))

	g := &models.QualityGate{CaseID: "sys-1", CaseNumber: "CS0001001", Status: models.GateStatusNew}
	require.NoError(t, store.Create(context.Background(), g))
	assert.NotEmpty(t, g.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetReturnsGate(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	rows := sqlmock.NewRows([]string{
		"id", "case_id", "case_number", "status", "blocked", "risk_level",
		"reviewer_id", "review_reason", "decision", "created_at", "reviewed_at", "version",
	}).AddRow("gate-1", "sys-1", "CS0001001", "APPROVED", false, "low", "", "", []byte(`{}`), time.Now(), nil, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM quality_gates WHERE id = $1")).
		WithArgs("gate-1").WillReturnRows(rows)

	g, err := store.Get(context.Background(), "gate-1")
	require.NoError(t, err)
	assert.Equal(t, models.GateStatusApproved, g.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateFailsOnLostOptimisticLock(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE quality_gates SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	g := &models.QualityGate{ID: "gate-1", Status: models.GateStatusApproved, Version: 1}
	err := store.Update(context.Background(), g)
	require.Error(t, err)
}
