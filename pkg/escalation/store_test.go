package escalation

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

func TestStoreCreateInsertsEscalation(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO escalations")).WillReturnResult(sqlmock.NewResult(1, 1))

	esc := &models.Escalation{CaseNumber: "CS0001001", Status: models.EscalationStatusPending}
	require.NoError(t, store.Create(context.Background(), esc))
	require.NotEmpty(t, esc.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateReturnsDuplicateOnUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO escalations")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Create(context.Background(), &models.Escalation{CaseNumber: "CS0001001"})
	require.Error(t, err)
	kind, ok := caseerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, caseerrors.KindDuplicate, kind)
}

func TestStoreGetReturnsEscalation(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	rows := sqlmock.NewRows([]string{
		"id", "case_number", "triggers", "bi_score", "channel_id", "rule_name", "reason",
		"message_ts", "status", "created_at", "acknowledged_at", "acknowledged_by",
	}).AddRow("esc-1", "CS0001001", nil, 0.5, "#case-escalations", "default", "r", "", "PENDING", time.Now(), nil, "")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM escalations WHERE id = $1")).
		WithArgs("esc-1").WillReturnRows(rows)

	esc, err := store.Get(context.Background(), "esc-1")
	require.NoError(t, err)
	assert.Equal(t, models.EscalationStatusPending, esc.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAcknowledge(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE escalations SET status = 'ACKNOWLEDGED'")).WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Acknowledge(context.Background(), "esc-1", "U123"))
	require.NoError(t, mock.ExpectationsWereMet())
}
