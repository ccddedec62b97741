package clarification

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/models"
	"github.com/svcdesk/caseintake/pkg/validator"
)

type fakeNotifier struct {
	questionsTS   string
	questionsErr  error
	reminderCalls int
	reminderErr   error
	resolvedCalls int
	resolvedErr   error
}

func (f *fakeNotifier) PostClarificationQuestions(context.Context, *models.ClarificationSession) (string, error) {
	return f.questionsTS, f.questionsErr
}
func (f *fakeNotifier) PostClarificationReminder(context.Context, *models.ClarificationSession) error {
	f.reminderCalls++
	return f.reminderErr
}
func (f *fakeNotifier) PostClarificationResolved(context.Context, *models.ClarificationSession) error {
	f.resolvedCalls++
	return f.resolvedErr
}

type fakeNotes struct {
	calls int
}

func (f *fakeNotes) PostWorkNote(context.Context, string, string, string, string) error {
	f.calls++
	return nil
}

func TestManagerStartCreatesSessionAndPostsQuestions(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)
	gatesDB, _ := newMockDB(t)
	gates := validator.NewStore(gatesDB)
	notifier := &fakeNotifier{questionsTS: "1700000000.000100"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clarification_sessions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE clarification_sessions SET")).WillReturnResult(sqlmock.NewResult(1, 1))

	m := NewManager(store, gates, notifier, &fakeNotes{}, config.ClarificationConfig{DefaultTTL: time.Hour})
	sess, err := m.Start(context.Background(), "gate-1", "sys-1", "CS0001001", "C1", "acme",
		[]models.Question{{ID: "q1", Prompt: "which env?", Required: true}})
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000100", sess.ThreadTS)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerRecordResponseTransitionsWhenAllRequiredAnswered(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)

	rows := sqlmock.NewRows([]string{
		"id", "case_id", "case_number", "quality_gate_id", "questions", "responses",
		"status", "channel_id", "thread_ts", "reminders_sent", "created_at", "expires_at", "version",
	}).AddRow("sess-1", "sys-1", "CS0001001", "gate-1", []byte(`[{"id":"q1","prompt":"which env?","required":true}]`),
		[]byte(`{}`), "ACTIVE", "C1", "", 0, time.Now(), time.Now().Add(time.Hour), 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM clarification_sessions WHERE id = $1")).
		WithArgs("sess-1").WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE clarification_sessions SET")).WillReturnResult(sqlmock.NewResult(1, 1))

	m := NewManager(store, nil, &fakeNotifier{}, &fakeNotes{}, config.ClarificationConfig{})
	sess, err := m.RecordResponse(context.Background(), "sess-1", "q1", "production")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusResponded, sess.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerSweepExpirationsBlocksGateAndNotifies(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)
	gatesDB, gatesMock := newMockDB(t)
	gates := validator.NewStore(gatesDB)
	notifier := &fakeNotifier{}
	notes := &fakeNotes{}

	rows := sqlmock.NewRows([]string{
		"id", "case_id", "case_number", "quality_gate_id", "questions", "responses",
		"status", "channel_id", "thread_ts", "reminders_sent", "created_at", "expires_at", "version",
	}).AddRow("sess-1", "sys-1", "CS0001001", "gate-1", []byte(`[]`), []byte(`{}`),
		"ACTIVE", "C1", "ts1", 1, time.Now().Add(-time.Hour), time.Now().Add(-time.Minute), 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM clarification_sessions WHERE status = 'ACTIVE' AND expires_at <= $1")).
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE clarification_sessions SET")).WillReturnResult(sqlmock.NewResult(1, 1))

	gateRows := sqlmock.NewRows([]string{
		"id", "case_id", "case_number", "status", "blocked", "risk_level",
		"reviewer_id", "review_reason", "decision", "created_at", "reviewed_at", "version",
	}).AddRow("gate-1", "sys-1", "CS0001001", "CLARIFICATION_NEEDED", false, "low", "", "", []byte(`{}`), time.Now(), nil, 0)
	gatesMock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM quality_gates WHERE id = $1")).
		WithArgs("gate-1").WillReturnRows(gateRows)
	gatesMock.ExpectExec(regexp.QuoteMeta("UPDATE quality_gates SET")).WillReturnResult(sqlmock.NewResult(1, 1))

	m := NewManager(store, gates, notifier, notes, config.ClarificationConfig{})
	n, err := m.SweepExpirations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, notes.calls)
	assert.Equal(t, 1, notifier.resolvedCalls)
	require.NoError(t, mock.ExpectationsWereMet())
	require.NoError(t, gatesMock.ExpectationsWereMet())
}
