package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcdesk/caseintake/pkg/models"
)

func newSession() *models.ClarificationSession {
	return &models.ClarificationSession{
		ID: "sess-1",
		Questions: []models.Question{
			{ID: "q1", Prompt: "HR approval on file?", Required: true},
			{ID: "q2", Prompt: "Anything else?", Required: false},
		},
		Status:    models.SessionStatusActive,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestRecordResponseRejectsUnknownQuestion(t *testing.T) {
	s := newSession()
	err := s.RecordResponse("bogus", "yes")
	require.Error(t, err)
}

func TestResponsesSubsetOfQuestionsInvariant(t *testing.T) {
	s := newSession()
	require.NoError(t, s.RecordResponse("q1", "yes"))
	for id := range s.Responses {
		found := false
		for _, q := range s.Questions {
			if q.ID == id {
				found = true
			}
		}
		assert.True(t, found, "response key %s must be a known question id", id)
	}
}

func TestAllRequiredAnsweredOnlyCountsRequired(t *testing.T) {
	s := newSession()
	assert.False(t, s.AllRequiredAnswered())
	require.NoError(t, s.RecordResponse("q1", "yes"))
	assert.True(t, s.AllRequiredAnswered())
}

func TestResolvedOnlyReachableFromResponded(t *testing.T) {
	s := newSession()
	_, err := s.Transition(models.SessionStatusResolved)
	require.Error(t, err, "ACTIVE -> RESOLVED must be illegal")

	_, err = s.Transition(models.SessionStatusResponded)
	require.NoError(t, err)
	_, err = s.Transition(models.SessionStatusResolved)
	require.NoError(t, err)
}

func TestExpiredOnlyReachableFromActive(t *testing.T) {
	s := newSession()
	_, err := s.Transition(models.SessionStatusResponded)
	require.NoError(t, err)
	_, err = s.Transition(models.SessionStatusExpired)
	require.Error(t, err, "RESPONDED -> EXPIRED must be illegal")
}

func TestIsExpired(t *testing.T) {
	s := newSession()
	s.ExpiresAt = time.Now().Add(-time.Minute)
	assert.True(t, s.IsExpired(time.Now()))

	s2 := newSession()
	assert.False(t, s2.IsExpired(time.Now()))
}

func TestUnansweredRequiredForEscalationPayload(t *testing.T) {
	s := newSession()
	unanswered := s.UnansweredRequired()
	require.Len(t, unanswered, 1)
	assert.Equal(t, "q1", unanswered[0].ID)
}
