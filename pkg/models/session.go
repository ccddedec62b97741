package models

import "time"

// SessionStatus is the Clarification Session's lifecycle state, per
// spec.md §4.5:
//
//	ACTIVE -> RESPONDED | EXPIRED | CANCELLED
//	RESPONDED -> RESOLVED
//	RESOLVED -> RESUMED
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusResponded SessionStatus = "RESPONDED"
	SessionStatusResolved  SessionStatus = "RESOLVED"
	SessionStatusExpired   SessionStatus = "EXPIRED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
	SessionStatusResumed   SessionStatus = "RESUMED"
)

var sessionTransitions = map[SessionStatus]map[SessionStatus]bool{
	SessionStatusActive: {
		SessionStatusResponded: true,
		SessionStatusExpired:   true,
		SessionStatusCancelled: true,
	},
	SessionStatusResponded: {
		SessionStatusResolved: true,
	},
	SessionStatusResolved: {
		SessionStatusResumed: true,
	},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	edges, ok := sessionTransitions[s]
	return ok && edges[next]
}

// Question is a single clarification question posed to a human.
type Question struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	Required bool   `json:"required"`
}

// ClarificationSession is the persisted question/answer cycle tied to a
// quality gate. Invariant: every key in Responses is one of Questions[*].ID.
type ClarificationSession struct {
	ID            string            `json:"id" db:"id"`
	CaseID        string            `json:"case_id" db:"case_id"`
	CaseNumber    string            `json:"case_number" db:"case_number"`
	QualityGateID string            `json:"quality_gate_id" db:"quality_gate_id"`
	Questions     []Question        `json:"questions" db:"-"`
	Responses     map[string]string `json:"responses" db:"-"`
	Status        SessionStatus     `json:"status" db:"status"`
	ChannelID     string            `json:"channel_id,omitempty" db:"channel_id"`
	ThreadTS      string            `json:"thread_ts,omitempty" db:"thread_ts"`
	RemindersSent int               `json:"reminders_sent" db:"reminders_sent"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at" db:"expires_at"`
	Version       int               `json:"version" db:"version"`
}

// RequiredQuestionIDs returns the ids of every required question.
func (s *ClarificationSession) RequiredQuestionIDs() []string {
	var ids []string
	for _, q := range s.Questions {
		if q.Required {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// UnansweredRequired returns the required questions that have no response
// yet — used both to decide ACTIVE->RESPONDED and to populate the escalation
// posted on expiry.
func (s *ClarificationSession) UnansweredRequired() []Question {
	var out []Question
	for _, q := range s.Questions {
		if !q.Required {
			continue
		}
		if _, answered := s.Responses[q.ID]; !answered {
			out = append(out, q)
		}
	}
	return out
}

// AllRequiredAnswered reports whether every required question has a response.
func (s *ClarificationSession) AllRequiredAnswered() bool {
	return len(s.UnansweredRequired()) == 0
}

// RecordResponse stores an answer, enforcing the responses ⊆ questions
// invariant.
func (s *ClarificationSession) RecordResponse(questionID, value string) error {
	found := false
	for _, q := range s.Questions {
		if q.ID == questionID {
			found = true
			break
		}
	}
	if !found {
		return errUnknownQuestionID
	}
	if s.Responses == nil {
		s.Responses = make(map[string]string)
	}
	s.Responses[questionID] = value
	return nil
}

// Transition validates and applies a status change.
func (s *ClarificationSession) Transition(next SessionStatus) (prior SessionStatus, err error) {
	prior = s.Status
	if !prior.CanTransition(next) {
		return prior, errSessionIllegalTransition
	}
	s.Status = next
	s.Version++
	return prior, nil
}

// IsExpired reports whether now is past ExpiresAt while still ACTIVE.
func (s *ClarificationSession) IsExpired(now time.Time) bool {
	return s.Status == SessionStatusActive && now.After(s.ExpiresAt)
}
