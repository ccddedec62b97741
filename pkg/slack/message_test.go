package slack

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcdesk/caseintake/pkg/models"
)

func TestBuildClarificationQuestionsMessage(t *testing.T) {
	session := &models.ClarificationSession{
		CaseNumber: "CS0001001",
		Questions: []models.Question{
			{ID: "q1", Prompt: "Which environment was affected?", Required: true},
			{ID: "q2", Prompt: "Any related tickets?", Required: false},
		},
		ExpiresAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	blocks := BuildClarificationQuestionsMessage(session, "https://dash.example.com/cases/CS0001001")
	require.Len(t, blocks, 3)

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, "CS0001001")

	questions := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, questions.Text.Text, "Which environment was affected?")
	assert.Contains(t, questions.Text.Text, "(required)")
	assert.Contains(t, questions.Text.Text, "Any related tickets?")
	assert.NotContains(t, strings.Split(questions.Text.Text, "\n")[1], "(required)")
}

func TestBuildClarificationReminderMessage(t *testing.T) {
	session := &models.ClarificationSession{
		CaseNumber: "CS0001002",
		Questions: []models.Question{
			{ID: "q1", Prompt: "Which environment was affected?", Required: true},
		},
	}
	blocks := BuildClarificationReminderMessage(session, "https://dash.example.com/cases/CS0001002")
	require.Len(t, blocks, 1)
	text := blocks[0].(*goslack.SectionBlock).Text.Text
	assert.Contains(t, text, "Reminder")
	assert.Contains(t, text, "Which environment was affected?")
}

func TestBuildClarificationResolvedMessage(t *testing.T) {
	tests := []struct {
		status models.SessionStatus
		want   string
	}{
		{models.SessionStatusResolved, "resolved"},
		{models.SessionStatusExpired, "expired"},
		{models.SessionStatusCancelled, "cancelled"},
	}
	for _, tt := range tests {
		session := &models.ClarificationSession{CaseNumber: "CS0001003", Status: tt.status}
		blocks := BuildClarificationResolvedMessage(session)
		require.Len(t, blocks, 1)
		assert.Contains(t, strings.ToLower(blocks[0].(*goslack.SectionBlock).Text.Text), tt.want)
	}
}

func TestBuildEscalationMessage(t *testing.T) {
	esc := &models.Escalation{
		ID:         "esc-1",
		CaseNumber: "CS0001004",
		Triggers:   []string{"compliance_impact", "high_bi_score"},
		BIScore:    0.82,
		RuleName:   "compliance",
		Reason:     "compliance impact flagged",
	}
	blocks := BuildEscalationMessage(esc, "https://dash.example.com/cases/CS0001004")
	require.Len(t, blocks, 4)

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, "CS0001004")
	assert.Contains(t, header.Text.Text, "compliance impact flagged")

	triggers := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, triggers.Text.Text, "compliance_impact")

	score := blocks[2].(*goslack.SectionBlock)
	assert.Contains(t, score.Text.Text, "0.82")
	assert.Contains(t, score.Text.Text, "compliance")

	action := blocks[3].(*goslack.ActionBlock)
	btn := action.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	assert.Equal(t, EscalationAckActionID, btn.ActionID)
	assert.Equal(t, "esc-1", btn.Value)
}

func TestTruncateForSlack(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", truncateForSlack("hello"))
	})

	t.Run("exact limit unchanged", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength)
		assert.Equal(t, text, truncateForSlack(text))
	})

	t.Run("over limit truncated", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength+100)
		result := truncateForSlack(text)
		assert.True(t, len(result) < len(text))
		assert.Contains(t, result, "truncated")
	})

	t.Run("result stays valid UTF-8 for single-byte content", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength+10)
		result := truncateForSlack(text)
		assert.True(t, utf8.ValidString(result))
	})
}
