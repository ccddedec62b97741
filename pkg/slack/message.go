package slack

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"

	"github.com/svcdesk/caseintake/pkg/models"
)

const maxBlockTextLength = 2900

// EscalationAckActionID is the Block Kit action_id the acknowledge button
// carries; pkg/intake's interactivity handler matches on it to resolve
// the escalation by Value (the escalation id).
const EscalationAckActionID = "escalation_ack"

func section(markdown string) *goslack.SectionBlock {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, markdown, false, false),
		nil, nil,
	)
}

// BuildClarificationQuestionsMessage creates Block Kit blocks posting a
// clarification session's questions to its routed channel.
func BuildClarificationQuestionsMessage(session *models.ClarificationSession, caseURL string) []goslack.Block {
	header := fmt.Sprintf(":grey_question: *Clarification needed for <%s|%s>*", caseURL, session.CaseNumber)
	blocks := []goslack.Block{section(header)}

	var lines []string
	for i, q := range session.Questions {
		marker := ""
		if q.Required {
			marker = " _(required)_"
		}
		lines = append(lines, fmt.Sprintf("%d. %s%s", i+1, q.Prompt, marker))
	}
	blocks = append(blocks, section(truncateForSlack(strings.Join(lines, "\n"))))
	blocks = append(blocks, section(fmt.Sprintf("Reply in this thread. Expires <!date^%d^{date_short_pretty} {time}|%s>.",
		session.ExpiresAt.Unix(), session.ExpiresAt.Format("2006-01-02 15:04 MST"))))

	return blocks
}

// BuildClarificationReminderMessage creates Block Kit blocks for a reminder
// posted in the session's original thread, listing unanswered required
// questions.
func BuildClarificationReminderMessage(session *models.ClarificationSession, caseURL string) []goslack.Block {
	unanswered := session.UnansweredRequired()
	var lines []string
	for _, q := range unanswered {
		lines = append(lines, fmt.Sprintf("- %s", q.Prompt))
	}
	text := fmt.Sprintf(":alarm_clock: *Reminder* — still waiting on required questions for <%s|%s>:\n%s",
		caseURL, session.CaseNumber, strings.Join(lines, "\n"))
	return []goslack.Block{section(truncateForSlack(text))}
}

// BuildClarificationResolvedMessage creates Block Kit blocks for a
// session's terminal note (answered, expired, or cancelled).
func BuildClarificationResolvedMessage(session *models.ClarificationSession) []goslack.Block {
	var text string
	switch session.Status {
	case models.SessionStatusResolved:
		text = fmt.Sprintf(":white_check_mark: Clarification for %s resolved — case resumed.", session.CaseNumber)
	case models.SessionStatusExpired:
		text = fmt.Sprintf(":hourglass: Clarification for %s expired without a response. Case remains blocked pending manual review.", session.CaseNumber)
	case models.SessionStatusCancelled:
		text = fmt.Sprintf(":no_entry_sign: Clarification for %s was cancelled.", session.CaseNumber)
	default:
		text = fmt.Sprintf("Clarification for %s is now %s.", session.CaseNumber, session.Status)
	}
	return []goslack.Block{section(text)}
}

// BuildEscalationMessage creates Block Kit blocks for a routed escalation,
// including an acknowledge button whose action carries the escalation id.
func BuildEscalationMessage(esc *models.Escalation, caseURL string) []goslack.Block {
	header := fmt.Sprintf(":rotating_light: *Escalation — <%s|%s>*\n%s", caseURL, esc.CaseNumber, esc.Reason)
	blocks := []goslack.Block{section(header)}

	if len(esc.Triggers) > 0 {
		blocks = append(blocks, section(fmt.Sprintf("*Triggers:* %s", strings.Join(esc.Triggers, ", "))))
	}
	blocks = append(blocks, section(fmt.Sprintf("*BI score:* %.2f  ·  *Rule:* %s", esc.BIScore, esc.RuleName)))

	btn := goslack.NewButtonBlockElement(EscalationAckActionID, esc.ID,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Acknowledge", false, false))
	btn.Style = goslack.StylePrimary
	blocks = append(blocks, goslack.NewActionBlock("", btn))

	return blocks
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated — view full analysis in dashboard)_"
}
