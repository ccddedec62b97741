package slack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

func TestNewNotifier(t *testing.T) {
	t.Run("returns nil when token empty", func(t *testing.T) {
		assert.Nil(t, NewNotifier(NotifierConfig{Token: ""}))
	})

	t.Run("returns notifier when configured", func(t *testing.T) {
		n := NewNotifier(NotifierConfig{Token: "xoxb-test", DashboardURL: "https://example.com"})
		assert.NotNil(t, n)
	})
}

func TestNotifier_NilReceiver(t *testing.T) {
	var n *Notifier
	ctx := context.Background()

	_, err := n.PostClarificationQuestions(ctx, &models.ClarificationSession{})
	require.Error(t, err)
	assert.ErrorIs(t, err, caseerrors.ErrDependencyDisabled)

	err = n.PostClarificationReminder(ctx, &models.ClarificationSession{})
	require.Error(t, err)

	err = n.PostClarificationResolved(ctx, &models.ClarificationSession{})
	require.Error(t, err)

	_, err = n.PostEscalation(ctx, &models.Escalation{})
	require.Error(t, err)

	_, err = n.FindThreadForCase(ctx, "C123", "CS0001001")
	require.Error(t, err)
}

func TestNotifier_CaseURL(t *testing.T) {
	n := NewNotifier(NotifierConfig{Token: "xoxb-test", DashboardURL: "https://dash.example.com"})
	assert.Equal(t, "https://dash.example.com/cases/CS0001001", n.caseURL("CS0001001"))
}
