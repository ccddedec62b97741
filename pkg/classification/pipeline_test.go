package classification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/llm"
)

type scriptedClient struct {
	responses []string
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ llm.Request) (llm.Response, error) {
	if c.calls >= len(c.responses) {
		return llm.Response{}, assertUnexpectedCall
	}
	text := c.responses[c.calls]
	c.calls++
	return llm.Response{Text: text, InputTokens: 10, OutputTokens: 5}, nil
}

var assertUnexpectedCall = caseerrors.Transient("no more scripted responses", nil)

const catJSON = `{"category":"network","subcategory":"vpn","confidence":0.82,"keywords":["vpn"],
"technical_entities":{"systems":["vpn-gw-1"]},"urgency":"High",
"record_type":{"type":"Incident","is_major":false,"reasoning":"single user impact"},
"service_offering":"Managed Network","application_service":"VPN"}`

const narrJSON = `{"quick_summary":"User cannot connect to VPN.","immediate_next_steps":["Restart VPN client","Check gateway logs"],"tone":"confident"}`

const biJSON = `{"project_scope_detected":{"flag":false},"executive_visibility":{"flag":false},
"compliance_impact":{"flag":false},"financial_impact":{"flag":false},
"systemic_issue":{"flag":false},"outside_service_hours":{"flag":false}}`

func TestClassifyAssemblesAllThreeStages(t *testing.T) {
	client := &scriptedClient{responses: []string{catJSON, narrJSON, biJSON}}
	p := NewPipeline(client)

	result, err := p.Classify(t.Context(), "## Case\nNumber: CS0001\n")
	require.NoError(t, err)
	assert.Equal(t, "network", result.Category)
	assert.Equal(t, "vpn", result.Subcategory)
	require.NotNil(t, result.Confidence)
	assert.InDelta(t, 0.82, *result.Confidence, 1e-9)
	assert.Equal(t, "Restart VPN client", result.Narrative.ImmediateNextSteps[0])
	assert.False(t, result.BusinessIntelligence.AnyFlagged())
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, 10, result.Usage.CategorizationPromptTokens)
}

func TestClassifyRetriesOnceOnUnparsableStage(t *testing.T) {
	client := &scriptedClient{responses: []string{"not json at all", catJSON, narrJSON, biJSON}}
	p := NewPipeline(client)

	result, err := p.Classify(t.Context(), "context")
	require.NoError(t, err)
	assert.Equal(t, "network", result.Category)
	assert.Equal(t, 4, client.calls)
}

func TestClassifyFailsAfterTwoUnparsableAttempts(t *testing.T) {
	client := &scriptedClient{responses: []string{"garbage", "still garbage"}}
	p := NewPipeline(client)

	_, err := p.Classify(t.Context(), "context")
	require.Error(t, err)
	kind, ok := caseerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, caseerrors.KindParse, kind)
	assert.Equal(t, 2, client.calls)
}

func TestClassifyStopsAtFirstLLMError(t *testing.T) {
	client := &scriptedClient{responses: nil}
	p := NewPipeline(client)

	_, err := p.Classify(t.Context(), "context")
	require.Error(t, err)
	assert.Equal(t, 0, client.calls)
}
