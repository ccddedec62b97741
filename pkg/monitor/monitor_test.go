package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/models"
)

type fakeGateLister struct {
	gates  []models.QualityGate
	counts map[models.GateStatus]int
}

func (f *fakeGateLister) ListBlockedOlderThan(context.Context, time.Time) ([]models.QualityGate, error) {
	return f.gates, nil
}

func (f *fakeGateLister) CountSince(context.Context, time.Time) (map[models.GateStatus]int, error) {
	return f.counts, nil
}

type fakeNotifier struct {
	calls int
}

func (f *fakeNotifier) PostEscalation(context.Context, *models.Escalation) (string, error) {
	f.calls++
	return "ts", nil
}

func retentionCfg() config.RetentionConfig {
	return config.RetentionConfig{WarningAfter: 4 * time.Hour, CriticalAfter: 8 * time.Hour, AlertAfter: 24 * time.Hour}
}

func TestSweepBucketsByAge(t *testing.T) {
	now := time.Now()
	gates := &fakeGateLister{gates: []models.QualityGate{
		{ID: "g-warn", CreatedAt: now.Add(-5 * time.Hour)},
		{ID: "g-crit", CreatedAt: now.Add(-9 * time.Hour)},
		{ID: "g-alert", CreatedAt: now.Add(-25 * time.Hour)},
	}}
	notifier := &fakeNotifier{}
	m := NewMonitor(gates, notifier, "#ops-alerts", retentionCfg())

	buckets, err := m.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets.Warning, 1)
	require.Len(t, buckets.Critical, 1)
	require.Len(t, buckets.Alert, 1)
	assert.Equal(t, "g-warn", buckets.Warning[0].ID)
	assert.Equal(t, "g-alert", buckets.Alert[0].ID)
	// one individual escalation for the alert bucket, one summary post for
	// warning+critical combined.
	assert.Equal(t, 2, notifier.calls)
}

func TestSweepSkipsSummaryWhenNothingToSummarize(t *testing.T) {
	gates := &fakeGateLister{}
	notifier := &fakeNotifier{}
	m := NewMonitor(gates, notifier, "#ops-alerts", retentionCfg())

	buckets, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, buckets.Warning)
	assert.Equal(t, 0, notifier.calls)
}

func TestSummaryCandidatesCapsAtFive(t *testing.T) {
	var gates []models.QualityGate
	for i := 0; i < 8; i++ {
		gates = append(gates, models.QualityGate{ID: "g"})
	}
	b := Buckets{Critical: gates}
	assert.Len(t, b.summaryCandidates(), 5)
}

func TestRateReportComputesRates(t *testing.T) {
	gates := &fakeGateLister{counts: map[models.GateStatus]int{
		models.GateStatusApproved:            7,
		models.GateStatusBlocked:             2,
		models.GateStatusClarificationNeeded: 1,
	}}
	m := NewMonitor(gates, &fakeNotifier{}, "#ops-alerts", retentionCfg())

	r, err := m.RateReport(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Total)
	assert.InDelta(t, 0.7, r.ApprovalRate(), 1e-9)
	assert.InDelta(t, 0.2, r.BlockRate(), 1e-9)
}

func TestRatesZeroTotalIsSafe(t *testing.T) {
	var r Rates
	assert.Equal(t, 0.0, r.ApprovalRate())
	assert.Equal(t, 0.0, r.BlockRate())
}
