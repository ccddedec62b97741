// Package monitor periodically sweeps BLOCKED quality gates into
// Warning/Critical/Alert age buckets and reports rolling approval/block
// rates (spec.md §4.8).
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/models"
)

// GateLister is the validator.Store surface the monitor needs.
type GateLister interface {
	ListBlockedOlderThan(ctx context.Context, cutoff time.Time) ([]models.QualityGate, error)
	CountSince(ctx context.Context, since time.Time) (map[models.GateStatus]int, error)
}

// Notifier posts the sweep's findings to Slack.
type Notifier interface {
	PostEscalation(ctx context.Context, esc *models.Escalation) (string, error)
}

// Buckets classifies BLOCKED gates by how long they've been stuck, each
// bucket holding only gates at least as old as its threshold and not
// already counted in a higher bucket (spec.md §4.8: "subtract higher
// buckets").
type Buckets struct {
	Warning  []models.QualityGate
	Critical []models.QualityGate
	Alert    []models.QualityGate
}

// Rates is the rolling approval/block rate report over a window.
type Rates struct {
	Window    time.Duration
	Total     int
	Approved  int
	Blocked   int
	Needed    int
}

// ApprovalRate returns the fraction of gates approved in the window, or 0
// if there were none.
func (r Rates) ApprovalRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Approved) / float64(r.Total)
}

// BlockRate returns the fraction of gates blocked in the window.
func (r Rates) BlockRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Blocked) / float64(r.Total)
}

// Monitor runs the stuck-case sweep and rolling rate report.
type Monitor struct {
	gates    GateLister
	notifier Notifier
	channel  string
	cfg      config.RetentionConfig
	log      *slog.Logger
}

func NewMonitor(gates GateLister, notifier Notifier, alertChannelID string, cfg config.RetentionConfig) *Monitor {
	return &Monitor{gates: gates, notifier: notifier, channel: alertChannelID, cfg: cfg, log: slog.Default().With("component", "monitor")}
}

// Sweep buckets currently BLOCKED gates by age, posts each Alert-bucket
// gate as its own escalation, and posts a single summary of the top 5
// oldest gates across Critical+Warning.
func (m *Monitor) Sweep(ctx context.Context) (Buckets, error) {
	now := time.Now()
	oldest, err := m.gates.ListBlockedOlderThan(ctx, now.Add(-m.cfg.WarningAfter))
	if err != nil {
		return Buckets{}, err
	}

	var buckets Buckets
	for _, g := range oldest {
		age := now.Sub(g.CreatedAt)
		switch {
		case age >= m.cfg.AlertAfter:
			buckets.Alert = append(buckets.Alert, g)
		case age >= m.cfg.CriticalAfter:
			buckets.Critical = append(buckets.Critical, g)
		default:
			buckets.Warning = append(buckets.Warning, g)
		}
	}

	for _, g := range buckets.Alert {
		esc := &models.Escalation{
			CaseNumber: g.CaseNumber,
			Triggers:   []string{"stuck_case_alert"},
			ChannelID:  m.channel,
			RuleName:   "stuck-case-monitor",
			Reason:     fmt.Sprintf("gate %s has been BLOCKED for over %s", g.ID, m.cfg.AlertAfter),
			Status:     models.EscalationStatusPending,
		}
		if _, err := m.notifier.PostEscalation(ctx, esc); err != nil {
			m.log.Warn("failed to post stuck-case alert", "gate_id", g.ID, "error", err)
		}
	}

	if summary := buckets.summaryCandidates(); len(summary) > 0 {
		if err := m.postSummary(ctx, summary); err != nil {
			m.log.Warn("failed to post stuck-case summary", "error", err)
		}
	}

	return buckets, nil
}

// summaryCandidates returns up to the 5 oldest gates across Critical and
// Warning buckets (Alert-bucket gates get individual escalations instead).
func (b Buckets) summaryCandidates() []models.QualityGate {
	all := append(append([]models.QualityGate{}, b.Critical...), b.Warning...)
	if len(all) > 5 {
		all = all[:5]
	}
	return all
}

func (m *Monitor) postSummary(ctx context.Context, gates []models.QualityGate) error {
	reason := fmt.Sprintf("%d stuck cases pending review (top %d shown)", len(gates), len(gates))
	triggers := make([]string, 0, len(gates))
	for _, g := range gates {
		triggers = append(triggers, g.CaseNumber)
	}
	esc := &models.Escalation{
		Triggers:  triggers,
		ChannelID: m.channel,
		RuleName:  "stuck-case-monitor-summary",
		Reason:    reason,
		Status:    models.EscalationStatusPending,
	}
	_, err := m.notifier.PostEscalation(ctx, esc)
	return err
}

// RateReport computes the rolling approval/block rate over window.
func (m *Monitor) RateReport(ctx context.Context, window time.Duration) (Rates, error) {
	counts, err := m.gates.CountSince(ctx, time.Now().Add(-window))
	if err != nil {
		return Rates{}, err
	}
	r := Rates{Window: window}
	for status, n := range counts {
		r.Total += n
		switch status {
		case models.GateStatusApproved:
			r.Approved += n
		case models.GateStatusBlocked:
			r.Blocked += n
		case models.GateStatusClarificationNeeded:
			r.Needed += n
		}
	}
	return r, nil
}
