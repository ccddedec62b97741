package intake

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/svcdesk/caseintake/pkg/clarification"
	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/escalation"
	"github.com/svcdesk/caseintake/pkg/monitor"
	"github.com/svcdesk/caseintake/pkg/queue"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "caseintake", Subsystem: "intake", Name: "requests_total",
	Help: "Intake webhook requests, by route and outcome.",
}, []string{"route", "outcome"})

// Dispatcher implements spec.md §4.1: authenticate, dedup, enqueue, respond
// within the configured deadline.
type Dispatcher struct {
	auth          *Authenticator
	dedup         *Deduper
	publisher     queue.Publisher
	clarification *clarification.Manager
	escalation    *escalation.Manager
	monitor       *monitor.Monitor
	deadline      time.Duration
	log           *slog.Logger
}

func NewDispatcher(
	auth *Authenticator,
	dedup *Deduper,
	publisher queue.Publisher,
	clarificationMgr *clarification.Manager,
	escalationMgr *escalation.Manager,
	mon *monitor.Monitor,
	cfg config.ServerConfig,
) *Dispatcher {
	deadline := cfg.RequestDeadline
	if deadline <= 0 {
		deadline = 3 * time.Second
	}
	return &Dispatcher{
		auth:          auth,
		dedup:         dedup,
		publisher:     publisher,
		clarification: clarificationMgr,
		escalation:    escalationMgr,
		monitor:       mon,
		deadline:      deadline,
		log:           slog.Default().With("component", "intake.dispatcher"),
	}
}

// Register wires every route of spec.md §4.1 onto router.
func (d *Dispatcher) Register(router gin.IRouter) {
	router.POST("/servicenow/webhook", d.handleServiceNow)
	router.POST("/slack/events", d.handleSlackEvents)
	router.POST("/slack/commands/*command", d.handleSlackCommand)
	router.POST("/slack/interactivity", d.handleSlackInteractivity)
	router.POST("/cron/:job", d.handleCron)
}

func (d *Dispatcher) withDeadline(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d.deadline)
}

// serviceNowEnvelope is the subset of the ServiceNow case record payload
// the dispatcher needs to enqueue a job; the worker re-fetches the full
// record through the Repository Adapter rather than trusting the webhook
// body as ground truth.
type serviceNowEnvelope struct {
	SysID      string `json:"sys_id"`
	Number     string `json:"number"`
	Account    string `json:"account"`
	AssignedTo string `json:"assigned_to"`
}

func (d *Dispatcher) handleServiceNow(c *gin.Context) {
	ctx, cancel := d.withDeadline(c)
	defer cancel()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		requestsTotal.WithLabelValues("servicenow", "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNSUPPORTED_PAYLOAD"})
		return
	}

	if err := d.auth.VerifyServiceNow(c.Request, body); err != nil {
		requestsTotal.WithLabelValues("servicenow", "auth_failed").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "AUTH_FAILED"})
		return
	}

	var envelope serviceNowEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.SysID == "" {
		requestsTotal.WithLabelValues("servicenow", "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNSUPPORTED_PAYLOAD"})
		return
	}

	if d.dedup.Seen(ctx, "servicenow", envelope.SysID) {
		requestsTotal.WithLabelValues("servicenow", "duplicate").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	payload := CasePayload{CaseID: envelope.SysID, CaseNumber: envelope.Number, CallerID: "servicenow", Client: envelope.Account}
	if err := d.publisher.Publish(ctx, envelope.SysID, envelope.Number, "classify", payload); err != nil {
		requestsTotal.WithLabelValues("servicenow", "queue_unavailable").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "QUEUE_UNAVAILABLE"})
		return
	}

	requestsTotal.WithLabelValues("servicenow", "accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (d *Dispatcher) handleSlackEvents(c *gin.Context) {
	ctx, cancel := d.withDeadline(c)
	defer cancel()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		requestsTotal.WithLabelValues("slack_events", "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNSUPPORTED_PAYLOAD"})
		return
	}
	if err := d.auth.VerifySlack(c.Request, body); err != nil {
		requestsTotal.WithLabelValues("slack_events", "auth_failed").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "AUTH_FAILED"})
		return
	}

	var envelope struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		EventID   string `json:"event_id"`
		Event     struct {
			Type    string `json:"type"`
			Channel string `json:"channel"`
			User    string `json:"user"`
		} `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		requestsTotal.WithLabelValues("slack_events", "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNSUPPORTED_PAYLOAD"})
		return
	}

	// Slack's URL-verification handshake must be answered with the
	// challenge value verbatim, unauthenticated-looking as it is.
	if envelope.Type == "url_verification" {
		c.JSON(http.StatusOK, gin.H{"challenge": envelope.Challenge})
		return
	}

	if d.dedup.Seen(ctx, "slack_event", envelope.EventID) {
		requestsTotal.WithLabelValues("slack_events", "duplicate").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	d.log.Info("slack event received", "event_type", envelope.Event.Type, "channel", envelope.Event.Channel)
	requestsTotal.WithLabelValues("slack_events", "accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (d *Dispatcher) handleSlackCommand(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		requestsTotal.WithLabelValues("slack_commands", "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNSUPPORTED_PAYLOAD"})
		return
	}
	if err := d.auth.VerifySlack(c.Request, body); err != nil {
		requestsTotal.WithLabelValues("slack_commands", "auth_failed").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "AUTH_FAILED"})
		return
	}

	requestsTotal.WithLabelValues("slack_commands", "accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"response_type": "ephemeral", "text": "Working on it."})
}

// slackInteractivityPayload covers the two interactivity shapes the
// dispatcher routes: escalation ack buttons (block_actions) and
// clarification answer submissions (view_submission).
type slackInteractivityPayload struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
	View struct {
		PrivateMetadata string `json:"private_metadata"` // session id
		State           struct {
			Values map[string]map[string]struct {
				Value string `json:"value"`
			} `json:"values"`
		} `json:"state"`
	} `json:"view"`
}

func (d *Dispatcher) handleSlackInteractivity(c *gin.Context) {
	ctx, cancel := d.withDeadline(c)
	defer cancel()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		requestsTotal.WithLabelValues("slack_interactivity", "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNSUPPORTED_PAYLOAD"})
		return
	}
	if err := d.auth.VerifySlack(c.Request, body); err != nil {
		requestsTotal.WithLabelValues("slack_interactivity", "auth_failed").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "AUTH_FAILED"})
		return
	}

	form, err := url.ParseQuery(string(body))
	raw := form.Get("payload")
	if err != nil || raw == "" {
		requestsTotal.WithLabelValues("slack_interactivity", "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNSUPPORTED_PAYLOAD"})
		return
	}
	var payload slackInteractivityPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		requestsTotal.WithLabelValues("slack_interactivity", "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNSUPPORTED_PAYLOAD"})
		return
	}

	switch payload.Type {
	case "block_actions":
		for _, action := range payload.Actions {
			if action.ActionID != "escalation_ack" {
				continue
			}
			if err := d.escalation.Acknowledge(ctx, action.Value, payload.User.ID); err != nil {
				d.log.Warn("failed to acknowledge escalation", "escalation_id", action.Value, "error", err)
			}
		}
	case "view_submission":
		sessionID := payload.View.PrivateMetadata
		for blockID, block := range payload.View.State.Values {
			for questionID, input := range block {
				_ = blockID
				if _, err := d.clarification.RecordResponse(ctx, sessionID, questionID, input.Value); err != nil {
					d.log.Warn("failed to record clarification response", "session_id", sessionID, "question_id", questionID, "error", err)
				}
			}
		}
	}

	requestsTotal.WithLabelValues("slack_interactivity", "accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (d *Dispatcher) handleCron(c *gin.Context) {
	ctx, cancel := d.withDeadline(c)
	defer cancel()

	job := c.Param("job")
	switch job {
	case "expire-clarification-sessions":
		reminders, err := d.clarification.SweepReminders(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		expirations, err := d.clarification.SweepExpirations(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reminders_sent": reminders, "sessions_expired": expirations})
	case "monitor-stuck-cases":
		buckets, err := d.monitor.Sweep(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"warning":  len(buckets.Warning),
			"critical": len(buckets.Critical),
			"alert":    len(buckets.Alert),
		})
	case "case-queue-report":
		rates, err := d.monitor.RateReport(ctx, 24*time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rates)
	case "case-queue-snapshot":
		rates, err := d.monitor.RateReport(ctx, time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rates)
	case "case-leaderboard":
		rates, err := d.monitor.RateReport(ctx, 7*24*time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rates)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown cron job"})
	}
}
