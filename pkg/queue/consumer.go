package queue

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WakeFunc nudges a worker pool to poll immediately instead of waiting out
// its jittered interval.
type WakeFunc func()

// ConsumeHandler verifies the signed notification from QueuePublisher.notify
// and wakes the local worker pool. The notification carries no authority of
// its own — the task row in Postgres is what gets executed — so an invalid
// signature only costs a missed nudge, not a dropped task.
func ConsumeHandler(signingKey []byte, wake WakeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		sig := c.GetHeader("X-Caseintake-Signature")
		if !VerifySignature(signingKey, body, sig) {
			slog.Warn("rejected queue notification with invalid signature",
				"task_id", c.GetHeader("X-Caseintake-Task-Id"))
			c.Status(http.StatusUnauthorized)
			return
		}

		if wake != nil {
			wake()
		}
		c.Status(http.StatusAccepted)
	}
}
