package intake

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"os"

	goslack "github.com/slack-go/slack"

	"github.com/svcdesk/caseintake/pkg/config"
	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
)

// Authenticator verifies inbound ServiceNow (bearer or HMAC) and Slack
// (signing-secret) webhook requests per spec.md §4.1.
type Authenticator struct {
	serviceNowBearer     string
	serviceNowHMACSecret []byte
	slackSigningSecret   string
}

// NewAuthenticator resolves the configured credentials from their named
// environment variables.
func NewAuthenticator(sn config.ServiceNowConfig, sl config.SlackConfig) *Authenticator {
	a := &Authenticator{}
	if sn.BearerEnv != "" {
		a.serviceNowBearer = os.Getenv(sn.BearerEnv)
	}
	if sn.HMACSecretEnv != "" {
		if secret := os.Getenv(sn.HMACSecretEnv); secret != "" {
			a.serviceNowHMACSecret = []byte(secret)
		}
	}
	if sl.SigningSecretEnv != "" {
		a.slackSigningSecret = os.Getenv(sl.SigningSecretEnv)
	}
	return a
}

// VerifyServiceNow checks the Authorization bearer token or the
// X-ServiceNow-Signature HMAC header, whichever this deployment is
// configured with. At least one must be configured and must match.
func (a *Authenticator) VerifyServiceNow(r *http.Request, body []byte) error {
	switch {
	case a.serviceNowBearer != "":
		got := r.Header.Get("Authorization")
		want := "Bearer " + a.serviceNowBearer
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			return caseerrors.Auth("servicenow bearer token mismatch", nil)
		}
		return nil
	case len(a.serviceNowHMACSecret) > 0:
		mac := hmac.New(sha256.New, a.serviceNowHMACSecret)
		mac.Write(body)
		want := hex.EncodeToString(mac.Sum(nil))
		got := r.Header.Get("X-ServiceNow-Signature")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			return caseerrors.Auth("servicenow hmac signature mismatch", nil)
		}
		return nil
	default:
		return caseerrors.Auth("servicenow webhook auth not configured", nil)
	}
}

// VerifySlack checks the request's X-Slack-Signature/X-Slack-Request-Timestamp
// headers against the configured signing secret using slack-go's verifier,
// which also rejects stale timestamps (replay protection).
func (a *Authenticator) VerifySlack(r *http.Request, body []byte) error {
	if a.slackSigningSecret == "" {
		return caseerrors.Auth("slack webhook auth not configured", nil)
	}
	sv, err := goslack.NewSecretsVerifier(r.Header, a.slackSigningSecret)
	if err != nil {
		return caseerrors.Auth("failed to build slack signature verifier", err)
	}
	if _, err := sv.Write(body); err != nil {
		return caseerrors.Auth("failed to hash slack request body", err)
	}
	if err := sv.Ensure(); err != nil {
		return caseerrors.Auth("slack signature verification failed", err)
	}
	return nil
}
