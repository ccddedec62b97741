package intake

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcdesk/caseintake/pkg/config"
)

func TestVerifyServiceNowBearer(t *testing.T) {
	t.Setenv("SN_BEARER", "s3cr3t")
	auth := NewAuthenticator(config.ServiceNowConfig{BearerEnv: "SN_BEARER"}, config.SlackConfig{})

	req := httptest.NewRequest(http.MethodPost, "/servicenow/webhook", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t")
	require.NoError(t, auth.VerifyServiceNow(req, []byte(`{}`)))

	req2 := httptest.NewRequest(http.MethodPost, "/servicenow/webhook", nil)
	req2.Header.Set("Authorization", "Bearer wrong")
	assert.Error(t, auth.VerifyServiceNow(req2, []byte(`{}`)))
}

func TestVerifyServiceNowHMAC(t *testing.T) {
	t.Setenv("SN_HMAC", "topsecret")
	auth := NewAuthenticator(config.ServiceNowConfig{HMACSecretEnv: "SN_HMAC"}, config.SlackConfig{})

	body := []byte(`{"sys_id":"abc"}`)
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/servicenow/webhook", nil)
	req.Header.Set("X-ServiceNow-Signature", sig)
	require.NoError(t, auth.VerifyServiceNow(req, body))

	req2 := httptest.NewRequest(http.MethodPost, "/servicenow/webhook", nil)
	req2.Header.Set("X-ServiceNow-Signature", "deadbeef")
	assert.Error(t, auth.VerifyServiceNow(req2, body))
}

func TestVerifyServiceNowUnconfiguredIsAuthFailure(t *testing.T) {
	auth := NewAuthenticator(config.ServiceNowConfig{}, config.SlackConfig{})
	req := httptest.NewRequest(http.MethodPost, "/servicenow/webhook", nil)
	assert.Error(t, auth.VerifyServiceNow(req, []byte(`{}`)))
}

func TestVerifySlackUnconfiguredIsAuthFailure(t *testing.T) {
	auth := NewAuthenticator(config.ServiceNowConfig{}, config.SlackConfig{})
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(""))
	assert.Error(t, auth.VerifySlack(req, []byte("")))
}

func TestVerifySlackBadSignatureFails(t *testing.T) {
	os.Setenv("SLACK_SIGNING_SECRET_TEST", "shh")
	t.Cleanup(func() { os.Unsetenv("SLACK_SIGNING_SECRET_TEST") })
	auth := NewAuthenticator(config.ServiceNowConfig{}, config.SlackConfig{SigningSecretEnv: "SLACK_SIGNING_SECRET_TEST"})

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader("body"))
	req.Header.Set("X-Slack-Request-Timestamp", "1531420618")
	req.Header.Set("X-Slack-Signature", "v0=bogus")
	assert.Error(t, auth.VerifySlack(req, []byte("body")))
}
