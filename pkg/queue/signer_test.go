package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	key := []byte("super-secret")
	body := []byte(`{"case_id":"CS0001001"}`)

	sig := Sign(key, body)
	assert.True(t, VerifySignature(key, body, sig))
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	key := []byte("super-secret")
	sig := Sign(key, []byte(`{"case_id":"CS0001001"}`))

	assert.False(t, VerifySignature(key, []byte(`{"case_id":"CS0001002"}`), sig))
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	body := []byte(`{"case_id":"CS0001001"}`)
	sig := Sign([]byte("key-a"), body)

	assert.False(t, VerifySignature([]byte("key-b"), body, sig))
}

func TestVerifySignatureRejectsMalformedHex(t *testing.T) {
	assert.False(t, VerifySignature([]byte("key"), []byte("body"), "not-hex!!"))
}
