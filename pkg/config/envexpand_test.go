package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvSubstitutesBracedAndBareVars(t *testing.T) {
	t.Setenv("CASEINTAKE_TEST_HOST", "db.internal")
	t.Setenv("CASEINTAKE_TEST_PORT", "5432")

	in := []byte("host: ${CASEINTAKE_TEST_HOST}\nport: $CASEINTAKE_TEST_PORT\n")
	out := ExpandEnv(in)

	assert.Equal(t, "host: db.internal\nport: 5432\n", string(out))
}

func TestExpandEnvMissingVarBecomesEmpty(t *testing.T) {
	out := ExpandEnv([]byte("secret: ${CASEINTAKE_TOTALLY_UNSET_VAR}"))
	assert.Equal(t, "secret: ", string(out))
}
