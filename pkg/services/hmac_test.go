package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/recall/pkg/models"
)

func TestSignPayloadRoundTrip(t *testing.T) {
	payload := models.JSONMap{
		"version": "1",
		"items":   []any{map[string]any{"title": "Use Postgres"}},
	}

	sig, err := signPayload("secret", payload)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	ok, err := verifySignature("secret", payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignPayloadDeterministic(t *testing.T) {
	payload := models.JSONMap{"b": "2", "a": "1"}

	first, err := signPayload("secret", payload)
	require.NoError(t, err)
	second, err := signPayload("secret", payload)
	require.NoError(t, err)
	assert.Equal(t, first, second, "map key order must not affect the signature")
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	payload := models.JSONMap{"items": []any{map[string]any{"title": "Use Postgres"}}}
	sig, err := signPayload("secret", payload)
	require.NoError(t, err)

	payload["items"] = []any{map[string]any{"title": "Use MySQL"}}
	ok, err := verifySignature("secret", payload, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := models.JSONMap{"x": "y"}
	sig, err := signPayload("secret", payload)
	require.NoError(t, err)

	ok, err := verifySignature("other-secret", payload, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}
