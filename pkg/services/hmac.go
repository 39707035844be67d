package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/recall/pkg/models"
)

// signPayload computes an HMAC-SHA256 hex signature over the canonical JSON
// encoding of the payload. encoding/json marshals map keys in sorted order,
// so the same payload always signs to the same bytes.
func signPayload(secret string, payload models.JSONMap) (string, error) {
	message, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// verifySignature recomputes the payload signature and compares it in
// constant time.
func verifySignature(secret string, payload models.JSONMap, signature string) (bool, error) {
	expected, err := signPayload(secret, payload)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
