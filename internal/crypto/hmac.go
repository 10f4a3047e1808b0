package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Header names sent to the base engine API.
const (
	HeaderAPIKey      = "ENGINE-API-KEY"
	HeaderTimestamp   = "ENGINE-TIMESTAMP"
	HeaderPassphrase  = "ENGINE-PASSPHRASE"
	HeaderSignature   = "ENGINE-SIGNATURE"
	HeaderOperator    = "ENGINE-OPERATOR"
	HeaderOperatorSig = "ENGINE-OPERATOR-SIGNATURE"
)

// HMACAuth holds the engine API credentials. Secret is base64; a secret
// that does not decode is used raw.
type HMACAuth struct {
	Key        string
	Secret     string
	Passphrase string
}

// Headers signs timestamp+method+path+body with the current time.
func (h *HMACAuth) Headers(method, path, body string) map[string]string {
	return h.HeadersAt(method, path, body, time.Now().Unix())
}

// HeadersAt is Headers with a caller-supplied unix timestamp.
func (h *HMACAuth) HeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		HeaderAPIKey:     h.Key,
		HeaderTimestamp:  ts,
		HeaderPassphrase: h.Passphrase,
		HeaderSignature:  h.Sign(ts + method + path + body),
	}
}

// Sign returns base64(HMAC-SHA256(secret, message)).
func (h *HMACAuth) Sign(message string) string {
	key, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		key = []byte(h.Secret)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign in constant time.
func (h *HMACAuth) Verify(message, signature string) bool {
	return hmac.Equal([]byte(h.Sign(message)), []byte(signature))
}

// String returns a redacted form for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
