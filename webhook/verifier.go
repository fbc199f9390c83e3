package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const (
	// HeaderNotificationSignature carries the HMAC for run notifications.
	HeaderNotificationSignature = "X-Tfe-Notification-Signature"
	// HeaderRunTaskSignature carries the HMAC for run-task events.
	HeaderRunTaskSignature = "X-Tfc-Task-Signature"
)

// Scheme identifies which signature header authenticated a request.
type Scheme string

const (
	SchemeNotification Scheme = "notification"
	SchemeRunTask      Scheme = "run_task"
)

// SchemeVerifier authenticates inbound requests by computing
// HMAC-SHA512(secret, raw body) and matching it, constant time, against the
// notification header first and the run-task header second.
type SchemeVerifier struct {
	Secret string
}

// Verify returns the scheme whose header matched, or an authentication
// failure. The body is never inspected before a signature matches.
func (v SchemeVerifier) Verify(req Request) (Scheme, error) {
	secret := v.Secret
	if secret == "" {
		return "", authFailedError(map[string]any{"reason": "secret not configured"})
	}

	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	if matchesSignature(expected, headerValue(req.Headers, HeaderNotificationSignature)) {
		return SchemeNotification, nil
	}
	if matchesSignature(expected, headerValue(req.Headers, HeaderRunTaskSignature)) {
		return SchemeRunTask, nil
	}
	return "", authFailedError(nil)
}

func matchesSignature(expected []byte, header string) bool {
	signature := strings.TrimSpace(header)
	if signature == "" {
		return false
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(decoded, expected) == 1
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
