package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"
)

func signBody(t *testing.T, secret string, body []byte) string {
	t.Helper()
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyNotificationScheme(t *testing.T) {
	body := []byte(`{"workspace_name":"foo"}`)
	req := Request{
		Method: "POST",
		Body:   body,
		Headers: map[string]string{
			HeaderNotificationSignature: signBody(t, "s3cret", body),
		},
	}
	scheme, err := SchemeVerifier{Secret: "s3cret"}.Verify(req)
	if err != nil {
		t.Fatalf("expected signature to verify, got %v", err)
	}
	if scheme != SchemeNotification {
		t.Fatalf("expected notification scheme, got %q", scheme)
	}
}

func TestVerifyRunTaskScheme(t *testing.T) {
	body := []byte(`{"stage":"post_apply"}`)
	req := Request{
		Method: "POST",
		Body:   body,
		Headers: map[string]string{
			HeaderRunTaskSignature: signBody(t, "s3cret", body),
		},
	}
	scheme, err := SchemeVerifier{Secret: "s3cret"}.Verify(req)
	if err != nil {
		t.Fatalf("expected signature to verify, got %v", err)
	}
	if scheme != SchemeRunTask {
		t.Fatalf("expected run task scheme, got %q", scheme)
	}
}

func TestVerifyNotificationHeaderWinsWhenBothMatch(t *testing.T) {
	body := []byte(`{}`)
	signature := signBody(t, "s3cret", body)
	req := Request{
		Body: body,
		Headers: map[string]string{
			HeaderNotificationSignature: signature,
			HeaderRunTaskSignature:      signature,
		},
	}
	scheme, err := SchemeVerifier{Secret: "s3cret"}.Verify(req)
	if err != nil {
		t.Fatalf("expected signature to verify, got %v", err)
	}
	if scheme != SchemeNotification {
		t.Fatalf("expected notification scheme to win, got %q", scheme)
	}
}

func TestVerifyHeaderNameIsCaseInsensitive(t *testing.T) {
	body := []byte(`{}`)
	req := Request{
		Body: body,
		Headers: map[string]string{
			"x-tfe-notification-signature": signBody(t, "s3cret", body),
		},
	}
	if _, err := (SchemeVerifier{Secret: "s3cret"}).Verify(req); err != nil {
		t.Fatalf("expected lowercase header to verify, got %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"workspace_name":"foo"}`)
	signature := signBody(t, "s3cret", body)

	tampered := make([]byte, len(body))
	copy(tampered, body)
	tampered[0] ^= 0x01

	req := Request{
		Body:    tampered,
		Headers: map[string]string{HeaderNotificationSignature: signature},
	}
	if _, err := (SchemeVerifier{Secret: "s3cret"}).Verify(req); err == nil {
		t.Fatalf("expected tampered body to fail verification")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{}`)
	req := Request{
		Body:    body,
		Headers: map[string]string{HeaderRunTaskSignature: signBody(t, "other", body)},
	}
	if _, err := (SchemeVerifier{Secret: "s3cret"}).Verify(req); err == nil {
		t.Fatalf("expected wrong secret to fail verification")
	}
}

func TestVerifyRejectsMissingAndMalformedSignatures(t *testing.T) {
	verifier := SchemeVerifier{Secret: "s3cret"}
	if _, err := verifier.Verify(Request{Body: []byte(`{}`)}); err == nil {
		t.Fatalf("expected missing signature headers to fail")
	}
	req := Request{
		Body:    []byte(`{}`),
		Headers: map[string]string{HeaderNotificationSignature: "not-hex"},
	}
	if _, err := verifier.Verify(req); err == nil {
		t.Fatalf("expected non-hex signature to fail")
	}
}

func TestVerifyRejectsEmptySecret(t *testing.T) {
	body := []byte(`{}`)
	req := Request{
		Body:    body,
		Headers: map[string]string{HeaderNotificationSignature: signBody(t, "", body)},
	}
	if _, err := (SchemeVerifier{}).Verify(req); err == nil {
		t.Fatalf("expected empty secret to be refused")
	}
}
