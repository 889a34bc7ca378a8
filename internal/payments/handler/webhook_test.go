package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

const testSecret = "whsec_test"

func signedRequest(t *testing.T, body []byte, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	req.Header.Set(signatureHeader, hex.EncodeToString(mac.Sum(nil)))
	return req
}

func newWebhookRouter(secret string, reached *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", VerifySignature(secret), func(c *gin.Context) {
		*reached = true
		c.Status(http.StatusOK)
	})
	return r
}

func TestVerifySignature_ValidSignaturePasses(t *testing.T) {
	reached := false
	router := newWebhookRouter(testSecret, &reached)

	body := []byte(`{"type":"payment_intent.succeeded"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, body, testSecret))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !reached {
		t.Fatal("handler not reached for a valid signature")
	}
}

func TestVerifySignature_WrongKeyRejected(t *testing.T) {
	reached := false
	router := newWebhookRouter(testSecret, &reached)

	body := []byte(`{"type":"payment_intent.succeeded"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, body, "whsec_other"))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if reached {
		t.Fatal("handler reached despite bad signature")
	}
}

func TestVerifySignature_TamperedBodyRejected(t *testing.T) {
	reached := false
	router := newWebhookRouter(testSecret, &reached)

	req := signedRequest(t, []byte(`{"amount":100}`), testSecret)
	req.Body = httptest.NewRequest(http.MethodPost, "/webhook",
		bytes.NewReader([]byte(`{"amount":999}`))).Body
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if reached {
		t.Fatal("handler reached despite tampered body")
	}
}

func TestVerifySignature_MissingSignatureRejected(t *testing.T) {
	reached := false
	router := newWebhookRouter(testSecret, &reached)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{}`)))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if reached {
		t.Fatal("handler reached without a signature")
	}
}
