package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"civildocs_backend/platform/httpkit"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw body, keyed with
// the shared webhook secret.
const signatureHeader = "X-Gateway-Signature"

// maxWebhookBody caps gateway callback payloads at 64 KiB.
const maxWebhookBody = 64 << 10

// VerifySignature is Gin middleware that authenticates gateway callbacks.
// The raw body is read once here and restored for the handler.
func VerifySignature(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if len(key) == 0 {
			httpkit.Error(c, http.StatusServiceUnavailable, "webhook secret not configured", nil)
			c.Abort()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unable to read webhook body", nil)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		received, err := hex.DecodeString(c.GetHeader(signatureHeader))
		if err != nil || len(received) == 0 {
			httpkit.Error(c, http.StatusUnauthorized, "missing webhook signature", nil)
			c.Abort()
			return
		}

		mac := hmac.New(sha256.New, key)
		_, _ = mac.Write(body)
		if !hmac.Equal(received, mac.Sum(nil)) {
			httpkit.Error(c, http.StatusUnauthorized, "invalid webhook signature", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
