package documents

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// verificationQR encodes the certificate verification URL as a PNG QR code
// and returns it as a data URI suitable for an <img> src attribute.
func verificationQR(verifyURL string) (string, error) {
	png, err := qrcode.Encode(verifyURL, qrcode.Medium, 160)
	if err != nil {
		return "", fmt.Errorf("encode verification qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
