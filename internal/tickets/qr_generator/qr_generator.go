package qr

import (
	"errors"
	"strings"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// QRGenerator renders ticket codes as scannable links.
type QRGenerator struct {
	baseURL string
}

func NewQRGenerator(publicBaseURL string) *QRGenerator {
	return &QRGenerator{baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// URL is the payload encoded in a ticket's QR code.
func (q *QRGenerator) URL(code string) string {
	return q.baseURL + "/t/" + code
}

// PNG encodes the ticket URL. size <= 0 uses DefaultSize.
func (q *QRGenerator) PNG(code string, size int) ([]byte, error) {
	if code == "" {
		return nil, errors.New("empty ticket code")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(q.URL(code), qrcode.Medium, size)
}

var pathMarkers = []string{"/t/", "/v/"}

// ExtractCode returns the ticket code carried by a scanned payload. Payloads
// are either a bare code or a link whose path contains /t/<code> or
// /v/<code>. Anything else is returned trimmed but otherwise untouched.
func ExtractCode(payload string) string {
	payload = strings.TrimSpace(payload)
	for _, marker := range pathMarkers {
		i := strings.LastIndex(payload, marker)
		if i < 0 {
			continue
		}
		code := payload[i+len(marker):]
		if end := strings.IndexAny(code, "/?#"); end >= 0 {
			code = code[:end]
		}
		if code != "" {
			return code
		}
	}
	return payload
}
