package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignatureManifest is the string MercadoPago signs for a notification.
func SignatureManifest(dataID, requestID, ts string) string {
	return fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
}

// ParseSignatureHeader extracts ts and v1 from an x-signature header of the
// form "ts=...,v1=...".
func ParseSignatureHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return ts, v1
}

// VerifyMercadoPagoSignature checks the HMAC-SHA256 of the notification
// manifest. An empty secret disables verification.
func VerifyMercadoPagoSignature(secret, signatureHeader, requestID, dataID string) bool {
	if secret == "" {
		return true
	}
	ts, v1 := ParseSignatureHeader(signatureHeader)
	if ts == "" || v1 == "" {
		return false
	}
	expected := SignMercadoPago(secret, SignatureManifest(dataID, requestID, ts))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(v1)))
}

// SignMercadoPago returns the hex HMAC-SHA256 of manifest.
func SignMercadoPago(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}
