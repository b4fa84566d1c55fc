// Package crypto signs API payloads and verifies signed transfer requests.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// ErrInvalidSignature is returned when a signature does not match its payload.
var ErrInvalidSignature = errors.New("invalid signature")

// Signer computes hex encoded HMAC-SHA256 signatures.
type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(data []byte, signature string) error {
	expected := s.Sign(data)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		s.logger.Warn("Signature verification failed",
			slog.Int("payload_bytes", len(data)))
		return ErrInvalidSignature
	}
	return nil
}

// TransferPayload is the canonical signed form of a transfer request:
// source:target:amount:currency:unix, with the amount at two decimals.
func TransferPayload(sourceID, targetID string, amount float64, currency string, unix int64) []byte {
	return fmt.Appendf(nil, "%s:%s:%s:%s:%d",
		sourceID, targetID, decimal.NewFromFloat(amount).StringFixed(2), currency, unix)
}

func (s *Signer) SignTransfer(sourceID, targetID string, amount float64, currency string, unix int64) string {
	return s.Sign(TransferPayload(sourceID, targetID, amount, currency, unix))
}

func (s *Signer) VerifyTransfer(sourceID, targetID string, amount float64, currency string, unix int64, signature string) error {
	return s.Verify(TransferPayload(sourceID, targetID, amount, currency, unix), signature)
}
