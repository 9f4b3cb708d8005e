package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// requestFingerprint is what an idempotency key is bound to.
type requestFingerprint struct {
	Action         string `json:"action"`
	SenderID       int64  `json:"sender_id,omitempty"`
	ReceiverID     int64  `json:"receiver_id,omitempty"`
	ReceiverNumber string `json:"receiver_number,omitempty"`
	Amount         string `json:"amount"`
	Description    string `json:"description"`
}

// hashRequest returns the sha256 of the RFC 8785 canonical form of p's
// request fields, hex encoded.
func hashRequest(p posting) (string, error) {
	raw, err := json.Marshal(requestFingerprint{
		Action:         p.action,
		SenderID:       p.debitID,
		ReceiverID:     p.creditID,
		ReceiverNumber: p.receiverNumber,
		Amount:         ledger.FormatAmount(p.amount),
		Description:    p.description,
	})
	if err != nil {
		return "", err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
