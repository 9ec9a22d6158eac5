package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	mrand "math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

func NewID(prefix string) string {
	t := time.Now()
	entropy := ulid.Monotonic(mrand.New(mrand.NewSource(t.UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return fmt.Sprintf("%s_%s", prefix, id.String())
}

func NewSecret() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 40)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[n.Int64()]
	}
	return fmt.Sprintf("whsec_%s", string(b))
}

// IdempotencyKey identifies one logical dispatch: the same
// (event, payload, endpoint URL) triple always hashes to the same key,
// and every retry of that dispatch reuses it, so receivers can
// deduplicate redeliveries. The payload must be in canonical form.
func IdempotencyKey(event string, canonicalPayload []byte, endpointURL string) string {
	h := sha256.New()
	h.Write([]byte(event))
	h.Write(canonicalPayload)
	h.Write([]byte(endpointURL))
	return hex.EncodeToString(h.Sum(nil))
}
