// =============================================================================
// Laminar - ZIP-321 Payment Request Constructor
// =============================================================================
//
// This module builds the canonical payment-request URI for a validated batch
// and the metadata that travels with it (content hash, deterministic id and
// creation time, payload length).
//
// URI FORMAT:
//   one recipient:   zcash:<address>?amount=<zec>[&memo=<base64>]
//   many recipients: zcash:?address=<a>&amount=<zec>[&memo=<b64>]&address.1=...
//
//   Amounts use the canonical decimal form (trailing zeros trimmed). Memos
//   are standard base64 with padding; empty memos are omitted. Labels stay
//   local to receipts and are never placed in the URI.
//
// DETERMINISM:
//   Everything in a PaymentRequest is a pure function of the recipient list
//   and network. The id is a name-based (SHA-1) UUID over the payload digest,
//   and the creation time is derived from the digest as well.
//
// =============================================================================

package zip321

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/internal/zatoshi"
)

const (
	// SchemaVersion is the PaymentRequest schema version.
	SchemaVersion = "1.0"

	// Scheme is the URI scheme of Zcash payment requests.
	Scheme = "zcash:"

	// HashPrefix identifies the digest algorithm of PayloadHash.
	HashPrefix = "sha256:"

	// maxCreatedAtSeconds is 9999-12-31T23:59:59Z.
	maxCreatedAtSeconds = 253_402_300_799
)

// Namespace is the name-based UUID namespace for payment request ids.
var Namespace = uuid.MustParse("4f68b80f-0ec5-52f4-8357-0b6b89df8754")

// =============================================================================
// URI CONSTRUCTION
// =============================================================================

// EncodeMemo encodes memo text for the memo parameter.
func EncodeMemo(memo string) string {
	return base64.StdEncoding.EncodeToString([]byte(memo))
}

// BuildURI builds the canonical URI for an ordered recipient list.
func BuildURI(recipients []types.ValidatedRecipient) string {
	var b strings.Builder
	b.WriteString(Scheme)

	switch len(recipients) {
	case 0:
		return b.String()
	case 1:
		r := recipients[0].Recipient
		b.WriteString(r.Address)
		b.WriteString("?amount=")
		b.WriteString(zatoshi.Format(r.Amount))
		if r.Memo != "" {
			b.WriteString("&memo=")
			b.WriteString(EncodeMemo(r.Memo))
		}
		return b.String()
	}

	b.WriteByte('?')
	for i, vr := range recipients {
		suffix := ""
		if i > 0 {
			suffix = "." + strconv.Itoa(i)
			b.WriteByte('&')
		}
		r := vr.Recipient
		b.WriteString("address" + suffix + "=" + r.Address)
		b.WriteString("&amount" + suffix + "=" + zatoshi.Format(r.Amount))
		if r.Memo != "" {
			b.WriteString("&memo" + suffix + "=" + EncodeMemo(r.Memo))
		}
	}
	return b.String()
}

// =============================================================================
// PAYMENT REQUEST
// =============================================================================

// Construct builds the single PaymentRequest for a validated batch.
func Construct(batch *types.ValidatedBatch) (*types.PaymentRequest, error) {
	if batch == nil {
		return nil, errs.New(errs.CodeInternal, "construct called without a validated batch")
	}
	return build(batch.Recipients, batch.Network)
}

// ConstructSplit builds one PaymentRequest per recipient, in row order.
func ConstructSplit(batch *types.ValidatedBatch) ([]*types.PaymentRequest, error) {
	if batch == nil {
		return nil, errs.New(errs.CodeInternal, "construct called without a validated batch")
	}
	if len(batch.Recipients) == 0 {
		return nil, errs.New(errs.CodeEmptyBatch, "cannot construct a payment request for an empty batch")
	}
	out := make([]*types.PaymentRequest, 0, len(batch.Recipients))
	for i := range batch.Recipients {
		req, err := build(batch.Recipients[i:i+1], batch.Network)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func build(recipients []types.ValidatedRecipient, network types.Network) (*types.PaymentRequest, error) {
	if len(recipients) == 0 {
		return nil, errs.New(errs.CodeEmptyBatch, "cannot construct a payment request for an empty batch")
	}

	amounts := make([]uint64, len(recipients))
	for i, r := range recipients {
		if err := zatoshi.Validate(r.Recipient.Amount); err != nil {
			return nil, errs.AtRow(errs.CodeInternal, r.RowNumber, "amount", "invalid amount reached construction")
		}
		amounts[i] = r.Recipient.Amount
	}
	total, err := zatoshi.Sum(amounts)
	if err != nil {
		return nil, errs.New(errs.CodeInternal, "validated batch total overflows: %v", err)
	}

	uri := BuildURI(recipients)
	digest := sha256.Sum256([]byte(uri))

	return &types.PaymentRequest{
		SchemaVersion: SchemaVersion,
		ID:            uuid.NewSHA1(Namespace, digest[:]),
		CreatedAt:     createdAt(digest),
		Network:       network,
		Recipients:    append([]types.ValidatedRecipient(nil), recipients...),
		TotalZat:      total,
		URI:           uri,
		PayloadBytes:  len(uri),
		PayloadHash:   HashPrefix + hex.EncodeToString(digest[:]),
	}, nil
}

// createdAt maps the digest onto a Unix time no later than 9999-12-31 so that
// identical payloads carry identical times.
func createdAt(digest [sha256.Size]byte) time.Time {
	raw := binary.BigEndian.Uint64(digest[:8])
	return time.Unix(int64(raw%maxCreatedAtSeconds), 0).UTC()
}

// VerifyHash reports whether hash is the content hash of uri.
func VerifyHash(uri, hash string) bool {
	digest := sha256.Sum256([]byte(uri))
	return hash == HashPrefix+hex.EncodeToString(digest[:])
}
