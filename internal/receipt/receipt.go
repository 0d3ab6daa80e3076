// =============================================================================
// Laminar - Receipt Generator
// =============================================================================
//
// This module projects a completed run into the audit receipt handed to the
// operator. A receipt is a read-only view: it copies from the validated
// batch and the constructed payment request(s) and never modifies them.
//
// INJECTED FIELDS:
//   The timestamp and the batch id are the only values not derived from the
//   pipeline's output. They are supplied by the caller through Stamp, so the
//   generator itself has no clock and no source of randomness.
//
// SPLIT MODE:
//   zip321_payload_hash always refers to the whole-batch payload. When the
//   batch was also split into per-recipient requests, their hashes are
//   listed in row order under split_payload_hashes.
//
// =============================================================================

package receipt

import (
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/output"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/internal/zatoshi"
	"github.com/ginjaninja78/laminar/internal/zip321"
)

// TimestampLayout is RFC 3339 at second precision in UTC.
const TimestampLayout = "2006-01-02T15:04:05Z"

// =============================================================================
// RECEIPT STRUCTURE
// =============================================================================

// Recipient is the receipt's summary of one payee.
type Recipient struct {
	RowNumber int     `json:"row_number"`
	Address   string  `json:"address"`
	AmountZat uint64  `json:"amount_zatoshis"`
	AmountZEC string  `json:"amount_zec"`
	Memo      *string `json:"memo"`
	Label     *string `json:"label"`
}

// Receipt is the immutable audit record of one run.
type Receipt struct {
	LaminarVersion     string          `json:"laminar_version"`
	Timestamp          string          `json:"timestamp"`
	BatchID            uuid.UUID       `json:"batch_id"`
	Network            types.Network   `json:"network"`
	TotalZat           uint64          `json:"total_zatoshis"`
	TotalZEC           string          `json:"total_zec"`
	RecipientCount     int             `json:"recipient_count"`
	Recipients         []Recipient     `json:"recipients"`
	PayloadHash        string          `json:"zip321_payload_hash"`
	SplitPayloadHashes []string        `json:"split_payload_hashes,omitempty"`
	Segments           int             `json:"segments"`
	Warnings           []types.Warning `json:"warnings"`
}

// Stamp carries the externally supplied fields of a receipt.
type Stamp struct {
	Timestamp time.Time
	BatchID   uuid.UUID
}

// Input is everything the generator projects from.
type Input struct {
	// Version is the Laminar release that produced the run.
	Version string

	Batch   *types.ValidatedBatch
	Request *types.PaymentRequest

	// Split holds the per-recipient requests when split mode was used.
	Split []*types.PaymentRequest

	// Segments is the total number of frames emitted for the run.
	Segments int
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate builds the receipt for a completed run.
//
// Inconsistent input (a request that does not describe the batch, a missing
// stamp) is an internal error: earlier stages guarantee these never happen.
func Generate(in Input, stamp Stamp) (*Receipt, error) {
	if in.Batch == nil || in.Request == nil {
		return nil, errs.New(errs.CodeInternal, "receipt requires a validated batch and a payment request")
	}
	if stamp.Timestamp.IsZero() {
		return nil, errs.New(errs.CodeInternal, "receipt timestamp was not supplied")
	}
	if stamp.BatchID == uuid.Nil {
		return nil, errs.New(errs.CodeInternal, "receipt batch id was not supplied")
	}
	if in.Request.Network != in.Batch.Network {
		return nil, errs.New(errs.CodeInternal, "payment request network %s does not match batch network %s", in.Request.Network, in.Batch.Network)
	}
	if in.Request.TotalZat != in.Batch.Total || len(in.Request.Recipients) != len(in.Batch.Recipients) {
		return nil, errs.New(errs.CodeInternal, "payment request does not describe the validated batch")
	}
	if !zip321.VerifyHash(in.Request.URI, in.Request.PayloadHash) {
		return nil, errs.New(errs.CodeInternal, "payment request hash does not match its URI")
	}
	if in.Split != nil && len(in.Split) != len(in.Batch.Recipients) {
		return nil, errs.New(errs.CodeInternal, "split mode produced %d requests for %d recipients", len(in.Split), len(in.Batch.Recipients))
	}
	if in.Segments < 1 {
		return nil, errs.New(errs.CodeInternal, "receipt segment count must be positive, got %d", in.Segments)
	}

	r := &Receipt{
		LaminarVersion: in.Version,
		Timestamp:      stamp.Timestamp.UTC().Truncate(time.Second).Format(TimestampLayout),
		BatchID:        stamp.BatchID,
		Network:        in.Batch.Network,
		TotalZat:       in.Batch.Total,
		TotalZEC:       zatoshi.Format(in.Batch.Total),
		RecipientCount: len(in.Batch.Recipients),
		Recipients:     make([]Recipient, 0, len(in.Batch.Recipients)),
		PayloadHash:    in.Request.PayloadHash,
		Segments:       in.Segments,
		Warnings:       append([]types.Warning{}, in.Batch.Warnings...),
	}

	for _, vr := range in.Batch.Recipients {
		rec := vr.Recipient
		r.Recipients = append(r.Recipients, Recipient{
			RowNumber: vr.RowNumber,
			Address:   rec.Address,
			AmountZat: rec.Amount,
			AmountZEC: zatoshi.Format(rec.Amount),
			Memo:      optional(rec.Memo),
			Label:     optional(rec.Label),
		})
	}

	for i, req := range in.Split {
		if !zip321.VerifyHash(req.URI, req.PayloadHash) {
			return nil, errs.New(errs.CodeInternal, "split request %d hash does not match its URI", i+1)
		}
		r.SplitPayloadHashes = append(r.SplitPayloadHashes, req.PayloadHash)
	}
	return r, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// Marshal renders the receipt as indented JSON with sorted keys.
func Marshal(r *Receipt) ([]byte, error) {
	return output.CanonicalIndent(r)
}

// DefaultFilename returns laminar-receipt-<date>-<batch prefix>.json.
func DefaultFilename(r *Receipt) string {
	date := r.Timestamp
	if t, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
		date = t.UTC().Format("2006-01-02")
	} else if len(date) > 10 {
		date = date[:10]
	}
	return "laminar-receipt-" + date + "-" + r.BatchID.String()[:8] + ".json"
}
