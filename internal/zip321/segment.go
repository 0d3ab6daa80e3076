package zip321

import (
	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

// Segmented is a batch packed into consecutive payment requests that each
// fit a byte budget, for link-style handoff.
type Segmented struct {
	Segments        []*types.PaymentRequest `json:"segments"`
	MaxPayloadBytes int                     `json:"max_payload_bytes"`
	RecipientCount  int                     `json:"recipient_count"`
}

// SegmentBatch greedily packs recipients, in row order, into as few URIs as
// possible with every URI at most maxPayloadBytes long. A single recipient
// that cannot fit on its own is an error; recipients are never dropped.
func SegmentBatch(batch *types.ValidatedBatch, maxPayloadBytes int) (*Segmented, error) {
	if maxPayloadBytes <= 0 {
		return nil, errs.New(errs.CodeConfig, "segment budget must be greater than zero")
	}
	if batch == nil || len(batch.Recipients) == 0 {
		return nil, errs.New(errs.CodeEmptyBatch, "cannot segment an empty batch")
	}

	out := &Segmented{MaxPayloadBytes: maxPayloadBytes, RecipientCount: len(batch.Recipients)}
	start := 0
	for start < len(batch.Recipients) {
		end := start + 1
		if len(BuildURI(batch.Recipients[start:end])) > maxPayloadBytes {
			return nil, errs.AtRow(errs.CodePayloadTooLarge, batch.Recipients[start].RowNumber, "",
				"recipient alone exceeds the %d byte budget", maxPayloadBytes)
		}
		for end < len(batch.Recipients) && len(BuildURI(batch.Recipients[start:end+1])) <= maxPayloadBytes {
			end++
		}

		req, err := build(batch.Recipients[start:end], batch.Network)
		if err != nil {
			return nil, err
		}
		out.Segments = append(out.Segments, req)
		start = end
	}
	return out, nil
}
