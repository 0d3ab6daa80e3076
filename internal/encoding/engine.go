// =============================================================================
// Laminar - Segmentation/Encoding Engine
// =============================================================================
//
// This module decides how a payment request is laid out for scanning and
// produces the frame data. Thresholds come from config.Budgets and are never
// adjusted heuristically:
//
//   payload <= single-frame budget   one frame holding the URI itself
//   payload <= multi-frame budget    fixed-size fragments, looped at a fixed
//                                    frame interval (see fragment.go)
//   otherwise                        PAYLOAD_TOO_LARGE; the caller may retry
//                                    in per-recipient split mode
//
// Output is byte-identical across runs for the same PaymentRequest,
// including the optional PNG rendering.
//
// =============================================================================

package encoding

import (
	"github.com/ginjaninja78/laminar/internal/config"
	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

// Engine encodes payment requests under a fixed set of budgets.
type Engine struct {
	budgets config.Budgets

	// renderer is nil when PNG output is not requested.
	renderer *Renderer
}

// NewEngine creates an engine. Zero-valued budget fields fall back to the
// compiled-in defaults.
func NewEngine(budgets config.Budgets) *Engine {
	defaults := config.DefaultBudgets()
	if budgets.SingleFrameBytes == 0 {
		budgets.SingleFrameBytes = defaults.SingleFrameBytes
	}
	if budgets.MultiFrameBytes == 0 {
		budgets.MultiFrameBytes = defaults.MultiFrameBytes
	}
	if budgets.FragmentBytes == 0 {
		budgets.FragmentBytes = defaults.FragmentBytes
	}
	if budgets.FrameIntervalMS == 0 {
		budgets.FrameIntervalMS = defaults.FrameIntervalMS
	}
	if budgets.DeeplinkBytes == 0 {
		budgets.DeeplinkBytes = defaults.DeeplinkBytes
	}
	return &Engine{budgets: budgets}
}

// WithRenderer returns a copy of the engine that also renders frame PNGs.
func (e *Engine) WithRenderer(r *Renderer) *Engine {
	cp := *e
	cp.renderer = r
	return &cp
}

// Budgets returns the budgets in effect.
func (e *Engine) Budgets() config.Budgets { return e.budgets }

// SelectMode returns the encoding mode for a payload length.
func (e *Engine) SelectMode(payloadBytes int) (types.EncodingMode, error) {
	switch {
	case payloadBytes <= 0:
		return "", errs.New(errs.CodeInternal, "payload is empty")
	case payloadBytes <= e.budgets.SingleFrameBytes:
		return types.ModeSingleFrame, nil
	case payloadBytes <= e.budgets.MultiFrameBytes:
		return types.ModeMultiFrame, nil
	default:
		return "", errs.New(errs.CodePayloadTooLarge,
			"payload is %d bytes, exceeding the %d byte multi-frame budget; use split mode",
			payloadBytes, e.budgets.MultiFrameBytes)
	}
}

// Encode lays out one payment request. The recorded PayloadBytes of the
// request is authoritative and must match the URI it describes.
func (e *Engine) Encode(req *types.PaymentRequest) (*types.EncodedOutput, error) {
	if req == nil {
		return nil, errs.New(errs.CodeInternal, "encode called without a payment request")
	}
	if req.PayloadBytes != len(req.URI) {
		return nil, errs.New(errs.CodeInternal, "payload length %d does not match URI length %d", req.PayloadBytes, len(req.URI))
	}

	mode, err := e.SelectMode(req.PayloadBytes)
	if err != nil {
		return nil, err
	}

	out := &types.EncodedOutput{Mode: mode, PayloadBytes: req.PayloadBytes}
	switch mode {
	case types.ModeSingleFrame:
		out.Frames = []types.Frame{{Index: 1, Total: 1, Data: req.URI}}
	case types.ModeMultiFrame:
		parts, err := Fragment([]byte(req.URI), e.budgets.FragmentBytes)
		if err != nil {
			return nil, err
		}
		out.Frames = make([]types.Frame, len(parts))
		for i, part := range parts {
			out.Frames[i] = types.Frame{Index: i + 1, Total: len(parts), Data: part}
		}
		out.FrameIntervalMS = e.budgets.FrameIntervalMS
	}
	out.TotalFrames = len(out.Frames)

	if e.renderer != nil {
		for i := range out.Frames {
			png, err := e.renderer.Render(out.Frames[i].Data)
			if err != nil {
				return nil, err
			}
			out.Frames[i].PNG = png
		}
	}
	return out, nil
}

// EncodeSplit encodes each request independently, preserving order.
func (e *Engine) EncodeSplit(reqs []*types.PaymentRequest) ([]*types.EncodedOutput, error) {
	out := make([]*types.EncodedOutput, 0, len(reqs))
	for _, req := range reqs {
		enc, err := e.Encode(req)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

// FitsDeeplink reports whether a payload can be handed off as a link.
func (e *Engine) FitsDeeplink(payloadBytes int) bool {
	return payloadBytes <= e.budgets.DeeplinkBytes
}
