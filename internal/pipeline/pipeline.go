// =============================================================================
// Laminar - Pipeline Orchestrator
// =============================================================================
//
// This module wires the pure stages into the three caller-facing operations.
// It orchestrates one batch at a time, from raw bytes to the final artifacts.
//
// PIPELINE:
//   1. Parse and sanitize the input (ingest)
//   2. Validate every row, all-or-nothing (validation)
//   3. Construct the ZIP-321 payment request (zip321)
//   4. Encode the payload into frames (encoding)
//   5. Project the audit receipt (receipt)
//
//   validate  = steps 1-2
//   construct = steps 1-3
//   generate  = steps 1-5
//
// CONCURRENCY:
//   A Pipeline holds only immutable configuration, so one instance can serve
//   any number of goroutines processing independent batches.
//
// =============================================================================

package pipeline

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ginjaninja78/laminar/internal/config"
	"github.com/ginjaninja78/laminar/internal/encoding"
	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/ingest"
	"github.com/ginjaninja78/laminar/internal/receipt"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/internal/validation"
	"github.com/ginjaninja78/laminar/internal/zatoshi"
	"github.com/ginjaninja78/laminar/internal/zip321"
)

// =============================================================================
// INPUT AND RESULT STRUCTURES
// =============================================================================

// Input is one batch to process.
type Input struct {
	// Path is the input file. It is read only when Data is nil.
	Path string

	// Data is the raw batch content.
	Data []byte

	// Format forces an input format; FormatAuto detects it.
	Format ingest.Format

	// Network is the declared target network. Empty means the configured
	// default.
	Network types.Network
}

// ValidateResult is the outcome of the validate operation.
type ValidateResult struct {
	Format         ingest.Format              `json:"format"`
	Network        types.Network              `json:"network"`
	RecipientCount int                        `json:"recipient_count"`
	TotalZat       uint64                     `json:"total_zatoshis"`
	TotalZEC       string                     `json:"total_zec"`
	Recipients     []types.ValidatedRecipient `json:"recipients"`

	// Batch is nil when validation failed.
	Batch *types.ValidatedBatch `json:"-"`

	// Warnings is reported even when validation failed.
	Warnings []types.Warning `json:"-"`
}

// Deeplink describes how the batch would be handed off as links instead of
// frames.
type Deeplink struct {
	BudgetBytes int  `json:"budget_bytes"`
	Fits        bool `json:"fits"`

	// Segments is the number of links needed; zero when a single recipient
	// alone exceeds the budget.
	Segments int `json:"segments"`
}

// ConstructResult is the outcome of the construct operation.
type ConstructResult struct {
	Request  *types.PaymentRequest   `json:"payment_request"`
	Split    []*types.PaymentRequest `json:"split_requests,omitempty"`
	Deeplink Deeplink                `json:"deeplink"`

	Batch    *types.ValidatedBatch `json:"-"`
	Warnings []types.Warning       `json:"-"`
}

// GenerateResult is the outcome of the generate operation. In split mode
// Encoded is nil and SplitEncoded holds one output per recipient.
type GenerateResult struct {
	Request      *types.PaymentRequest   `json:"payment_request"`
	Encoded      *types.EncodedOutput    `json:"encoded_output"`
	Split        []*types.PaymentRequest `json:"split_requests,omitempty"`
	SplitEncoded []*types.EncodedOutput  `json:"split_outputs,omitempty"`
	Deeplink     Deeplink                `json:"deeplink"`
	Receipt      *receipt.Receipt        `json:"receipt"`

	Batch    *types.ValidatedBatch `json:"-"`
	Warnings []types.Warning       `json:"-"`
}

// Outputs returns every encoded output in handoff order.
func (r *GenerateResult) Outputs() []*types.EncodedOutput {
	if r.Encoded != nil {
		return []*types.EncodedOutput{r.Encoded}
	}
	return r.SplitEncoded
}

// GenerateOptions controls the generate operation.
type GenerateOptions struct {
	// Split produces one payment request per recipient.
	Split bool

	// RenderPNG attaches a QR image to every frame.
	RenderPNG bool

	// Stamp supplies the receipt timestamp and batch id. Zero fields default
	// to the payment request's id and creation time, which keeps the whole
	// result a pure function of the input.
	Stamp receipt.Stamp
}

// =============================================================================
// PIPELINE STRUCTURE
// =============================================================================

// Pipeline runs batches through the stages under one configuration.
type Pipeline struct {
	cfg     config.Config
	version string
	engine  *encoding.Engine
	logger  *logrus.Entry
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithVersion sets the version recorded in receipts.
func WithVersion(v string) Option {
	return func(p *Pipeline) { p.version = v }
}

// WithLogger replaces the component logger.
func WithLogger(l *logrus.Entry) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline.
func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		version: "dev",
		engine:  encoding.NewEngine(cfg.Budgets),
		logger:  logrus.WithField("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the configuration in effect.
func (p *Pipeline) Config() config.Config { return p.cfg }

// =============================================================================
// OPERATIONS
// =============================================================================

// Validate parses and validates a batch. On a validation failure the error
// is returned together with a result carrying the warnings found so far.
func (p *Pipeline) Validate(in Input) (*ValidateResult, error) {
	network := in.Network
	if network == "" {
		network = p.cfg.Network
	}
	log := p.logger.WithFields(logrus.Fields{"input": in.Path, "network": network})

	// =========================================================================
	// STEP 1: PARSE INPUT
	// =========================================================================

	log.Debug("Parsing input")

	comma, err := p.cfg.Input.Comma()
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeConfig, "invalid CSV delimiter")
	}
	opts := ingest.Options{
		Limits:  p.cfg.Limits,
		Network: network,
		Comma:   comma,
		Sheet:   p.cfg.Input.Sheet,
	}
	var parsed *ingest.Batch
	if in.Data != nil {
		parsed, err = ingest.Parse(in.Data, in.Format, opts)
	} else {
		parsed, err = ingest.ParseFile(in.Path, in.Format, opts)
	}
	if err != nil {
		log.WithError(err).Debug("Input rejected by parser")
		return nil, err
	}
	log.WithFields(logrus.Fields{"format": parsed.Format, "rows": len(parsed.Records)}).Debug("Parsed input")

	// =========================================================================
	// STEP 2: VALIDATE RECORDS
	// =========================================================================

	v := validation.NewValidator(validation.Options{
		Network:               network,
		Limits:                p.cfg.Limits,
		TreatWarningsAsErrors: p.cfg.StrictWarnings,
	})
	batch, res := v.Validate(parsed.Records)

	out := &ValidateResult{Format: parsed.Format, Network: network}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, types.Warning{Code: string(w.Code), Row: w.RowNumber, Message: w.Message})
	}

	if err := res.Err(); err != nil {
		log.WithField("errors", res.ErrorCount).Info("Batch rejected")
		for _, ve := range res.Errors {
			log.Debug(ve.Error())
		}
		return out, err
	}

	out.Batch = batch
	out.RecipientCount = len(batch.Recipients)
	out.TotalZat = batch.Total
	out.TotalZEC = zatoshi.Format(batch.Total)
	out.Recipients = batch.Recipients
	out.Warnings = batch.Warnings

	log.WithFields(logrus.Fields{
		"recipients": out.RecipientCount,
		"total_zat":  out.TotalZat,
		"warnings":   len(out.Warnings),
	}).Info("Batch validated")
	return out, nil
}

// Construct validates a batch and builds its payment request. With split set
// it also builds one request per recipient.
func (p *Pipeline) Construct(in Input, split bool) (*ConstructResult, error) {
	vr, err := p.Validate(in)
	if err != nil {
		return p.partialConstruct(vr), err
	}

	// =========================================================================
	// STEP 3: CONSTRUCT PAYMENT REQUEST
	// =========================================================================

	req, err := zip321.Construct(vr.Batch)
	if err != nil {
		return p.partialConstruct(vr), err
	}

	out := &ConstructResult{
		Request:  req,
		Deeplink: p.deeplink(vr.Batch, req),
		Batch:    vr.Batch,
		Warnings: vr.Warnings,
	}
	if split {
		if out.Split, err = zip321.ConstructSplit(vr.Batch); err != nil {
			return p.partialConstruct(vr), err
		}
	}

	p.logger.WithFields(logrus.Fields{
		"id":            req.ID,
		"payload_bytes": req.PayloadBytes,
		"split":         len(out.Split),
	}).Info("Payment request constructed")
	return out, nil
}

// Generate runs the full pipeline: construction, encoding and the receipt.
// Without split mode a payload over the multi-frame budget is an error.
func (p *Pipeline) Generate(in Input, opts GenerateOptions) (*GenerateResult, error) {
	cr, err := p.Construct(in, opts.Split)
	if err != nil {
		return p.partialGenerate(cr), err
	}

	// =========================================================================
	// STEP 4: ENCODE FRAMES
	// =========================================================================

	engine := p.engine
	if opts.RenderPNG {
		engine = engine.WithRenderer(encoding.NewRenderer(p.cfg.Output.PNGSize))
	}

	out := &GenerateResult{
		Request:  cr.Request,
		Split:    cr.Split,
		Deeplink: cr.Deeplink,
		Batch:    cr.Batch,
		Warnings: cr.Warnings,
	}
	segments := 0
	if opts.Split {
		if out.SplitEncoded, err = engine.EncodeSplit(cr.Split); err != nil {
			return p.partialGenerate(cr), err
		}
		for _, enc := range out.SplitEncoded {
			segments += enc.TotalFrames
		}
	} else {
		if out.Encoded, err = engine.Encode(cr.Request); err != nil {
			if errs.Is(err, errs.CodePayloadTooLarge) {
				p.logger.WithField("payload_bytes", cr.Request.PayloadBytes).Info("Payload exceeds frame budgets; split mode required")
			}
			return p.partialGenerate(cr), err
		}
		segments = out.Encoded.TotalFrames
	}

	// =========================================================================
	// STEP 5: GENERATE RECEIPT
	// =========================================================================

	stamp := opts.Stamp
	if stamp.BatchID == uuid.Nil {
		stamp.BatchID = cr.Request.ID
	}
	if stamp.Timestamp.IsZero() {
		stamp.Timestamp = cr.Request.CreatedAt
	}
	out.Receipt, err = receipt.Generate(receipt.Input{
		Version:  p.version,
		Batch:    cr.Batch,
		Request:  cr.Request,
		Split:    cr.Split,
		Segments: segments,
	}, stamp)
	if err != nil {
		return p.partialGenerate(cr), err
	}

	p.logger.WithFields(logrus.Fields{
		"batch_id": out.Receipt.BatchID,
		"segments": segments,
		"split":    opts.Split,
	}).Info("Batch generated")
	return out, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// deeplink reports the link-style segmentation of batch. It never fails the
// run: a recipient too large for a single link only means links are not an
// option for this batch.
func (p *Pipeline) deeplink(batch *types.ValidatedBatch, req *types.PaymentRequest) Deeplink {
	d := Deeplink{BudgetBytes: p.engine.Budgets().DeeplinkBytes}
	if p.engine.FitsDeeplink(req.PayloadBytes) {
		d.Fits, d.Segments = true, 1
		return d
	}
	seg, err := zip321.SegmentBatch(batch, d.BudgetBytes)
	if err != nil {
		p.logger.WithError(err).Debug("Batch cannot be handed off as links")
		return d
	}
	d.Segments = len(seg.Segments)
	return d
}

func (p *Pipeline) partialConstruct(vr *ValidateResult) *ConstructResult {
	if vr == nil {
		return nil
	}
	return &ConstructResult{Warnings: vr.Warnings}
}

func (p *Pipeline) partialGenerate(cr *ConstructResult) *GenerateResult {
	if cr == nil {
		return nil
	}
	return &GenerateResult{Warnings: cr.Warnings}
}
