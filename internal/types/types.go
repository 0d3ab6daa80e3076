// =============================================================================
// Laminar - Shared Types
// =============================================================================
//
// This package contains the domain types shared by every pipeline stage so
// that stages can depend on each other's outputs without import cycles:
//
//   ingest      -> RawRecord
//   validation  -> ValidatedBatch
//   zip321      -> PaymentRequest
//   encoding    -> EncodedOutput
//
// Monetary values are always uint64 zatoshi.
//
// =============================================================================

package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// NETWORK
// =============================================================================

// Network is the Zcash network a batch targets.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// ParseNetwork converts user input into a Network.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "main":
		return Mainnet, nil
	case "testnet", "test":
		return Testnet, nil
	default:
		return "", fmt.Errorf("unknown network %q (expected mainnet or testnet)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so that Network can be
// decoded from YAML and JSON directly.
func (n *Network) UnmarshalText(text []byte) error {
	parsed, err := ParseNetwork(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

func (n Network) String() string { return string(n) }

// =============================================================================
// ADDRESS KIND
// =============================================================================

// AddressKind is the closed set of recipient address families.
type AddressKind string

const (
	KindUnified     AddressKind = "unified"
	KindSapling     AddressKind = "sapling"
	KindTransparent AddressKind = "transparent"
)

// =============================================================================
// RAW INPUT
// =============================================================================

// AmountUnit records which unit the raw amount text is expressed in.
type AmountUnit string

const (
	UnitZatoshi AmountUnit = "zatoshi"
	UnitZEC     AmountUnit = "zec"
)

// CellIssue is a defect the parser found in a single cell. The parser never
// rewrites such a cell; it hands the issue to the validator.
type CellIssue struct {
	Field   string
	Code    string
	Message string
}

// RawRecord is one unvalidated input row.
type RawRecord struct {
	// Row is the 1-based data row number (header excluded).
	Row int

	Address    string
	Amount     string
	AmountUnit AmountUnit
	Memo       string
	Label      string

	// HasMemo and HasLabel distinguish an empty cell from a missing column.
	HasMemo  bool
	HasLabel bool

	Issues []CellIssue
}

// =============================================================================
// VALIDATED BATCH
// =============================================================================

// Recipient is a validated payee.
type Recipient struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount_zatoshis"`
	Memo    string `json:"memo,omitempty"`
	Label   string `json:"label,omitempty"`
}

// ValidatedRecipient pairs a recipient with its origin row and address kind.
type ValidatedRecipient struct {
	RowNumber int         `json:"row_number"`
	Kind      AddressKind `json:"address_type"`
	Recipient Recipient   `json:"recipient"`
}

// Warning is a non-fatal finding.
type Warning struct {
	Code    string `json:"code"`
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

// ValidatedBatch is an accepted batch. It only exists if every row passed.
type ValidatedBatch struct {
	Recipients []ValidatedRecipient `json:"recipients"`
	Total      uint64               `json:"total_zatoshis"`
	Network    Network              `json:"network"`
	Warnings   []Warning            `json:"warnings"`
}

// =============================================================================
// PAYMENT REQUEST
// =============================================================================

// PaymentRequest is the canonical constructed artifact.
type PaymentRequest struct {
	SchemaVersion string               `json:"schema_version"`
	ID            uuid.UUID            `json:"id"`
	CreatedAt     time.Time            `json:"created_at"`
	Network       Network              `json:"network"`
	Recipients    []ValidatedRecipient `json:"recipients"`
	TotalZat      uint64               `json:"total_zat"`
	URI           string               `json:"zip321_uri"`
	PayloadBytes  int                  `json:"payload_bytes"`
	PayloadHash   string               `json:"payload_hash"`
}

// =============================================================================
// ENCODED OUTPUT
// =============================================================================

// EncodingMode is how a payload is laid out into scannable frames.
type EncodingMode string

const (
	ModeSingleFrame EncodingMode = "single"
	ModeMultiFrame  EncodingMode = "multi"
)

// Frame is one scannable unit.
type Frame struct {
	// Index is 1-based.
	Index int    `json:"index"`
	Total int    `json:"total"`
	Data  string `json:"data"`

	// PNG holds the rendered QR image when rendering was requested. It is
	// written to disk, never embedded in JSON results.
	PNG []byte `json:"-"`
}

// EncodedOutput is the scannable representation of one PaymentRequest.
type EncodedOutput struct {
	Mode            EncodingMode `json:"mode"`
	Frames          []Frame      `json:"frames"`
	TotalFrames     int          `json:"total_frames"`
	PayloadBytes    int          `json:"payload_bytes"`
	FrameIntervalMS int          `json:"frame_interval_ms"`
}
