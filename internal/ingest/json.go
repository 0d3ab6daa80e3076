package ingest

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

// jsonBatch is the structured batch format:
//
//	{"version": "1.0", "network": "mainnet",
//	 "recipients": [{"address": "...", "amount_zatoshis": 1000, "memo": "...", "label": "..."}]}
type jsonBatch struct {
	Version    string          `json:"version"`
	Network    string          `json:"network"`
	Recipients []jsonRecipient `json:"recipients"`
}

type jsonRecipient struct {
	Address        *string         `json:"address"`
	AmountZatoshis json.RawMessage `json:"amount_zatoshis"`
	Memo           *string         `json:"memo"`
	Label          *string         `json:"label"`
}

func parseJSON(data []byte, opts Options) (*Batch, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(text))

	var in jsonBatch
	if err := dec.Decode(&in); err != nil {
		return nil, errs.Wrap(err, errs.CodeParseError, "failed to decode JSON batch")
	}
	if dec.More() {
		return nil, errs.New(errs.CodeParseError, "unexpected data after JSON batch")
	}
	if in.Recipients == nil {
		return nil, errs.New(errs.CodeMissingColumn, "JSON batch has no recipients array")
	}

	batch := &Batch{Format: FormatJSON, Headers: []string{"address", "amount_zatoshis", "memo", "label"}}

	if in.Network != "" {
		declared, err := types.ParseNetwork(in.Network)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeParseError, "invalid network in JSON batch")
		}
		if opts.Network != "" && declared != opts.Network {
			return nil, errs.New(errs.CodeNetworkMismatch, "batch declares network %s but %s was requested", declared, opts.Network)
		}
		batch.DeclaredNetwork = declared
	}

	if opts.Limits.MaxRows > 0 && len(in.Recipients) > opts.Limits.MaxRows {
		return nil, rowLimitError(opts.Limits.MaxRows)
	}

	for i, r := range in.Recipients {
		rec := types.RawRecord{Row: i + 1, AmountUnit: types.UnitZatoshi}

		if r.Address != nil {
			rec.Address = strings.TrimSpace(*r.Address)
			screen(&rec, fieldAddress, *r.Address)
		}
		rec.Amount = amountText(r.AmountZatoshis)
		if r.Memo != nil {
			rec.Memo, rec.HasMemo = *r.Memo, true
			screen(&rec, fieldMemo, *r.Memo)
		}
		if r.Label != nil {
			rec.Label, rec.HasLabel = *r.Label, true
			screen(&rec, fieldLabel, *r.Label)
		}

		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

// amountText accepts a JSON number or a JSON string and returns its text.
// Whether the text is a valid integer is decided by the validator.
func amountText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(raw)
}

func screen(rec *types.RawRecord, field, value string) {
	if HasFormulaPrefix(value) {
		rec.Issues = append(rec.Issues, formulaIssue(field))
	}
}
