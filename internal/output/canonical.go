package output

import (
	"bytes"
	"encoding/json"

	"github.com/ginjaninja78/laminar/internal/errs"
)

// CanonicalJSON serializes v with every object key sorted, at any depth.
// Struct field order therefore never leaks into the output, and identical
// values always produce identical bytes.
func CanonicalJSON(v any) ([]byte, error) {
	tree, err := toTree(v)
	if err != nil {
		return nil, err
	}
	return encode(tree, "")
}

// CanonicalIndent is CanonicalJSON with two-space indentation and a trailing
// newline, for files meant to be read by people.
func CanonicalIndent(v any) ([]byte, error) {
	tree, err := toTree(v)
	if err != nil {
		return nil, err
	}
	out, err := encode(tree, "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// toTree round-trips v through generic maps. encoding/json writes map keys
// in sorted order; UseNumber keeps integers such as zatoshi totals exact.
func toTree(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to serialize result")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to normalize result")
	}
	return tree, nil
}

func encode(tree any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(tree); err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to serialize result")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
