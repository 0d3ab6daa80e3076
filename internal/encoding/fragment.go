package encoding

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ginjaninja78/laminar/internal/errs"
)

// Multi-frame fragment wire format:
//
//	ur:laminar/<index>-<total>/<checksum>/<body>
//
// index is 1-based, checksum is the first 8 hex digits of the SHA-256 of the
// whole payload, and body is the fragment's bytes in unpadded base64url. A
// receiver can collect fragments in any order, detect completeness from
// total, and verify the reassembled payload against checksum.
const (
	FragmentPrefix = "ur:laminar/"
	checksumLen    = 8
)

var bodyEncoding = base64.RawURLEncoding

// Checksum returns the payload checksum carried by each fragment.
func Checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:checksumLen]
}

// Fragment splits payload into fixed-size fragments. The last fragment may
// be shorter; no fragment is empty.
func Fragment(payload []byte, size int) ([]string, error) {
	if len(payload) == 0 {
		return nil, errs.New(errs.CodeInternal, "cannot fragment an empty payload")
	}
	if size <= 0 {
		return nil, errs.New(errs.CodeConfig, "fragment size must be greater than zero")
	}

	total := (len(payload) + size - 1) / size
	checksum := Checksum(payload)
	header := "-" + strconv.Itoa(total) + "/" + checksum + "/"

	out := make([]string, 0, total)
	for i := 0; i < total; i++ {
		end := (i + 1) * size
		if end > len(payload) {
			end = len(payload)
		}
		out = append(out, FragmentPrefix+strconv.Itoa(i+1)+header+bodyEncoding.EncodeToString(payload[i*size:end]))
	}
	return out, nil
}

// ParsedFragment is one decoded fragment.
type ParsedFragment struct {
	Index    int
	Total    int
	Checksum string
	Body     []byte
}

// ParseFragment decodes one fragment string.
func ParseFragment(s string) (ParsedFragment, error) {
	var p ParsedFragment
	rest, ok := strings.CutPrefix(s, FragmentPrefix)
	if !ok {
		return p, errs.New(errs.CodeParseError, "fragment does not start with %q", FragmentPrefix)
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 {
		return p, errs.New(errs.CodeParseError, "fragment is missing sections")
	}
	idx, tot, ok := strings.Cut(parts[0], "-")
	if !ok {
		return p, errs.New(errs.CodeParseError, "fragment sequence %q is not <index>-<total>", parts[0])
	}
	var err error
	if p.Index, err = strconv.Atoi(idx); err != nil {
		return p, errs.New(errs.CodeParseError, "fragment index %q is not a number", idx)
	}
	if p.Total, err = strconv.Atoi(tot); err != nil {
		return p, errs.New(errs.CodeParseError, "fragment total %q is not a number", tot)
	}
	if p.Total < 1 || p.Index < 1 || p.Index > p.Total {
		return p, errs.New(errs.CodeParseError, "fragment %d of %d is out of range", p.Index, p.Total)
	}
	if len(parts[1]) != checksumLen {
		return p, errs.New(errs.CodeParseError, "fragment checksum %q has the wrong length", parts[1])
	}
	p.Checksum = parts[1]
	if p.Body, err = bodyEncoding.DecodeString(parts[2]); err != nil || len(p.Body) == 0 {
		return p, errs.New(errs.CodeParseError, "fragment %d body is not valid base64url", p.Index)
	}
	return p, nil
}

// Reassemble rebuilds the payload from fragments received in any order.
// Repeated identical fragments are tolerated since frames are displayed in a
// loop; conflicting or missing fragments are errors.
func Reassemble(fragments []string) ([]byte, error) {
	if len(fragments) == 0 {
		return nil, errs.New(errs.CodeParseError, "no fragments to reassemble")
	}

	var (
		total    int
		checksum string
		bodies   map[int][]byte
	)
	for _, s := range fragments {
		p, err := ParseFragment(s)
		if err != nil {
			return nil, err
		}
		if bodies == nil {
			total, checksum = p.Total, p.Checksum
			bodies = make(map[int][]byte, total)
		}
		if p.Total != total || p.Checksum != checksum {
			return nil, errs.New(errs.CodeParseError, "fragment %d belongs to a different payload", p.Index)
		}
		if prev, seen := bodies[p.Index]; seen {
			if !bytes.Equal(prev, p.Body) {
				return nil, errs.New(errs.CodeParseError, "fragment %d received twice with different content", p.Index)
			}
			continue
		}
		bodies[p.Index] = p.Body
	}

	if len(bodies) != total {
		return nil, errs.New(errs.CodeParseError, "received %d of %d fragments", len(bodies), total)
	}

	var payload bytes.Buffer
	for i := 1; i <= total; i++ {
		payload.Write(bodies[i])
	}
	if Checksum(payload.Bytes()) != checksum {
		return nil, errs.New(errs.CodeParseError, "reassembled payload does not match checksum %s", checksum)
	}
	return payload.Bytes(), nil
}
