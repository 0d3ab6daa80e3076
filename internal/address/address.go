// Package address detects the kind and network of a Zcash address and checks
// its encoding. Each kind has its own rules:
//
//   - transparent: Base58Check, 35 characters, two-byte version prefix
//   - sapling: bech32, 43-byte payload
//   - unified: bech32m, payload of at least 48 bytes
package address

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

const (
	transparentLength = 35

	// Version prefix plus the 20-byte key or script hash.
	transparentPayloadBytes = 22

	saplingPayloadBytes = 43

	// F4Jumble needs at least 48 bytes, so no shorter unified address exists.
	unifiedMinPayloadBytes = 48
)

type prefixRule struct {
	prefix  string
	kind    types.AddressKind
	network types.Network
}

// Longest prefixes first.
var prefixRules = []prefixRule{
	{"ztestsapling1", types.KindSapling, types.Testnet},
	{"utest1", types.KindUnified, types.Testnet},
	{"zs1", types.KindSapling, types.Mainnet},
	{"u1", types.KindUnified, types.Mainnet},
	{"t1", types.KindTransparent, types.Mainnet},
	{"t3", types.KindTransparent, types.Mainnet},
	{"tm", types.KindTransparent, types.Testnet},
	{"t2", types.KindTransparent, types.Testnet},
}

// transparentVersions maps the two version bytes of a transparent address
// to its network.
var transparentVersions = map[[2]byte]types.Network{
	{0x1c, 0xb8}: types.Mainnet, // t1, P2PKH
	{0x1c, 0xbd}: types.Mainnet, // t3, P2SH
	{0x1d, 0x25}: types.Testnet, // tm, P2PKH
	{0x1c, 0xba}: types.Testnet, // t2, P2SH
}

// Classify returns the address kind and the network it belongs to.
func Classify(addr string) (types.AddressKind, types.Network, error) {
	if addr == "" {
		return "", "", errs.New(errs.CodeMissingField, "address is empty")
	}
	if !isASCIIAlphanumeric(addr) {
		return "", "", errs.New(errs.CodeInvalidAddress, "address %q contains characters outside [A-Za-z0-9]", addr)
	}
	for _, rule := range prefixRules {
		if !strings.HasPrefix(addr, rule.prefix) {
			continue
		}
		var err error
		switch rule.kind {
		case types.KindTransparent:
			err = checkTransparent(addr, rule.network)
		case types.KindSapling:
			err = checkSapling(addr, rule.prefix)
		case types.KindUnified:
			err = checkUnified(addr, rule.prefix)
		}
		if err != nil {
			return "", "", err
		}
		return rule.kind, rule.network, nil
	}
	return "", "", errs.New(errs.CodeInvalidAddress, "address %q has no recognized Zcash prefix", addr)
}

// Detect classifies addr and checks that it belongs to the expected network.
func Detect(addr string, network types.Network) (types.AddressKind, error) {
	kind, detected, err := Classify(addr)
	if err != nil {
		return "", err
	}
	if detected != network {
		return "", errs.New(errs.CodeNetworkMismatch, "address %q is a %s address but batch targets %s", addr, detected, network)
	}
	return kind, nil
}

func checkTransparent(addr string, network types.Network) error {
	if len(addr) != transparentLength {
		return errs.New(errs.CodeInvalidAddress, "transparent address %q must be %d characters, got %d", addr, transparentLength, len(addr))
	}
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return errs.Wrap(err, errs.CodeInvalidAddress, fmt.Sprintf("transparent address %q is not valid Base58Check", addr))
	}
	if len(payload)+1 != transparentPayloadBytes {
		return errs.New(errs.CodeInvalidAddress, "transparent address %q decodes to %d bytes", addr, len(payload)+1)
	}
	if net, ok := transparentVersions[[2]byte{version, payload[0]}]; !ok || net != network {
		return errs.New(errs.CodeInvalidAddress, "transparent address %q has an unknown version prefix", addr)
	}
	return nil
}

func checkSapling(addr, prefix string) error {
	hrp, data, version, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return errs.Wrap(err, errs.CodeInvalidAddress, fmt.Sprintf("sapling address %q is not valid bech32", addr))
	}
	if version != bech32.Version0 || hrp+"1" != prefix {
		return errs.New(errs.CodeInvalidAddress, "sapling address %q is not valid bech32", addr)
	}
	return checkPayload(addr, "sapling", data, saplingPayloadBytes, saplingPayloadBytes)
}

func checkUnified(addr, prefix string) error {
	hrp, data, version, err := bech32.DecodeNoLimitWithVersion(addr)
	if err != nil {
		return errs.Wrap(err, errs.CodeInvalidAddress, fmt.Sprintf("unified address %q is not valid bech32m", addr))
	}
	if version != bech32.VersionM || hrp+"1" != prefix {
		return errs.New(errs.CodeInvalidAddress, "unified address %q is not valid bech32m", addr)
	}
	return checkPayload(addr, "unified", data, unifiedMinPayloadBytes, 0)
}

// checkPayload converts 5-bit groups back to bytes and checks the length.
// A max of zero means unbounded.
func checkPayload(addr, kind string, data []byte, min, max int) error {
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return errs.Wrap(err, errs.CodeInvalidAddress, fmt.Sprintf("%s address %q has a malformed payload", kind, addr))
	}
	if len(raw) < min || (max > 0 && len(raw) > max) {
		return errs.New(errs.CodeInvalidAddress, "%s address %q has a %d-byte payload", kind, addr, len(raw))
	}
	return nil
}

func isASCIIAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}
