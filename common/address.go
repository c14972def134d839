package common

import (
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"golang.org/x/xerrors"
)

// ParseAddress accepts a 0x-prefixed 20 byte hex address. All-lower and
// all-upper inputs are accepted as is, mixed case must carry a valid EIP-55
// checksum.
func ParseAddress(s string) (ethcommon.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return ethcommon.Address{}, xerrors.Errorf("%q: missing 0x prefix: %w", s, ErrInvalidAddress)
	}
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, xerrors.Errorf("%q: %w", s, ErrInvalidAddress)
	}

	addr := ethcommon.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex()[2:] != body {
			return ethcommon.Address{}, xerrors.Errorf("%q: bad checksum: %w", s, ErrInvalidAddress)
		}
	}
	return addr, nil
}

// CanonicalAddress returns the checksum form of s.
func CanonicalAddress(s string) (string, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// CanonicalAddresses canonicalizes every entry and drops repeats, keeping the
// first occurrence.
func CanonicalAddresses(list []string) ([]string, error) {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		addr, err := CanonicalAddress(s)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

// AddressLess orders canonical addresses case-insensitively. The verifying
// contract recomputes this order.
func AddressLess(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
