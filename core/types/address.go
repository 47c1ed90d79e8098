package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseAddress decodes a 20-byte hex address, with or without a 0x prefix.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", value, err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: want %d bytes, got %d", value, len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// ParseHash decodes a 32-byte hex hash, with or without a 0x prefix.
func ParseHash(value string) ([32]byte, error) {
	var hash [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return hash, fmt.Errorf("invalid hash %q: %w", value, err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("invalid hash %q: want %d bytes, got %d", value, len(hash), len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}
