package kv

import (
	"github.com/IvanBrykalov/kvcache/kverr"
	"github.com/IvanBrykalov/kvcache/store"
)

// Size limits enforced before any lock is taken.
const (
	MaxKeySize   = store.MaxKeySize
	MaxValueSize = store.MaxValueSize
)

// ValidateKey checks the key size bounds.
func ValidateKey(key string) error {
	switch {
	case len(key) == 0:
		return kverr.E(kverr.KeyUndersized, "kv.validate")
	case len(key) > MaxKeySize:
		return kverr.E(kverr.KeyOversized, "kv.validate")
	}
	return nil
}

// ValidateValue checks the value size bounds.
func ValidateValue(value string) error {
	switch {
	case len(value) == 0:
		return kverr.E(kverr.ValueUndersized, "kv.validate")
	case len(value) > MaxValueSize:
		return kverr.E(kverr.ValueOversized, "kv.validate")
	}
	return nil
}
