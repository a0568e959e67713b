// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package chain

import (
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// ss58Preamble is mixed into the checksum of every SS58 address.
var ss58Preamble = []byte("SS58PRE")

var (
	errBadAddressLength = errors.New("ss58: bad address length")
	errBadChecksum      = errors.New("ss58: checksum mismatch")
	errBadPrefix        = errors.New("ss58: prefix out of supported range")
)

// DecodeAddress decodes an SS58 address into its network prefix and
// 32-byte account id. Only single-byte prefixes (0..63) are in use on
// the networks the programme runs against.
func DecodeAddress(addr string) (uint16, []byte, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return 0, nil, errors.Wrap(err, "ss58: base58 decode")
	}
	// prefix byte + 32 byte account id + 2 byte checksum
	if len(raw) != 35 {
		return 0, nil, errBadAddressLength
	}
	prefix := uint16(raw[0])
	if prefix >= 64 {
		return 0, nil, errBadPrefix
	}
	body := raw[:33]
	sum := checksum(body)
	if raw[33] != sum[0] || raw[34] != sum[1] {
		return 0, nil, errBadChecksum
	}
	pub := make([]byte, 32)
	copy(pub, raw[1:33])
	return prefix, pub, nil
}

// EncodeAddress encodes a 32-byte account id under the given network
// prefix.
func EncodeAddress(pub []byte, prefix uint16) (string, error) {
	if len(pub) != 32 {
		return "", errBadAddressLength
	}
	if prefix >= 64 {
		return "", errBadPrefix
	}
	body := make([]byte, 0, 35)
	body = append(body, byte(prefix))
	body = append(body, pub...)
	sum := checksum(body)
	body = append(body, sum[0], sum[1])
	return base58.Encode(body), nil
}

// FormatAddress re-encodes an address under the given network prefix,
// canonicalizing configured stashes to the chain the service runs on.
func FormatAddress(addr string, prefix uint16) (string, error) {
	_, pub, err := DecodeAddress(addr)
	if err != nil {
		return "", err
	}
	return EncodeAddress(pub, prefix)
}

func checksum(body []byte) [2]byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Preamble)
	h.Write(body)
	digest := h.Sum(nil)
	return [2]byte{digest[0], digest[1]}
}
