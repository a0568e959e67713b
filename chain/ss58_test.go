// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package chain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testAccountID() []byte {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i + 1)
	}
	return pub
}

func TestAddressRoundTrip(t *testing.T) {
	t.Parallel()
	pub := testAccountID()

	for _, prefix := range []uint16{PolkadotPrefix, KusamaPrefix, TestnetPrefix} {
		addr, err := EncodeAddress(pub, prefix)
		require.NoError(t, err)

		gotPrefix, gotPub, err := DecodeAddress(addr)
		require.NoError(t, err)
		require.Equal(t, prefix, gotPrefix)
		require.True(t, bytes.Equal(pub, gotPub))
	}
}

func TestFormatAddressReprefix(t *testing.T) {
	t.Parallel()
	pub := testAccountID()

	polkadot, err := EncodeAddress(pub, PolkadotPrefix)
	require.NoError(t, err)

	kusama, err := FormatAddress(polkadot, KusamaPrefix)
	require.NoError(t, err)
	require.NotEqual(t, polkadot, kusama)

	prefix, gotPub, err := DecodeAddress(kusama)
	require.NoError(t, err)
	require.Equal(t, KusamaPrefix, prefix)
	require.True(t, bytes.Equal(pub, gotPub))
}

func TestDecodeAddressRejectsTampering(t *testing.T) {
	t.Parallel()
	addr, err := EncodeAddress(testAccountID(), KusamaPrefix)
	require.NoError(t, err)

	// Flip one character; either base58 decoding or the checksum
	// must reject the result.
	tampered := []byte(addr)
	if tampered[4] == '2' {
		tampered[4] = '3'
	} else {
		tampered[4] = '2'
	}
	_, _, err = DecodeAddress(string(tampered))
	require.Error(t, err)
}

func TestEncodeAddressBadInput(t *testing.T) {
	t.Parallel()
	_, err := EncodeAddress([]byte{1, 2, 3}, KusamaPrefix)
	require.Error(t, err)

	_, err = EncodeAddress(testAccountID(), 64)
	require.Error(t, err)
}
