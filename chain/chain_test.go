// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommissionToPercent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw      uint64
		expected float64
	}{
		{50000000, 5},
		{1000000000, 100},
		{100000000, 10},
		{0, 0},
		{5000000, 0.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, CommissionToPercent(tt.raw))
	}
}

func TestEraThresholds(t *testing.T) {
	t.Parallel()
	// Kusama eras last six hours; four days is sixteen eras.
	assert.Equal(t, uint64(16), UnclaimedEraThreshold(KusamaPrefix))
	assert.Equal(t, uint64(4), UnclaimedEraThreshold(PolkadotPrefix))
	assert.Equal(t, uint64(16), RewardClaimThreshold(KusamaPrefix))
	assert.Equal(t, uint64(4), RewardClaimThreshold(TestnetPrefix))
}
