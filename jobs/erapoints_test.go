// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/validorg/otv-backend/chain"
	"github.com/validorg/otv-backend/chain/chaintest"
	"github.com/validorg/otv-backend/store/storetest"
)

func TestEraPointsJobEarlyChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := storetest.New(testNow)
	adapter := chaintest.New()
	adapter.ActiveEra = 10

	runner := testRunner(db, adapter, nil, nil, nil, nil)
	require.NoError(t, runner.EraPointsJob(ctx))

	// An active era below the window terminates at era zero; every
	// fetched era stays within [0, activeEra].
	for era := range adapter.EraPointsCalls {
		assert.LessOrEqual(t, era, uint64(10))
	}
	assert.Len(t, adapter.EraPointsCalls, 11, "eras 0..9 plus the active era")
}

func TestEraPointsJobIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := storetest.New(testNow)
	adapter := chaintest.New()
	adapter.ActiveEra = 90
	for era := uint64(6); era <= 90; era++ {
		adapter.EraPoints[era] = &chain.EraPointsInfo{
			Era:   era,
			Total: 80000,
			Validators: []chain.ValidatorEraPoints{
				{Address: "val-a", EraPoints: 40000},
				{Address: "val-b", EraPoints: 40000},
			},
		}
	}

	runner := testRunner(db, adapter, nil, nil, nil, nil)
	require.NoError(t, runner.EraPointsJob(ctx))

	totalWrites := db.WriteCount("SetTotalEraPoints")
	pointWrites := db.WriteCount("SetEraPoints")
	assert.Equal(t, 85, totalWrites, "84 trailing eras plus the active era")
	assert.Equal(t, 170, pointWrites)

	require.NoError(t, runner.EraPointsJob(ctx))
	assert.Equal(t, totalWrites, db.WriteCount("SetTotalEraPoints"), "second run over a filled window writes nothing")
	assert.Equal(t, pointWrites, db.WriteCount("SetEraPoints"))
}

func TestEraPointsJobUpgradesPartialRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := storetest.New(testNow)
	adapter := chaintest.New()
	adapter.ActiveEra = 3
	adapter.EraPoints[1] = &chain.EraPointsInfo{
		Era:   1,
		Total: 75000,
		Validators: []chain.ValidatorEraPoints{
			{Address: "val-a", EraPoints: 75000},
		},
	}

	// A partial row (under the filled gate) gets refreshed.
	require.NoError(t, db.SetTotalEraPoints(ctx, 1, 100, nil))

	runner := testRunner(db, adapter, nil, nil, nil, nil)
	require.NoError(t, runner.EraPointsJob(ctx))

	row, err := db.GetTotalEraPoints(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, uint64(75000), row.TotalEraPoints)
	require.NotNil(t, row.Median)
	assert.Equal(t, 75000.0, *row.Median)
}
