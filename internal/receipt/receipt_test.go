package receipt

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/internal/zip321"
)

var testStamp = Stamp{
	Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.FixedZone("CET", 3600)),
	BatchID:   uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"),
}

func testBatch() *types.ValidatedBatch {
	return &types.ValidatedBatch{
		Network: types.Mainnet,
		Total:   160_000_000,
		Recipients: []types.ValidatedRecipient{
			{RowNumber: 1, Kind: types.KindTransparent, Recipient: types.Recipient{
				Address: "t1Hsc1LR8yKnbbe3twRp88p6vFfC5t7DLbs", Amount: 150_000_000, Memo: "hello", Label: "Alice",
			}},
			{RowNumber: 2, Kind: types.KindTransparent, Recipient: types.Recipient{
				Address: "t3Vz22vK5z2LcKEdg16Yv4FFneEL1zg9ojd", Amount: 10_000_000,
			}},
		},
		Warnings: []types.Warning{},
	}
}

func testInput(t *testing.T) Input {
	t.Helper()
	batch := testBatch()
	req, err := zip321.Construct(batch)
	require.NoError(t, err)
	return Input{Version: "1.2.3", Batch: batch, Request: req, Segments: 1}
}

func TestGenerate(t *testing.T) {
	in := testInput(t)
	r, err := Generate(in, testStamp)
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", r.LaminarVersion)
	assert.Equal(t, "2026-03-14T08:26:53Z", r.Timestamp)
	assert.Equal(t, testStamp.BatchID, r.BatchID)
	assert.Equal(t, types.Mainnet, r.Network)
	assert.Equal(t, uint64(160_000_000), r.TotalZat)
	assert.Equal(t, "1.6", r.TotalZEC)
	assert.Equal(t, 2, r.RecipientCount)
	assert.Equal(t, in.Request.PayloadHash, r.PayloadHash)
	assert.True(t, strings.HasPrefix(r.PayloadHash, "sha256:"))
	assert.Equal(t, 1, r.Segments)
	assert.Empty(t, r.SplitPayloadHashes)

	require.Len(t, r.Recipients, 2)
	assert.Equal(t, "1.5", r.Recipients[0].AmountZEC)
	require.NotNil(t, r.Recipients[0].Memo)
	assert.Equal(t, "hello", *r.Recipients[0].Memo)
	assert.Equal(t, "Alice", *r.Recipients[0].Label)
	assert.Nil(t, r.Recipients[1].Memo)
	assert.Nil(t, r.Recipients[1].Label)
	assert.Equal(t, 2, r.Recipients[1].RowNumber)
}

func TestGenerateDoesNotMutateInput(t *testing.T) {
	in := testInput(t)
	before, err := json.Marshal(in.Request)
	require.NoError(t, err)
	batchBefore, err := json.Marshal(in.Batch)
	require.NoError(t, err)

	r, err := Generate(in, testStamp)
	require.NoError(t, err)
	*r.Recipients[0].Memo = "changed"
	r.Warnings = append(r.Warnings, types.Warning{Code: "W001"})

	after, err := json.Marshal(in.Request)
	require.NoError(t, err)
	batchAfter, err := json.Marshal(in.Batch)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.JSONEq(t, string(batchBefore), string(batchAfter))
}

func TestGenerateSplit(t *testing.T) {
	in := testInput(t)
	split, err := zip321.ConstructSplit(in.Batch)
	require.NoError(t, err)
	in.Split = split
	in.Segments = 2

	r, err := Generate(in, testStamp)
	require.NoError(t, err)
	require.Len(t, r.SplitPayloadHashes, 2)
	assert.Equal(t, split[0].PayloadHash, r.SplitPayloadHashes[0])
	assert.Equal(t, split[1].PayloadHash, r.SplitPayloadHashes[1])
	assert.NotEqual(t, r.PayloadHash, r.SplitPayloadHashes[0])
}

func TestGenerateRejectsInconsistentInput(t *testing.T) {
	cases := map[string]func(*Input, *Stamp){
		"no batch":         func(in *Input, _ *Stamp) { in.Batch = nil },
		"no request":       func(in *Input, _ *Stamp) { in.Request = nil },
		"zero timestamp":   func(_ *Input, s *Stamp) { s.Timestamp = time.Time{} },
		"nil batch id":     func(_ *Input, s *Stamp) { s.BatchID = uuid.Nil },
		"network mismatch": func(in *Input, _ *Stamp) { in.Batch.Network = types.Testnet },
		"total mismatch":   func(in *Input, _ *Stamp) { in.Batch.Total++ },
		"short split":      func(in *Input, _ *Stamp) { in.Split = []*types.PaymentRequest{in.Request} },
		"no segments":      func(in *Input, _ *Stamp) { in.Segments = 0 },
		"tampered uri":     func(in *Input, _ *Stamp) { in.Request.URI += "&memo=eA" },
		"tampered split": func(in *Input, _ *Stamp) {
			split, _ := zip321.ConstructSplit(in.Batch)
			split[1].PayloadHash = split[0].PayloadHash
			in.Split = split
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in, stamp := testInput(t), testStamp
			mutate(&in, &stamp)
			_, err := Generate(in, stamp)
			assert.Equal(t, errs.CodeInternal, errs.CodeOf(err))
		})
	}
}

func TestMarshalIsSortedAndStable(t *testing.T) {
	r, err := Generate(testInput(t), testStamp)
	require.NoError(t, err)

	first, err := Marshal(r)
	require.NoError(t, err)
	second, err := Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	text := string(first)
	assert.Less(t, strings.Index(text, `"batch_id"`), strings.Index(text, `"laminar_version"`))
	assert.Less(t, strings.Index(text, `"recipients"`), strings.Index(text, `"zip321_payload_hash"`))
	assert.Contains(t, text, `"memo": null`)
	assert.Contains(t, text, `"total_zatoshis": 160000000`)
	assert.True(t, strings.HasSuffix(text, "}\n"))
}

func TestDefaultFilename(t *testing.T) {
	r, err := Generate(testInput(t), testStamp)
	require.NoError(t, err)
	assert.Equal(t, "laminar-receipt-2026-03-14-0f8fad5b.json", DefaultFilename(r))
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, filepath.Join(t.TempDir(), "archive", "receipts.db"))
	require.NoError(t, err)
	defer store.Close()

	r, err := Generate(testInput(t), testStamp)
	require.NoError(t, err)

	inserted, err := store.Save(ctx, r)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Save(ctx, r)
	require.NoError(t, err)
	assert.False(t, inserted)

	later := testStamp
	later.Timestamp = later.Timestamp.Add(time.Hour)
	later.BatchID = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	r2, err := Generate(testInput(t), later)
	require.NoError(t, err)
	_, err = store.Save(ctx, r2)
	require.NoError(t, err)

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, later.BatchID, list[0].BatchID)
	assert.Equal(t, uint64(160_000_000), list[1].TotalZat)
	assert.Equal(t, 2, list[1].RecipientCount)

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := store.Get(ctx, testStamp.BatchID)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = store.Get(ctx, uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	assert.Equal(t, errs.CodeIO, errs.CodeOf(err))
}
