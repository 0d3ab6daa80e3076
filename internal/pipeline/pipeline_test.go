package pipeline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/laminar/internal/config"
	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/ingest"
	"github.com/ginjaninja78/laminar/internal/output"
	"github.com/ginjaninja78/laminar/internal/receipt"
	"github.com/ginjaninja78/laminar/internal/types"
)

const taddr = "t1Hsc1LR8yKnbbe3twRp88p6vFfC5t7DLbs"

func csvInput(lines ...string) Input {
	return Input{
		Path:    "batch.csv",
		Data:    []byte(strings.Join(lines, "\n") + "\n"),
		Format:  ingest.FormatCSV,
		Network: types.Mainnet,
	}
}

// largeBatch returns n unified-address recipients whose combined URI is far
// over the multi-frame budget.
func largeBatch(t *testing.T, n int) Input {
	lines := []string{"address,amount"}
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf("%s,0.%03d", unifiedAddress(t, i), i%999+1))
	}
	return csvInput(lines...)
}

// unifiedAddress encodes a distinct 124-byte mainnet unified address.
func unifiedAddress(t *testing.T, seed int) string {
	t.Helper()
	raw := bytes.Repeat([]byte{0x5a}, 120)
	raw = binary.BigEndian.AppendUint32(raw, uint32(seed))
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	require.NoError(t, err)
	addr, err := bech32.EncodeM("u", data)
	require.NoError(t, err)
	return addr
}

func newPipeline() *Pipeline {
	return New(config.Default(), WithVersion("test"))
}

func TestValidateScenario(t *testing.T) {
	res, err := newPipeline().Validate(csvInput("address,amount,memo", taddr+",0.1,Invoice 42"))
	require.NoError(t, err)
	require.NotNil(t, res.Batch)

	assert.Equal(t, ingest.FormatCSV, res.Format)
	assert.Equal(t, 1, res.RecipientCount)
	assert.Equal(t, uint64(10_000_000), res.Batch.Recipients[0].Recipient.Amount)
	assert.Equal(t, "Invoice 42", res.Batch.Recipients[0].Recipient.Memo)
	assert.Equal(t, "0.1", res.TotalZEC)
	assert.Empty(t, res.Warnings)
}

func TestValidateRejectsWholeBatch(t *testing.T) {
	res, err := newPipeline().Validate(csvInput(
		"address,amount,memo",
		taddr+",0.1,Invoice 42",
		"x9notanaddress,0.2,Invoice 43",
	))
	require.Error(t, err)
	assert.Equal(t, errs.CodeInvalidAddress, errs.CodeOf(err))

	var coded *errs.Error
	require.ErrorAs(t, err, &coded)
	require.Len(t, coded.Details, 1)
	assert.Contains(t, coded.Details[0], "row 2")

	require.NotNil(t, res)
	assert.Nil(t, res.Batch)
	assert.Zero(t, res.RecipientCount)
}

func TestValidateReportsWarningsOnFailure(t *testing.T) {
	res, err := newPipeline().Validate(csvInput(
		"address,amount",
		taddr+",1",
		taddr+",2",
		"bogus,3",
	))
	require.Error(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, string(errs.CodeDuplicateAddress), res.Warnings[0].Code)
	assert.Equal(t, 2, res.Warnings[0].Row)
}

func TestValidateStrictWarnings(t *testing.T) {
	cfg := config.Default()
	cfg.StrictWarnings = true
	_, err := New(cfg).Validate(csvInput("address,amount", taddr+",1", taddr+",2"))
	assert.Equal(t, errs.CodeDuplicateAddress, errs.CodeOf(err))
}

func TestValidateParseFailure(t *testing.T) {
	res, err := newPipeline().Validate(csvInput("address,amount", taddr+",=1+1"))
	assert.Equal(t, errs.CodeFormulaInjection, errs.CodeOf(err))
	assert.NotNil(t, res)

	res, err = newPipeline().Validate(Input{Path: filepath.Join(t.TempDir(), "missing.csv"), Network: types.Mainnet})
	assert.Equal(t, errs.CodeIO, errs.CodeOf(err))
	assert.Nil(t, res)
}

func TestValidateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, os.WriteFile(path, []byte("recipient,zats\n"+taddr+",150000000\n"), 0o644))

	res, err := newPipeline().Validate(Input{Path: path})
	require.NoError(t, err)
	assert.Equal(t, types.Mainnet, res.Network)
	assert.Equal(t, "1.5", res.TotalZEC)
}

func TestConstruct(t *testing.T) {
	res, err := newPipeline().Construct(csvInput("address,amount,memo", taddr+",1.5,hello"), false)
	require.NoError(t, err)
	assert.Equal(t, "zcash:"+taddr+"?amount=1.5&memo=aGVsbG8=", res.Request.URI)
	assert.Empty(t, res.Split)
	assert.True(t, res.Deeplink.Fits)
	assert.Equal(t, 1, res.Deeplink.Segments)
	assert.Equal(t, 7200, res.Deeplink.BudgetBytes)
}

func TestConstructSplit(t *testing.T) {
	res, err := newPipeline().Construct(csvInput("address,amount", taddr+",1", "t3Vz22vK5z2LcKEdg16Yv4FFneEL1zg9ojd,2"), true)
	require.NoError(t, err)
	require.Len(t, res.Split, 2)
	assert.Equal(t, 1, res.Split[0].Recipients[0].RowNumber)
	assert.Equal(t, 2, res.Split[1].Recipients[0].RowNumber)
}

func TestGenerateIsDeterministic(t *testing.T) {
	in := csvInput("address,amount,memo,label",
		taddr+",0.1,Invoice 42,Alice",
		"t3Vz22vK5z2LcKEdg16Yv4FFneEL1zg9ojd,2.5,,Bob",
	)

	run := func() []byte {
		res, err := newPipeline().Generate(in, GenerateOptions{})
		require.NoError(t, err)
		out, err := output.Success(res, res.Warnings).Marshal()
		require.NoError(t, err)
		return out
	}
	first := run()
	assert.Equal(t, first, run())
	assert.Contains(t, string(first), `"zip321_payload_hash":"sha256:`)
}

func TestGenerateDefaultsStampFromRequest(t *testing.T) {
	res, err := newPipeline().Generate(csvInput("address,amount", taddr+",1"), GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, res.Request.ID, res.Receipt.BatchID)
	assert.Equal(t, res.Request.CreatedAt.Format(receipt.TimestampLayout), res.Receipt.Timestamp)
	assert.Equal(t, res.Request.PayloadHash, res.Receipt.PayloadHash)
	assert.Equal(t, "test", res.Receipt.LaminarVersion)
	assert.Equal(t, types.ModeSingleFrame, res.Encoded.Mode)
	assert.Equal(t, 1, res.Receipt.Segments)
}

func TestGenerateUsesInjectedStamp(t *testing.T) {
	stamp := receipt.Stamp{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		BatchID:   uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7"),
	}
	res, err := newPipeline().Generate(csvInput("address,amount", taddr+",1"), GenerateOptions{Stamp: stamp})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T03:04:05Z", res.Receipt.Timestamp)
	assert.Equal(t, stamp.BatchID, res.Receipt.BatchID)
}

func TestValidateNamedDelimiter(t *testing.T) {
	cfg := config.Default()
	cfg.Input.Delimiter = "tab"
	res, err := New(cfg, WithVersion("test")).Validate(csvInput("address\tamount", taddr+"\t0.25"))
	require.NoError(t, err)
	assert.Equal(t, "0.25", res.TotalZEC)
}

func TestConstructDeeplinkFollowsBudget(t *testing.T) {
	cfg := config.Default()
	cfg.Budgets.DeeplinkBytes = 100
	in := csvInput("address,amount", taddr+",1", "t3Vz22vK5z2LcKEdg16Yv4FFneEL1zg9ojd,2")

	res, err := New(cfg, WithVersion("test")).Construct(in, false)
	require.NoError(t, err)
	assert.Greater(t, res.Request.PayloadBytes, 100)
	assert.False(t, res.Deeplink.Fits)
	assert.Equal(t, 2, res.Deeplink.Segments)
}

func TestGeneratePayloadTooLarge(t *testing.T) {
	res, err := newPipeline().Generate(largeBatch(t, 150), GenerateOptions{})
	assert.Equal(t, errs.CodePayloadTooLarge, errs.CodeOf(err))
	require.NotNil(t, res)
	assert.Nil(t, res.Receipt)
}

func TestGenerateSplitMode(t *testing.T) {
	res, err := newPipeline().Generate(largeBatch(t, 150), GenerateOptions{Split: true})
	require.NoError(t, err)

	assert.Nil(t, res.Encoded)
	require.Len(t, res.SplitEncoded, 150)
	require.Len(t, res.Outputs(), 150)
	for _, enc := range res.SplitEncoded {
		assert.Equal(t, types.ModeSingleFrame, enc.Mode)
	}
	assert.Equal(t, 150, res.Receipt.Segments)
	assert.Len(t, res.Receipt.SplitPayloadHashes, 150)
	assert.Equal(t, 150, res.Receipt.RecipientCount)
	assert.False(t, res.Deeplink.Fits)
	assert.Greater(t, res.Deeplink.Segments, 1)
}

func TestGenerateMultiFrame(t *testing.T) {
	res, err := newPipeline().Generate(largeBatch(t, 20), GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.ModeMultiFrame, res.Encoded.Mode)
	assert.Equal(t, res.Encoded.TotalFrames, res.Receipt.Segments)
	assert.Equal(t, 100, res.Encoded.FrameIntervalMS)
}

func TestGenerateRendersPNG(t *testing.T) {
	res, err := newPipeline().Generate(csvInput("address,amount", taddr+",1"), GenerateOptions{RenderPNG: true})
	require.NoError(t, err)
	require.Len(t, res.Encoded.Frames, 1)
	assert.True(t, strings.HasPrefix(string(res.Encoded.Frames[0].PNG), "\x89PNG"))
}

func TestConcurrentBatches(t *testing.T) {
	p := newPipeline()
	inputs := []Input{
		csvInput("address,amount", taddr+",1"),
		csvInput("address,amount", taddr+",2"),
		largeBatch(t, 20),
	}

	want := make([]string, len(inputs))
	for i, in := range inputs {
		res, err := p.Generate(in, GenerateOptions{})
		require.NoError(t, err)
		want[i] = res.Request.PayloadHash
	}

	var wg sync.WaitGroup
	got := make([]string, len(inputs)*4)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.Generate(inputs[i%len(inputs)], GenerateOptions{})
			if err == nil {
				got[i] = res.Request.PayloadHash
			}
		}(i)
	}
	wg.Wait()
	for i := range got {
		assert.Equal(t, want[i%len(inputs)], got[i])
	}
}
