package output

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

type nested struct {
	Zeta  string         `json:"zeta"`
	Alpha map[string]int `json:"alpha"`
	Big   uint64         `json:"big"`
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	out, err := CanonicalJSON(nested{Zeta: "<z>", Alpha: map[string]int{"b": 2, "a": 1}, Big: 2_100_000_000_000_000})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":1,"b":2},"big":2100000000000000,"zeta":"<z>"}`, string(out))
}

func TestCanonicalIndent(t *testing.T) {
	out, err := CanonicalIndent(map[string]any{"b": []int{1}, "a": nil})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": null,\n  \"b\": [\n    1\n  ]\n}\n", string(out))
}

func TestSuccessEnvelope(t *testing.T) {
	env := Success(map[string]int{"count": 1}, nil)
	out, err := env.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"error":null,"result":{"count":1},"success":true,"warnings":[]}`, string(out))
	assert.Equal(t, ExitOK, env.ExitCode())
}

func TestFailureEnvelope(t *testing.T) {
	err := errs.New(errs.CodeInvalidAddress, "batch rejected with 1 error(s)").
		WithDetails("row 2 address: unrecognized address prefix")
	env := Failure(err, []types.Warning{{Code: "W001", Row: 3, Message: "duplicate"}})

	out, mErr := env.Marshal()
	require.NoError(t, mErr)
	assert.Equal(t,
		`{"error":{"code":"E001","details":["row 2 address: unrecognized address prefix"],"message":"batch rejected with 1 error(s)","name":"INVALID_ADDRESS_FORMAT"},"result":null,"success":false,"warnings":[{"code":"W001","message":"duplicate","row":3}]}`,
		string(out))
	assert.Equal(t, ExitValidation, env.ExitCode())
}

func TestFailureBody(t *testing.T) {
	body := Body(fmt.Errorf("boom"))
	assert.Equal(t, "E099", body.Code)
	assert.Equal(t, "INTERNAL", body.Name)
	assert.Equal(t, []string{}, body.Details)

	body = Body(errs.Wrap(fmt.Errorf("permission denied"), errs.CodeIO, "failed to read input"))
	assert.Equal(t, "failed to read input: permission denied", body.Message)

	body = Body(errs.AtRow(errs.CodeMemoTooLong, 4, "memo", "memo is 513 bytes"))
	assert.Equal(t, []string{"MEMO_TOO_LONG: row 4: memo: memo is 513 bytes"}, body.Details)
}

func TestEnvelopeIsByteStable(t *testing.T) {
	build := func() []byte {
		out, err := Success(map[string]any{"z": 1, "a": []string{"x"}, "m": map[string]bool{"q": true, "b": false}}, nil).Marshal()
		require.NoError(t, err)
		return out
	}
	first := build()
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, build())
	}
}

func TestExitCodes(t *testing.T) {
	cases := map[errs.Code]int{
		"":                            ExitOK,
		errs.CodeInvalidAddress:       ExitValidation,
		errs.CodeFormulaInjection:     ExitValidation,
		errs.CodePayloadTooLarge:      ExitValidation,
		errs.CodeConfig:               ExitConfig,
		errs.CodeIO:                   ExitIO,
		errs.CodeInternal:             ExitInternal,
		errs.CodeConfirmationRequired: ExitConfirmationRequired,
		errs.CodeInputBlocked:         ExitInputBlocked,
		errs.Code("E777"):             ExitInternal,
	}
	for code, want := range cases {
		assert.Equal(t, want, ExitCodeFor(code), string(code))
	}
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitInternal, ExitCode(fmt.Errorf("plain")))
	assert.Equal(t, ExitIO, ExitCode(errs.New(errs.CodeIO, "disk")))
}

func TestDecideMode(t *testing.T) {
	cases := []struct {
		env  Env
		want Mode
	}{
		{Env{JSON: true, Interactive: true, StdoutTTY: true}, ModeAgent},
		{Env{Interactive: true}, ModeOperator},
		{Env{StdoutTTY: true}, ModeOperator},
		{Env{}, ModeAgent},
		{Env{StdinTTY: true}, ModeAgent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DecideMode(tc.env), "%+v", tc.env)
	}
	assert.Equal(t, "operator", ModeOperator.String())
	assert.Equal(t, "agent", ModeAgent.String())
}

func TestTruncateAddress(t *testing.T) {
	assert.Equal(t, "u1abc", TruncateAddress("u1abc"))
	assert.Equal(t, "u1abcd...mnop", TruncateAddress("u1abcdefghijklmnop"))
	han := strings.Repeat("你", 14)
	assert.Equal(t, "u1"+strings.Repeat("你", 4)+"..."+strings.Repeat("你", 4), TruncateAddress("u1"+han))
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, " yes ": true, "n\n": false, "": false, "maybe\n": false} {
		var out bytes.Buffer
		got, err := Confirm(strings.NewReader(input), &out, "Write artifacts?")
		require.NoError(t, err)
		assert.Equal(t, want, got, "%q", input)
		assert.Equal(t, "Write artifacts? [y/N]: ", out.String())
	}
}

func TestRenderBatch(t *testing.T) {
	batch := &types.ValidatedBatch{
		Network: types.Mainnet,
		Total:   160_000_000,
		Recipients: []types.ValidatedRecipient{
			{RowNumber: 1, Kind: types.KindTransparent, Recipient: types.Recipient{Address: "t1Hsc1LR8yKnbbe3twRp88p6vFfC5t7DLbs", Amount: 150_000_000, Memo: "Invoice 42", Label: "Alice"}},
			{RowNumber: 2, Kind: types.KindSapling, Recipient: types.Recipient{Address: "zs1short", Amount: 10_000_000}},
		},
	}
	var out bytes.Buffer
	RenderBatch(&out, batch)
	s := out.String()
	assert.Contains(t, s, "t1Hsc1...DLbs")
	assert.Contains(t, s, "Invoice 42")
	assert.Contains(t, s, "1.5")
	assert.Contains(t, s, "1.6")
	assert.Contains(t, s, "sapling")
}

func TestRenderFailureAndWarnings(t *testing.T) {
	var out bytes.Buffer
	RenderFailure(&out, errs.New(errs.CodeInvalidAddress, "batch rejected").WithDetails("row 2 address: bad"))
	assert.Contains(t, out.String(), "INVALID_ADDRESS_FORMAT (E001): batch rejected")
	assert.Contains(t, out.String(), "row 2 address: bad")

	out.Reset()
	RenderWarnings(&out, nil)
	assert.Empty(t, out.String())

	RenderWarnings(&out, []types.Warning{{Code: "W002", Row: 1, Message: "dust"}})
	assert.Contains(t, out.String(), "W002")
}
