package inscription

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleParseRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		asm    *JSONAssembler
		op     string
		fields map[string]string
	}{
		{"mint with nonce", NewJSONAssembler("eth", "ierc-20", PrefixJSON, true), OpMint,
			map[string]string{"tick": "TEST", "amt": "100"}},
		{"mint plain prefix", NewJSONAssembler("eth", "erc-20", PrefixPlain, false), OpMint,
			map[string]string{"tick": "eths", "amt": "1000"}},
		{"transfer", NewJSONAssembler("ton", "ton-20", PrefixJSON, false), OpTransfer,
			map[string]string{"tick": "nano", "amt": "12.5", "to": "EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N"}},
		{"deploy", NewJSONAssembler("ton", "gram-20", PrefixJSON, false), OpDeploy,
			map[string]string{"tick": "gram", "max": "21000000", "lim": "100"}},
		{"quoted ticker", NewJSONAssembler("eth", "p-20", PrefixJSON, true), OpMint,
			map[string]string{"tick": `a"b`, "amt": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.asm.Assemble(tt.op, tt.fields)
			require.NoError(t, err)

			d, err := tt.asm.Parse(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.op, d.Op)
			assert.Equal(t, tt.fields, d.Fields)
			assert.Equal(t, tt.asm.Protocol(), d.Protocol)
			if tt.asm.UsesNonce() {
				assert.NotEmpty(t, d.Nonce)
			} else {
				assert.Empty(t, d.Nonce)
			}
		})
	}
}

func TestAssembleCanonicalOrder(t *testing.T) {
	asm := NewJSONAssembler("eth", "ierc-20", PrefixJSON, true)
	payload, err := asm.Assemble(OpMint, map[string]string{"amt": "100", "tick": "TEST"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(payload, `data:application/json,{"p":"ierc-20","op":"mint","tick":"TEST","amt":"100","nonce":"`))
	assert.True(t, strings.HasSuffix(payload, `"}`))
}

func TestAssembleRejectsBadFields(t *testing.T) {
	asm := NewJSONAssembler("eth", "ierc-20", PrefixJSON, true)

	tests := []struct {
		name   string
		op     string
		fields map[string]string
	}{
		{"unknown op", "burn", map[string]string{"tick": "TEST", "amt": "1"}},
		{"missing amt", OpMint, map[string]string{"tick": "TEST"}},
		{"extra field", OpMint, map[string]string{"tick": "TEST", "amt": "1", "memo": "x"}},
		{"wrong key", OpMint, map[string]string{"tick": "TEST", "amount": "1"}},
		{"numeric ticker", OpMint, map[string]string{"tick": "1234", "amt": "1"}},
		{"long ticker", OpMint, map[string]string{"tick": strings.Repeat("x", 33), "amt": "1"}},
		{"empty ticker", OpMint, map[string]string{"tick": " ", "amt": "1"}},
		{"zero amount", OpMint, map[string]string{"tick": "TEST", "amt": "0"}},
		{"negative amount", OpMint, map[string]string{"tick": "TEST", "amt": "-5"}},
		{"text amount", OpMint, map[string]string{"tick": "TEST", "amt": "lots"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := asm.Assemble(tt.op, tt.fields)
			require.Error(t, err)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve), "expected ValidationError, got %T", err)
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	asm := NewJSONAssembler("eth", "ierc-20", PrefixJSON, true)

	tests := []struct {
		name    string
		payload string
	}{
		{"not a data uri", `{"p":"ierc-20","op":"mint","tick":"T","amt":"1","nonce":"1"}`},
		{"no object", "data:application/json,"},
		{"broken json", `data:application/json,{"p":"ierc-20",`},
		{"other protocol", `data:application/json,{"p":"erc-20","op":"mint","tick":"T","amt":"1","nonce":"1"}`},
		{"missing nonce", `data:application/json,{"p":"ierc-20","op":"mint","tick":"T","amt":"1"}`},
		{"numeric field", `data:application/json,{"p":"ierc-20","op":"mint","tick":"T","amt":1,"nonce":"1"}`},
		{"extra field", `data:application/json,{"p":"ierc-20","op":"mint","tick":"T","amt":"1","x":"y","nonce":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := asm.Parse(tt.payload)
			require.Error(t, err)
			var me *MalformedPayloadError
			assert.True(t, errors.As(err, &me), "expected MalformedPayloadError, got %T", err)
		})
	}
}

func TestParseAcceptsNumericNonce(t *testing.T) {
	asm := NewJSONAssembler("eth", "ierc-20", PrefixJSON, true)
	d, err := asm.Parse(`data:application/json,{"p":"ierc-20","op":"mint","tick":"T","amt":"1","nonce":1700000000000}`)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", d.Nonce)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry("eth", "ton")

	a, ok := r.Get("eth", "IERC-20")
	require.True(t, ok)
	assert.True(t, a.UsesNonce())

	_, ok = r.Get("ton", "ierc-20")
	assert.False(t, ok)

	p20, ok := r.Get("eth", "p-20")
	require.True(t, ok)
	assert.True(t, p20.UsesNonce())

	assert.Equal(t, []string{"erc-20", "ierc-20", "p-20"}, r.Protocols("eth"))
	assert.Equal(t, []string{"gram-20", "ton-20"}, r.Protocols("ton"))
	assert.Empty(t, r.Protocols("sol"))
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"tick", "amt"}, RequiredFields(OpMint))
	assert.Nil(t, RequiredFields("burn"))

	keys := RequiredFields(OpTransfer)
	keys[0] = "changed"
	assert.Equal(t, "tick", RequiredFields(OpTransfer)[0])
}

func TestValidateField(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{"tick", "TEST", false},
		{"tick", "123", true},
		{"tick", "   ", true},
		{"amt", "100", false},
		{"amt", "0.5", false},
		{"amt", "0", true},
		{"amt", "-3", true},
		{"amt", "ten", true},
		{"to", "0xabc", false},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := ValidateField(tt.key, tt.value)
			if tt.wantErr {
				var ve *ValidationError
				assert.ErrorAs(t, err, &ve)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
