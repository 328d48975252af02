package webhooksig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_SortsKeysRecursively(t *testing.T) {
	raw := []byte(`{ "b": 1, "a": { "z": [ {"y": 2, "x": 1}, 3 ], "c": "d" } }`)

	got, err := Canonicalize(raw)

	require.NoError(t, err)
	assert.Equal(t, `{"a":{"c":"d","z":[{"x":1,"y":2},3]},"b":1}`, string(got))
}

func TestCanonicalize_Idempotent(t *testing.T) {
	raw := []byte(`{"id":42,"amount":50000,"description":"Chuyen tien MEOSTORE-1","meta":{"k":[1,2,{"b":null,"a":true}]}}`)

	once, err := Canonicalize(raw)
	require.NoError(t, err)

	twice, err := Canonicalize(once)
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
}

func TestCanonicalize_PermutationInvariant(t *testing.T) {
	permutations := []string{
		`{"id":1,"amount":50000,"description":"x"}`,
		`{"amount":50000,"description":"x","id":1}`,
		`{"description":"x","id":1,"amount":50000}`,
		"{\n  \"description\" : \"x\",\n  \"amount\" : 50000,\n  \"id\" : 1\n}",
	}

	expected, err := Canonicalize([]byte(permutations[0]))
	require.NoError(t, err)

	for _, p := range permutations[1:] {
		t.Run(p, func(t *testing.T) {
			got, err := Canonicalize([]byte(p))
			require.NoError(t, err)
			assert.Equal(t, string(expected), string(got))
		})
	}
}

func TestCanonicalize_PreservesNumberLiterals(t *testing.T) {
	got, err := Canonicalize([]byte(`{"amount":50000.50,"big":12345678901234567890}`))

	require.NoError(t, err)
	assert.Equal(t, `{"amount":50000.50,"big":12345678901234567890}`, string(got))
}

func TestCanonicalize_NoHTMLEscaping(t *testing.T) {
	got, err := Canonicalize([]byte(`{"description":"a<b>&c \"q\" Chuyển tiền"}`))

	require.NoError(t, err)
	assert.Equal(t, `{"description":"a<b>&c \"q\" Chuyển tiền"}`, string(got))
}

func TestCanonicalize_Malformed(t *testing.T) {
	tests := []string{
		``,
		`{"a":`,
		`{"a":1} {"b":2}`,
		`{"a":1}}`,
		`[1]]`,
		`not json`,
	}

	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			_, err := Canonicalize([]byte(tt))
			assert.Error(t, err)
		})
	}
}

func TestExtractObject(t *testing.T) {
	data, err := ExtractObject([]byte(`{"error":0,"data":{"id":1}}`), "data")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(data))

	_, err = ExtractObject([]byte(`{"error":0}`), "data")
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = ExtractObject([]byte(`{"data":[1,2]}`), "data")
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = ExtractObject([]byte(`[1]`), "data")
	assert.Error(t, err)
}

func TestEnvelope(t *testing.T) {
	fields, err := Envelope([]byte(` {"error":0, "data":{"id":1}} `))
	require.NoError(t, err)
	assert.Equal(t, `0`, string(fields["error"]))
	assert.Equal(t, `{"id":1}`, string(fields["data"]))

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"case variant", `{"data":{},"DATA":{}}`, ErrDuplicateKey},
		{"mixed case variant", `{"Data":{},"dAtA":{}}`, ErrDuplicateKey},
		{"exact duplicate", `{"data":{},"data":{}}`, ErrDuplicateKey},
		{"kelvin sign folds to k", "{\"k\":1,\"\u212a\":2}", ErrDuplicateKey},
		{"trailing brace", `{"data":{}}}`, ErrTrailingData},
		{"second value", `{"data":{}} {}`, ErrTrailingData},
		{"not an object", `[1]`, ErrNotObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Envelope([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
