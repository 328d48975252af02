package webhooksig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "whsec_test"
	testTimestamp = "1718000000"
)

var testPayload = []byte(`{"error":0,"data":{"id":8812,"amount":50000,"description":"Chuyen tien MEOSTORE-1","when":"2024-06-10 12:00:00"}}`)

func signedHeader(t *testing.T, payload []byte, ts, secret string) string {
	t.Helper()

	header, err := SignatureHeader(payload, ts, secret)
	require.NoError(t, err)

	return header
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  Header
	}{
		{"canonical", "t=123,v1=abc", Header{Timestamp: "123", Digest: "abc"}},
		{"spaces", " t = 123 , v1 = abc ", Header{Timestamp: "123", Digest: "abc"}},
		{"reordered", "v1=abc,t=123", Header{Timestamp: "123", Digest: "abc"}},
		{"extra keys", "t=123,v0=old,v1=abc", Header{Timestamp: "123", Digest: "abc"}},
		{"first wins", "t=1,t=2,v1=a,v1=b", Header{Timestamp: "1", Digest: "a"}},
		{"empty", "", Header{}},
		{"garbage", "garbage", Header{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHeader(tt.value))
		})
	}
}

func TestVerify_Valid(t *testing.T) {
	header := signedHeader(t, testPayload, testTimestamp, testSecret)

	assert.True(t, Verify(testPayload, header, testSecret))
	assert.Equal(t, ResultValid, Check(testPayload, header, testSecret))
}

func TestVerify_Deterministic(t *testing.T) {
	header := signedHeader(t, testPayload, testTimestamp, testSecret)

	for i := 0; i < 10; i++ {
		assert.True(t, Verify(testPayload, header, testSecret))
	}

	bad := "t=" + testTimestamp + ",v1=" + strings.Repeat("0", 128)
	for i := 0; i < 10; i++ {
		assert.False(t, Verify(testPayload, bad, testSecret))
	}
}

func TestVerify_UppercaseDigestAccepted(t *testing.T) {
	sig, err := Sign(testPayload, testTimestamp, testSecret)
	require.NoError(t, err)

	header := "t=" + testTimestamp + ",v1=" + strings.ToUpper(sig)

	assert.True(t, Verify(testPayload, header, testSecret))
}

func TestVerify_KeyOrderDoesNotMatter(t *testing.T) {
	header := signedHeader(t, testPayload, testTimestamp, testSecret)
	reordered := []byte(`{"data":{"when":"2024-06-10 12:00:00","description":"Chuyen tien MEOSTORE-1","amount":50000,"id":8812},"error":0}`)

	assert.True(t, Verify(reordered, header, testSecret))
}

func TestVerify_MutatedPayloadFails(t *testing.T) {
	header := signedHeader(t, testPayload, testTimestamp, testSecret)

	mutations := map[string][]byte{
		"id":          []byte(strings.Replace(string(testPayload), "8812", "8813", 1)),
		"amount":      []byte(strings.Replace(string(testPayload), "50000", "50001", 1)),
		"description": []byte(strings.Replace(string(testPayload), "MEOSTORE-1", "MEOSTORE-2", 1)),
		"key":         []byte(strings.Replace(string(testPayload), `"when"`, `"whem"`, 1)),
	}

	for name, payload := range mutations {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, ResultDigestMismatch, Check(payload, header, testSecret))
		})
	}
}

func TestVerify_EverySingleByteInDataMatters(t *testing.T) {
	header := signedHeader(t, testPayload, testTimestamp, testSecret)

	start := strings.Index(string(testPayload), `"data":{`) + len(`"data":{`)
	end := strings.LastIndex(string(testPayload), `}}`)

	for i := start; i < end; i++ {
		mutated := append([]byte(nil), testPayload...)
		mutated[i] ^= 0x01

		assert.False(t, Verify(mutated, header, testSecret), "byte %d (%q) mutation verified", i, testPayload[i])
	}
}

func TestVerify_MutatedTimestampFails(t *testing.T) {
	sig, err := Sign(testPayload, testTimestamp, testSecret)
	require.NoError(t, err)

	header := "t=1718000001,v1=" + sig

	assert.False(t, Verify(testPayload, header, testSecret))
}

func TestVerify_MutatedSecretFails(t *testing.T) {
	header := signedHeader(t, testPayload, testTimestamp, testSecret)

	assert.False(t, Verify(testPayload, header, testSecret+"x"))
	assert.False(t, Verify(testPayload, header, "whsec_tesT"))
	assert.False(t, Verify(testPayload, header, ""))
}

func TestCheck_FailureReasons(t *testing.T) {
	valid := signedHeader(t, testPayload, testTimestamp, testSecret)
	sig := strings.SplitN(valid, "v1=", 2)[1]

	tests := []struct {
		name    string
		payload []byte
		header  string
		want    Result
	}{
		{"missing header", testPayload, "", ResultMissingHeader},
		{"blank header", testPayload, "   ", ResultMissingHeader},
		{"missing t", testPayload, "v1=" + sig, ResultMissingTimestamp},
		{"missing v1", testPayload, "t=" + testTimestamp, ResultMissingDigest},
		{"malformed payload", []byte(`{"error":0,"data":`), valid, ResultMalformedPayload},
		{"missing data", []byte(`{"error":0}`), valid, ResultMissingData},
		{"data not object", []byte(`{"error":0,"data":[]}`), valid, ResultMissingData},
		{"trailing brace", append(append([]byte{}, testPayload...), '}'), valid, ResultMalformedPayload},
		{"case variant data", []byte(strings.TrimSuffix(string(testPayload), "}") + `,"DATA":{"id":1,"amount":5000000,"description":"MEOSTORE-999"}}`), valid, ResultMalformedPayload},
		{"mismatch", testPayload, "t=" + testTimestamp + ",v1=deadbeef", ResultDigestMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.payload, tt.header, testSecret))
			assert.False(t, Verify(tt.payload, tt.header, testSecret))
		})
	}
}

func TestVerifier(t *testing.T) {
	header := signedHeader(t, testPayload, testTimestamp, testSecret)

	v := NewVerifier(testSecret)
	assert.False(t, v.Skips())
	assert.True(t, v.Verify(testPayload, header))
	assert.False(t, v.Verify(testPayload, ""))

	insecure := NewInsecureVerifier()
	assert.True(t, insecure.Skips())
	assert.True(t, insecure.Verify([]byte("garbage"), ""))
	assert.Equal(t, ResultSkipped, insecure.Check(nil, ""))
}
