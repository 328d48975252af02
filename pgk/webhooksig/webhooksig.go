// Package webhooksig verifies aggregator webhook signatures.
//
// The signature header has the form "t=<unix-ts>,v1=<hex>". The digest is
// HMAC-SHA512 over "<t>.<canonical JSON of the data object>".
package webhooksig

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	timestampKey = "t"
	digestKey    = "v1"

	// DataField is the payload field that carries the signed transaction.
	DataField = "data"
)

type Result string

const (
	ResultValid            Result = "valid"
	ResultSkipped          Result = "skipped"
	ResultMissingHeader    Result = "missing_header"
	ResultMissingTimestamp Result = "missing_timestamp"
	ResultMissingDigest    Result = "missing_digest"
	ResultMalformedPayload Result = "malformed_payload"
	ResultMissingData      Result = "missing_data"
	ResultDigestMismatch   Result = "digest_mismatch"
)

func (r Result) OK() bool {
	return r == ResultValid || r == ResultSkipped
}

// Header is a parsed signature header.
type Header struct {
	Timestamp string
	Digest    string
}

// ParseHeader reads the t and v1 fields. Unknown keys are ignored; the
// first occurrence of a key wins.
func ParseHeader(value string) Header {
	var h Header
	for _, part := range strings.Split(value, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case timestampKey:
			if h.Timestamp == "" {
				h.Timestamp = val
			}
		case digestKey:
			if h.Digest == "" {
				h.Digest = val
			}
		}
	}

	return h
}

// Sign computes the lowercase hex digest for timestamp and raw payload.
func Sign(rawPayload []byte, timestamp, secret string) (string, error) {
	data, err := ExtractObject(rawPayload, DataField)
	if err != nil {
		return "", err
	}

	canonical, err := Canonicalize(data)
	if err != nil {
		return "", err
	}

	return digest(timestamp, canonical, secret), nil
}

// SignatureHeader builds a header value accepted by Verify.
func SignatureHeader(rawPayload []byte, timestamp, secret string) (string, error) {
	sig, err := Sign(rawPayload, timestamp, secret)
	if err != nil {
		return "", err
	}

	return timestampKey + "=" + timestamp + "," + digestKey + "=" + sig, nil
}

// Check verifies the payload and reports why it failed.
func Check(rawPayload []byte, signatureHeader, secret string) Result {
	if strings.TrimSpace(signatureHeader) == "" {
		return ResultMissingHeader
	}

	h := ParseHeader(signatureHeader)
	if h.Timestamp == "" {
		return ResultMissingTimestamp
	}
	if h.Digest == "" {
		return ResultMissingDigest
	}

	if _, err := decode(rawPayload); err != nil {
		return ResultMalformedPayload
	}

	data, err := ExtractObject(rawPayload, DataField)
	switch {
	case errors.Is(err, ErrNotObject):
		return ResultMissingData
	case err != nil:
		return ResultMalformedPayload
	}

	canonical, err := Canonicalize(data)
	if err != nil {
		return ResultMalformedPayload
	}

	expected := digest(h.Timestamp, canonical, secret)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(h.Digest))) {
		return ResultDigestMismatch
	}

	return ResultValid
}

// Verify reports whether signatureHeader is a valid signature of rawPayload.
func Verify(rawPayload []byte, signatureHeader, secret string) bool {
	return Check(rawPayload, signatureHeader, secret) == ResultValid
}

func digest(timestamp string, canonical []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(canonical)

	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier binds a secret and an optional development bypass.
type Verifier struct {
	secret string
	skip   bool
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// NewInsecureVerifier accepts every payload. Only wired when the deployment
// is explicitly development and the skip flag is set.
func NewInsecureVerifier() *Verifier {
	return &Verifier{skip: true}
}

func (v *Verifier) Skips() bool {
	return v.skip
}

func (v *Verifier) Check(rawPayload []byte, signatureHeader string) Result {
	if v.skip {
		return ResultSkipped
	}

	return Check(rawPayload, signatureHeader, v.secret)
}

func (v *Verifier) Verify(rawPayload []byte, signatureHeader string) bool {
	return v.Check(rawPayload, signatureHeader).OK()
}
