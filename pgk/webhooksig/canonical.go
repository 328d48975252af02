package webhooksig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
)

var (
	ErrNotObject    = errors.New("value is not a JSON object")
	ErrDuplicateKey = errors.New("duplicate object key")
	ErrTrailingData = errors.New("unexpected data after JSON value")
)

// Canonicalize re-serializes a JSON value with every object's keys in
// ascending order and no insignificant whitespace. Arrays keep their order
// and numbers keep their literal text.
func Canonicalize(raw []byte) ([]byte, error) {
	value, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, value); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Envelope splits a top level JSON object into its fields, keyed exactly as
// sent. Keys that encoding/json would match to the same struct field, such as
// "data" and "DATA", are rejected.
func Envelope(raw []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotObject
	}

	fields := make(map[string]json.RawMessage)
	folded := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, ErrNotObject
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		fold := foldKey(key)
		if prev, dup := folded[fold]; dup {
			return nil, fmt.Errorf("%w: %q and %q", ErrDuplicateKey, prev, key)
		}
		folded[fold] = key
		fields[key] = value
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}

	return fields, nil
}

// ExtractObject returns the raw bytes of the top level field key, which
// must be a JSON object.
func ExtractObject(raw []byte, key string) ([]byte, error) {
	envelope, err := Envelope(raw)
	if err != nil {
		return nil, err
	}

	field, ok := envelope[key]
	if !ok {
		return nil, fmt.Errorf("field %q: %w", key, ErrNotObject)
	}

	field = bytes.TrimSpace(field)
	if len(field) == 0 || field[0] != '{' {
		return nil, fmt.Errorf("field %q: %w", key, ErrNotObject)
	}

	return field, nil
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}

	if err := expectEOF(dec); err != nil {
		return nil, err
	}

	return value, nil
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return ErrTrailingData
	}
	return nil
}

// foldKey mirrors the case folding encoding/json applies to field names.
func foldKey(key string) string {
	return strings.Map(func(r rune) rune {
		return unicode.ToUpper(unicode.ToLower(r))
	}, key)
}

func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case string:
		return writeString(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case nil:
		buf.WriteString("null")
	default:
		return fmt.Errorf("unsupported JSON type %T", value)
	}

	return nil
}

// writeString encodes s without HTML escaping, matching what the aggregator
// signs.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}

	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
