// Package canon implements the canonical payload encoding used for every
// structured signature in the Borovkov protocol.
//
// The encoding is byte-identical to Python's
// json.dumps(obj, sort_keys=True): keys are sorted at every nesting level,
// items are separated by ", " and keys by ": ", and every rune outside
// printable ASCII is written as a \uXXXX escape. Independent implementations
// must agree on these bytes, because the HMAC is computed over them.
package canon

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedValue is returned for values that have no canonical form
	// (floats, channels, funcs, structs, non-string map keys, ...).
	ErrUnsupportedValue = errors.New("canon: unsupported value")
	// ErrInvalidUTF8 is returned for strings or keys that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("canon: invalid UTF-8")
)

const (
	itemSeparator = ", "
	keySeparator  = ": "
	hexDigits     = "0123456789abcdef"
)

var numberType = reflect.TypeOf(json.Number(""))

// Encode returns the canonical bytes for a record.
//
// This is the single choke point for structured payloads: all post, action
// and rotation signatures are computed over Encode output.
func Encode(record map[string]any) ([]byte, error) {
	if record == nil {
		record = map[string]any{}
	}
	return EncodeValue(record)
}

// EncodeValue returns the canonical bytes for any supported value.
func EncodeValue(v any) ([]byte, error) {
	var sb strings.Builder
	if err := encode(&sb, reflect.ValueOf(v), ""); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func encode(sb *strings.Builder, v reflect.Value, path string) error {
	if !v.IsValid() {
		sb.WriteString("null")
		return nil
	}
	if v.Type() == numberType {
		return writeNumber(sb, json.Number(v.String()), path)
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			sb.WriteString("null")
			return nil
		}
		return encode(sb, v.Elem(), path)
	case reflect.String:
		return writeString(sb, v.String(), path)
	case reflect.Bool:
		if v.Bool() {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sb.WriteString(strconv.FormatInt(v.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sb.WriteString(strconv.FormatUint(v.Uint(), 10))
		return nil
	case reflect.Map:
		return encodeMap(sb, v, path)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Errorf("%w: byte slice at %s", ErrUnsupportedValue, displayPath(path))
		}
		if v.IsNil() {
			sb.WriteString("null")
			return nil
		}
		return encodeList(sb, v, path)
	case reflect.Array:
		return encodeList(sb, v, path)
	default:
		return fmt.Errorf("%w: %s at %s", ErrUnsupportedValue, v.Kind(), displayPath(path))
	}
}

// writeNumber accepts a json.Number only when it is an integer literal, so
// metadata decoded with UseNumber round-trips without float ambiguity.
func writeNumber(sb *strings.Builder, n json.Number, path string) error {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		sb.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
		sb.WriteString(strconv.FormatUint(u, 10))
		return nil
	}
	return fmt.Errorf("%w: non-integer number %q at %s", ErrUnsupportedValue, string(n), displayPath(path))
}

func encodeMap(sb *strings.Builder, v reflect.Value, path string) error {
	if v.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("%w: map key type %s at %s", ErrUnsupportedValue, v.Type().Key(), displayPath(path))
	}
	if v.IsNil() {
		sb.WriteString("null")
		return nil
	}

	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, k.String())
	}
	// Byte order of UTF-8 equals code point order.
	sort.Strings(keys)

	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(itemSeparator)
		}
		child := path + "." + k
		if err := writeString(sb, k, child); err != nil {
			return err
		}
		sb.WriteString(keySeparator)
		kv := reflect.ValueOf(k).Convert(v.Type().Key())
		if err := encode(sb, v.MapIndex(kv), child); err != nil {
			return err
		}
	}
	sb.WriteByte('}')
	return nil
}

func encodeList(sb *strings.Builder, v reflect.Value, path string) error {
	sb.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			sb.WriteString(itemSeparator)
		}
		if err := encode(sb, v.Index(i), path+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	sb.WriteByte(']')
	return nil
}

func writeString(sb *strings.Builder, s string, path string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w at %s", ErrInvalidUTF8, displayPath(path))
	}
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if r >= 0x20 && r <= 0x7e {
				sb.WriteRune(r)
				continue
			}
			if r > 0xffff {
				r -= 0x10000
				writeEscape(sb, 0xd800|(r>>10)&0x3ff)
				writeEscape(sb, 0xdc00|r&0x3ff)
				continue
			}
			writeEscape(sb, r)
		}
	}
	sb.WriteByte('"')
	return nil
}

func writeEscape(sb *strings.Builder, r rune) {
	sb.WriteString(`\u`)
	sb.WriteByte(hexDigits[(r>>12)&0xf])
	sb.WriteByte(hexDigits[(r>>8)&0xf])
	sb.WriteByte(hexDigits[(r>>4)&0xf])
	sb.WriteByte(hexDigits[r&0xf])
}

func displayPath(path string) string {
	if path == "" {
		return "$"
	}
	return "$" + path
}
