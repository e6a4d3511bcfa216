package changeevent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// decimalNumber is the textual form of an N attribute. Hex, NaN and infinities are not numbers here.
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses the payload of an N attribute into a finite float.
func ParseNumber(s string) (float64, error) {
	if !decimalNumber.MatchString(s) {
		return 0, fmt.Errorf("malformed number %q", s)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed number %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("number %q is out of range", s)
	}

	return f, nil
}

// Tag is the wire type tag of a stream attribute value.
type Tag string

const (
	TagString    Tag = "S"
	TagNumber    Tag = "N"
	TagBool      Tag = "BOOL"
	TagList      Tag = "L"
	TagStringSet Tag = "SS"
	TagNull      Tag = "NULL"
)

// AttributeValue is one tagged value of a stream image.
// Numbers travel as strings and are kept that way until decoded.
type AttributeValue struct {
	Tag  Tag
	S    string
	BOOL bool
	L    []AttributeValue
	SS   []string
}

// Image is the attribute map of a record snapshot.
type Image map[string]AttributeValue

func String(s string) AttributeValue {
	return AttributeValue{Tag: TagString, S: s}
}

func Number(f float64) AttributeValue {
	return AttributeValue{Tag: TagNumber, S: strconv.FormatFloat(f, 'f', -1, 64)}
}

func Bool(b bool) AttributeValue {
	return AttributeValue{Tag: TagBool, BOOL: b}
}

func List(values ...AttributeValue) AttributeValue {
	if values == nil {
		values = []AttributeValue{}
	}

	return AttributeValue{Tag: TagList, L: values}
}

func StringSet(values ...string) AttributeValue {
	return AttributeValue{Tag: TagStringSet, SS: values}
}

func Null() AttributeValue {
	return AttributeValue{Tag: TagNull}
}

// MarshalJSON writes the single-key tagged form, e.g. {"S":"Maria"}.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Tag {
	case TagString, TagNumber:
		payload = v.S
	case TagBool:
		payload = v.BOOL
	case TagList:
		l := v.L
		if l == nil {
			l = []AttributeValue{}
		}
		payload = l
	case TagStringSet:
		ss := v.SS
		if ss == nil {
			ss = []string{}
		}
		payload = ss
	case TagNull:
		payload = true
	default:
		return nil, fmt.Errorf("unknown attribute tag %q", v.Tag)
	}

	return json.Marshal(map[Tag]any{v.Tag: payload})
}

// UnmarshalJSON accepts exactly one known tag. Anything else is an error.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var raw map[Tag]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("attribute value is not an object: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("attribute value must have exactly one tag, got %d", len(raw))
	}

	for tag, body := range raw {
		out := AttributeValue{Tag: tag}
		var err error
		switch tag {
		case TagString:
			err = json.Unmarshal(body, &out.S)
		case TagNumber:
			err = json.Unmarshal(body, &out.S)
			if err == nil {
				_, err = ParseNumber(out.S)
			}
		case TagBool:
			err = strictUnmarshal(body, &out.BOOL)
		case TagList:
			err = strictUnmarshal(body, &out.L)
			if err == nil && out.L == nil {
				out.L = []AttributeValue{}
			}
		case TagStringSet:
			err = strictUnmarshal(body, &out.SS)
		case TagNull:
			var isNull bool
			err = json.Unmarshal(body, &isNull)
		default:
			return fmt.Errorf("unknown attribute tag %q", tag)
		}
		if err != nil {
			return fmt.Errorf("malformed %s attribute: %w", tag, err)
		}
		*v = out
	}

	return nil
}

// strictUnmarshal rejects JSON null for tags whose payload must be present.
func strictUnmarshal(body json.RawMessage, dst any) error {
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return fmt.Errorf("null payload")
	}

	return json.Unmarshal(body, dst)
}
