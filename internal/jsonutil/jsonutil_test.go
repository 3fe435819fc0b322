package jsonutil

import (
	"testing"

	"mediflow/internal/tester"
)

func TestExtractObjectPlain(t *testing.T) {
	raw, err := ExtractObject(`{"a":1}`)
	tester.NoErr(t, err)
	tester.Eq(t, string(raw), `{"a":1}`)
}

func TestExtractObjectInsideProse(t *testing.T) {
	text := "Here is the result:\n```json\n{\"a\": {\"b\": 2}}\n```\nLet me know if you need more."
	raw, err := ExtractObject(text)
	tester.NoErr(t, err)
	tester.Eq(t, string(raw), `{"a": {"b": 2}}`)
}

func TestExtractObjectBracesInStrings(t *testing.T) {
	raw, err := ExtractObject(`noise {"msg":"open { and close } and quote \" stay"} tail`)
	tester.NoErr(t, err)
	tester.Eq(t, string(raw), `{"msg":"open { and close } and quote \" stay"}`)
}

func TestExtractObjectSkipsMalformedCandidate(t *testing.T) {
	raw, err := ExtractObject(`{not json} but then {"ok":true}`)
	tester.NoErr(t, err)
	tester.Eq(t, string(raw), `{"ok":true}`)
}

func TestExtractObjectNone(t *testing.T) {
	_, err := ExtractObject("no object here")
	tester.Eq(t, err, ErrNoObject)

	_, err = ExtractObject(`{"never closed":`)
	tester.Eq(t, err, ErrNoObject)
}

func TestUnmarshalDoubleEncoded(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	err := Unmarshal([]byte(`"{\"a\": 7}"`), &v)
	tester.NoErr(t, err)
	tester.Eq(t, v.A, 7)
}

func TestExtractInto(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	err := ExtractInto(`The answer: {"name":"x"}`, &v)
	tester.NoErr(t, err)
	tester.Eq(t, v.Name, "x")
}
