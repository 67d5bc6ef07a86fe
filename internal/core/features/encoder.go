package features

import (
	"bytes"
	"encoding/gob"
	"sort"
)

// UnknownValue is the fill for missing categoricals and the bucket for
// values never seen at fit time
const UnknownValue = "unknown"

// Encoder maps string values of one categorical column to stable integer
// codes. Classes is sorted at fit time; codes are positions in Classes
type Encoder struct {
	Classes []string

	idx map[string]int
}

// Encoders holds one Encoder per categorical column name
type Encoders map[string]*Encoder

func fitEncoder(values []string) *Encoder {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return &Encoder{Classes: classes}
}

func (e *Encoder) index() map[string]int {
	if e.idx == nil || len(e.idx) != len(e.Classes) {
		e.idx = make(map[string]int, len(e.Classes))
		for i, c := range e.Classes {
			e.idx[c] = i
		}
	}
	return e.idx
}

// Code returns the integer code for v. A value outside the fitted classes
// is mapped to UnknownValue, appending that class first when absent
func (e *Encoder) Code(v string) int {
	if i, ok := e.index()[v]; ok {
		return i
	}
	if i, ok := e.index()[UnknownValue]; ok {
		return i
	}
	e.Classes = append(e.Classes, UnknownValue)
	return e.index()[UnknownValue]
}

// EncodeEncoders serializes the encoder set with gob
func EncodeEncoders(encs Encoders) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(encs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEncoders restores an encoder set produced by EncodeEncoders
func DecodeEncoders(b []byte) (Encoders, error) {
	var encs Encoders
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&encs); err != nil {
		return nil, err
	}
	return encs, nil
}
