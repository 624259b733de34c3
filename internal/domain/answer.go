package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// AnswerValue is a submitted answer or an answer key. Exactly one shape is
// populated: Single (mcq, truefalse, oneword), Set (selectall) or Pairs (match).
// On the wire it is a JSON string, array or object respectively.
type AnswerValue struct {
	Single string
	Set    []string
	Pairs  map[string]string

	shape answerShape
}

type answerShape uint8

const (
	shapeNone answerShape = iota
	shapeSingle
	shapeSet
	shapePairs
)

// SingleAnswer builds a scalar answer.
func SingleAnswer(v string) AnswerValue {
	return AnswerValue{Single: v, shape: shapeSingle}
}

// SetAnswer builds a multi-select answer.
func SetAnswer(v ...string) AnswerValue {
	return AnswerValue{Set: append([]string(nil), v...), shape: shapeSet}
}

// PairsAnswer builds a match answer keyed by left value.
func PairsAnswer(m map[string]string) AnswerValue {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return AnswerValue{Pairs: cp, shape: shapePairs}
}

// IsZero reports whether no value was supplied.
func (a AnswerValue) IsZero() bool {
	return a.shape == shapeNone && a.Single == "" && a.Set == nil && a.Pairs == nil
}

// IsSingle reports whether a holds a scalar value.
func (a AnswerValue) IsSingle() bool {
	return a.shape == shapeSingle || (a.shape == shapeNone && a.Set == nil && a.Pairs == nil && a.Single != "")
}

// IsSet reports whether a holds a multi-select value.
func (a AnswerValue) IsSet() bool {
	return a.shape == shapeSet || (a.shape == shapeNone && a.Set != nil)
}

// IsPairs reports whether a holds a match mapping.
func (a AnswerValue) IsPairs() bool {
	return a.shape == shapePairs || (a.shape == shapeNone && a.Pairs != nil)
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	switch {
	case a.IsPairs():
		return json.Marshal(a.Pairs)
	case a.IsSet():
		if a.Set == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Set)
	case a.IsSingle():
		return json.Marshal(a.Single)
	}
	return []byte("null"), nil
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*a = AnswerValue{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = SingleAnswer(s)
	case '[':
		var set []string
		if err := json.Unmarshal(data, &set); err != nil {
			return fmt.Errorf("%w: set answers must be strings", ErrInvalidAnswer)
		}
		*a = SetAnswer(set...)
	case '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%w: match answers must map strings to strings", ErrInvalidAnswer)
		}
		*a = PairsAnswer(m)
	default:
		// true/false buttons may post bare booleans
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("%w: unsupported answer %s", ErrInvalidAnswer, data)
		}
		if b {
			*a = SingleAnswer("True")
		} else {
			*a = SingleAnswer("False")
		}
	}
	return nil
}

func (a *AnswerValue) UnmarshalYAML(node *yaml.Node) error {
	*a = AnswerValue{}
	switch node.Kind {
	case yaml.ScalarNode:
		*a = SingleAnswer(node.Value)
	case yaml.SequenceNode:
		var set []string
		if err := node.Decode(&set); err != nil {
			return err
		}
		*a = SetAnswer(set...)
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return err
		}
		*a = PairsAnswer(m)
	default:
		return fmt.Errorf("%w: unsupported yaml node at line %d", ErrInvalidAnswer, node.Line)
	}
	return nil
}

// String renders the answer for logs.
func (a AnswerValue) String() string {
	switch {
	case a.IsPairs():
		keys := make([]string, 0, len(a.Pairs))
		for k := range a.Pairs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			fmt.Fprintf(&buf, "%s=%s", k, a.Pairs[k])
		}
		buf.WriteByte('}')
		return buf.String()
	case a.IsSet():
		return fmt.Sprintf("%v", a.Set)
	}
	return a.Single
}
