/*
 * Copyright (c) 2025, WSO2 LLC. (http://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the typed union carried by a FieldValue.
type ValueKind string

const (
	KindText        ValueKind = "text"
	KindNumber      ValueKind = "number"
	KindBoolean     ValueKind = "boolean"
	KindStringArray ValueKind = "string_array"
	KindObject      ValueKind = "object"
)

// FieldValue is the typed value a proposal suggests writing to a profile
// field. Exactly one of the typed members is meaningful, selected by Kind.
// Values cross the store boundary as strings: scalars serialize plainly,
// composites serialize as JSON.
type FieldValue struct {
	Kind   ValueKind
	Text   string
	Number float64
	Bool   bool
	Array  []string
	Object map[string]interface{}
}

func TextValue(s string) FieldValue {
	return FieldValue{Kind: KindText, Text: s}
}

func NumberValue(n float64) FieldValue {
	return FieldValue{Kind: KindNumber, Number: n}
}

func BooleanValue(b bool) FieldValue {
	return FieldValue{Kind: KindBoolean, Bool: b}
}

func ArrayValue(items []string) FieldValue {
	return FieldValue{Kind: KindStringArray, Array: items}
}

func ObjectValue(obj map[string]interface{}) FieldValue {
	return FieldValue{Kind: KindObject, Object: obj}
}

// Serialize renders the value in its wire form. Scalars are rendered as plain
// strings; arrays and objects as JSON so they survive a text column round trip.
func (v FieldValue) Serialize() (string, error) {

	switch v.Kind {
	case KindText:
		return v.Text, nil
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64), nil
	case KindBoolean:
		return strconv.FormatBool(v.Bool), nil
	case KindStringArray:
		data, err := json.Marshal(v.Array)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case KindObject:
		data, err := json.Marshal(v.Object)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown value kind: %s", v.Kind)
	}
}

// ParseFieldValue interprets a raw answer of unknown shape into a FieldValue.
// Structured parses are attempted first; anything unrecognized degrades to an
// opaque text value rather than failing.
func ParseFieldValue(raw interface{}) FieldValue {

	switch v := raw.(type) {
	case nil:
		return TextValue("")
	case string:
		return parseStringValue(v)
	case bool:
		return BooleanValue(v)
	case float64:
		return NumberValue(v)
	case int:
		return NumberValue(float64(v))
	case int64:
		return NumberValue(float64(v))
	case []string:
		return ArrayValue(v)
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return ArrayValue(items)
	case map[string]interface{}:
		return ObjectValue(v)
	default:
		return TextValue(fmt.Sprintf("%v", raw))
	}
}

func parseStringValue(s string) FieldValue {

	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") {
		var items []string
		if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
			return ArrayValue(items)
		}
	}
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return ObjectValue(obj)
		}
	}
	return TextValue(s)
}

// DeserializeFieldValue reconstructs a FieldValue from its stored string form
// under the declared kind. A value that does not parse under the declared kind
// falls back to text so stale rows never fail to load.
func DeserializeFieldValue(raw string, kind ValueKind) FieldValue {

	switch kind {
	case KindNumber:
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return NumberValue(n)
		}
	case KindBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return BooleanValue(b)
		}
	case KindStringArray:
		var items []string
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			return ArrayValue(items)
		}
	case KindObject:
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			return ObjectValue(obj)
		}
	}
	return TextValue(raw)
}

type fieldValueWire struct {
	Kind  ValueKind   `json:"kind"`
	Value interface{} `json:"value"`
}

// MarshalJSON renders the value as {"kind": ..., "value": ...}.
func (v FieldValue) MarshalJSON() ([]byte, error) {

	wire := fieldValueWire{Kind: v.Kind}
	switch v.Kind {
	case KindText:
		wire.Value = v.Text
	case KindNumber:
		wire.Value = v.Number
	case KindBoolean:
		wire.Value = v.Bool
	case KindStringArray:
		wire.Value = v.Array
	case KindObject:
		wire.Value = v.Object
	default:
		wire.Kind = KindText
		wire.Value = ""
	}
	return json.Marshal(wire)
}

// UnmarshalJSON accepts {"kind": ..., "value": ...}; a payload without a kind
// is treated as a raw answer and parsed tolerantly.
func (v *FieldValue) UnmarshalJSON(data []byte) error {

	var wire fieldValueWire
	if err := json.Unmarshal(data, &wire); err != nil || wire.Kind == "" {
		var raw interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*v = ParseFieldValue(raw)
		return nil
	}

	switch wire.Kind {
	case KindText:
		s, _ := wire.Value.(string)
		*v = TextValue(s)
	case KindNumber:
		n, ok := wire.Value.(float64)
		if !ok {
			return fmt.Errorf("value for kind %s is not a number", wire.Kind)
		}
		*v = NumberValue(n)
	case KindBoolean:
		b, ok := wire.Value.(bool)
		if !ok {
			return fmt.Errorf("value for kind %s is not a boolean", wire.Kind)
		}
		*v = BooleanValue(b)
	case KindStringArray:
		items, ok := wire.Value.([]interface{})
		if !ok {
			return fmt.Errorf("value for kind %s is not an array", wire.Kind)
		}
		arr := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("array element is not a string")
			}
			arr = append(arr, s)
		}
		*v = ArrayValue(arr)
	case KindObject:
		obj, ok := wire.Value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("value for kind %s is not an object", wire.Kind)
		}
		*v = ObjectValue(obj)
	default:
		return fmt.Errorf("unknown value kind: %s", wire.Kind)
	}
	return nil
}
