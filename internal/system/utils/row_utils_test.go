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

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRowString(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"bytes", []byte("hello"), "hello"},
		{"int64", int64(42), "42"},
		{"float64", 4.5, "4.5"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RowString(tt.input))
		})
	}
}

func TestRowInt(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected int
	}{
		{"int64", int64(7), 7},
		{"int", 7, 7},
		{"float64", 7.9, 7},
		{"bytes", []byte("7"), 7},
		{"string", "7", 7},
		{"unparsable", "seven", 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RowInt(tt.input))
		})
	}
}

func TestRowFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected float64
	}{
		{"float64", 3.5, 3.5},
		{"int64", int64(3), 3.0},
		{"bytes", []byte("3.5"), 3.5},
		{"string", "3.5", 3.5},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RowFloat(tt.input))
		})
	}
}

func TestRowBool(t *testing.T) {
	assert.True(t, RowBool(true))
	assert.True(t, RowBool([]byte("true")))
	assert.True(t, RowBool("true"))
	assert.False(t, RowBool("not a bool"))
	assert.False(t, RowBool(nil))
}

func TestRowTime(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	assert.Equal(t, now, RowTime(now))
	assert.Equal(t, now, RowTime(now.Format(time.RFC3339)))
	assert.Equal(t, now, RowTime([]byte(now.Format(time.RFC3339))))
	assert.True(t, RowTime(nil).IsZero())
	assert.True(t, RowTime("yesterday").IsZero())
}
