// Copyright 2025 The Probemap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package probemap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// Fixed vectors pin down the exact SDBM recurrence, including 64-bit
// wraparound on the longer inputs. A change to these values would silently
// rehash every table built by a previous release.
func TestSum64Vectors(t *testing.T) {
	testCases := []struct {
		input    string
		expected uint64
	}{
		{"", 0},
		{"a", 0x61},
		{"b", 0x62},
		{"ab", 0x611841},
		{"abc", 0x613025f862},
		{"hello", 0x66eb1bb328d19932},
		{"hello world", 0x2d4794ce19ae84c4},
		{"key-12345", 0xa2de9c51e1b97605},
		{"The quick brown fox jumps over the lazy dog", 0x467496748ca77173},
	}
	for _, c := range testCases {
		t.Run(c.input, func(t *testing.T) {
			require.Equal(t, c.expected, Sum64String(c.input))
			require.Equal(t, c.expected, Sum64([]byte(c.input)))
		})
	}
}

func TestSum64Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		b := make([]byte, rng.Intn(256))
		rng.Read(b)
		h := Sum64(b)
		for j := 0; j < 10; j++ {
			require.Equal(t, h, Sum64(b))
		}
		require.Equal(t, h, Sum64String(string(b)))
	}
}

// The multiply form h*65599+c and the classic shift form
// (h<<6)+(h<<16)-h+c are the same recurrence.
func TestSum64ShiftEquivalence(t *testing.T) {
	shiftSum := func(b []byte) uint64 {
		var h uint64
		for _, c := range b {
			h = (h << 6) + (h << 16) - h + uint64(c)
		}
		return h
	}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		b := make([]byte, rng.Intn(512))
		rng.Read(b)
		require.Equal(t, shiftSum(b), Sum64(b))
	}
}

func TestDefaultHash(t *testing.T) {
	type key string
	h := defaultHash[key]()
	require.Equal(t, Sum64String("foo"), h(key("foo")))
}
