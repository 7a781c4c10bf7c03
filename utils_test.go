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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextPowerOfTwo(t *testing.T) {
	testCases := []struct {
		input    int
		expected int
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{63, 64},
		{64, 64},
		{65, 128},
		{1 << 20, 1 << 20},
		{1<<20 + 1, 1 << 21},
	}
	for _, c := range testCases {
		require.Equal(t, c.expected, nextPowerOfTwo(c.input), "input=%d", c.input)
	}
}

func TestUnsafeConvertSlice(t *testing.T) {
	u := []uint8{0, 1, 2}
	c := unsafeConvertSlice[ctrl](u)
	require.Equal(t, []ctrl{ctrlEmpty, ctrlFull, ctrlDeleted}, c)

	// The conversion aliases the original memory.
	c[0] = ctrlDeleted
	require.Equal(t, uint8(2), u[0])
}
