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

// HashFunc hashes keys of type K to 64-bit values. A Map requires its hash
// function to be deterministic: the same key must always produce the same
// value for the lifetime of the table.
type HashFunc[K ~string] func(key K) uint64

// sdbmMultiplier is the constant from the sdbm database library's hash,
// equivalent to the recurrence h = (h<<6) + (h<<16) - h + c.
const sdbmMultiplier = 65599

// Sum64 returns the SDBM hash of b.
//
// SDBM is the polynomial rolling hash popularized by the sdbm database
// library (http://www.cse.yorku.ca/~oz/hash.html): starting from zero, each
// byte folds in as h = h*65599 + c. The arithmetic wraps on uint64
// overflow; the wraparound is part of the algorithm, not an error. The hash
// is seedless, so values are stable within and across process runs. It
// makes no cryptographic guarantees and offers no hash-flooding resistance.
func Sum64(b []byte) uint64 {
	var h uint64
	for _, c := range b {
		h = h*sdbmMultiplier + uint64(c)
	}
	return h
}

// Sum64String returns the SDBM hash of s. It is equivalent to
// Sum64([]byte(s)) without the allocation.
func Sum64String(s string) uint64 {
	var h uint64
	for i := 0; i < len(s); i++ {
		h = h*sdbmMultiplier + uint64(s[i])
	}
	return h
}

// defaultHash returns the hash function used by a Map when no WithHash
// option is supplied.
func defaultHash[K ~string]() HashFunc[K] {
	return func(key K) uint64 {
		return Sum64String(string(key))
	}
}
