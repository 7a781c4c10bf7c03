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

// probemap-demo exercises a probemap.Map with a bulk workload and prints a
// JSON timing summary to stdout.
//
// Usage:
//
//	probemap-demo [-n keys] [-capacity slots]
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/probemap/probemap"
)

type summary struct {
	Keys            int    `json:"keys"`
	InitialCapacity int    `json:"initial_capacity"`
	FinalCapacity   int    `json:"final_capacity"`
	Insert          string `json:"insert"`
	InsertPerKey    string `json:"insert_per_key"`
	Lookup          string `json:"lookup"`
	LookupPerKey    string `json:"lookup_per_key"`
	Delete          string `json:"delete"`
	DeletePerKey    string `json:"delete_per_key"`
}

func main() {
	n := flag.Int("n", 1<<20, "number of keys to insert")
	capacity := flag.Int("capacity", 64, "initial table capacity")
	flag.Parse()

	keys := make([]string, *n)
	for i := range keys {
		keys[i] = "key-" + strconv.Itoa(i)
	}

	m := probemap.New[string, int](*capacity)
	s := summary{Keys: *n, InitialCapacity: *capacity}

	start := time.Now()
	for i, k := range keys {
		m.Put(k, i)
	}
	insert := time.Since(start)

	// Look the keys up in a different order than they were inserted.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rng.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})

	start = time.Now()
	for _, k := range keys {
		if _, ok := m.Get(k); !ok {
			fmt.Fprintf(os.Stderr, "probemap-demo: lost key %q\n", k)
			os.Exit(1)
		}
	}
	lookup := time.Since(start)

	s.FinalCapacity = m.Cap()

	start = time.Now()
	for _, k := range keys {
		m.Delete(k)
	}
	del := time.Since(start)

	if !m.IsEmpty() {
		fmt.Fprintf(os.Stderr, "probemap-demo: %d keys left after deleting all\n", m.Len())
		os.Exit(1)
	}

	s.Insert = insert.String()
	s.InsertPerKey = (insert / time.Duration(*n)).String()
	s.Lookup = lookup.String()
	s.LookupPerKey = (lookup / time.Duration(*n)).String()
	s.Delete = del.String()
	s.DeletePerKey = (del / time.Duration(*n)).String()

	out, err := sonnet.Marshal(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probemap-demo: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s\n", out)
}
