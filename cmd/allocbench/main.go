/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command allocbench drives a mix of allocation sizes through sysalloc's
// brk/mmap allocator concurrently and reports throughput.
package main

import (
	"flag"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cloudwego/gopkg/unsafex/malloc"
)

var (
	workers  = flag.Int("workers", 8, "concurrent workers")
	duration = flag.Duration("duration", 2*time.Second, "how long to run")
	minSize  = flag.Int("min", 32, "minimum allocation size")
	maxSize  = flag.Int("max", 256*1024, "maximum allocation size")
)

func main() {
	flag.Parse()

	log.Printf("allocbench: workers=%d duration=%s sizes=[%d,%d]", *workers, *duration, *minSize, *maxSize)

	ops := run(*duration)
	log.Printf("allocbench: done sysalloc=%d ops", ops)
}

// run fans work out across *workers goroutines for d, each with its own
// SysAllocator (SysAllocator is not safe for concurrent use, so no
// instance is ever touched from more than one goroutine), and returns the
// total op count.
func run(d time.Duration) int64 {
	var ops int64
	deadline := time.Now().Add(d)
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		seed := int64(i + 1)
		go func() {
			defer wg.Done()
			worker(seed, done, &ops)
		}()
	}

	time.Sleep(time.Until(deadline))
	close(done)
	wg.Wait()

	return atomic.LoadInt64(&ops)
}

// worker repeatedly allocates a random size and frees the previous one,
// mimicking allocation churn against a single allocator instance.
func worker(seed int64, done <-chan struct{}, ops *int64) {
	a := malloc.NewSysAllocator()
	rng := rand.New(rand.NewSource(seed))
	var prev unsafe.Pointer

	for {
		select {
		case <-done:
			return
		default:
		}
		n := *minSize + rng.Intn(*maxSize-*minSize+1)
		p := a.Alloc(n)
		a.Free(prev)
		prev = p
		atomic.AddInt64(ops, 1)
	}
}
