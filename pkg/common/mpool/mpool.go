// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mpool tracks the memory charged to one query pipeline.
// Column data lives in garbage collected slices, so the pool does not
// hand out buffers; it enforces the byte budget that vectors, batches
// and hash tables grow against, and keeps usage statistics.
package mpool

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
)

// PB is the cap used for pools created without a limit.
const PB = int64(1) << 50

type MPool struct {
	tag string
	cap int64

	// all updated atomically
	curr      int64
	high      int64
	numGrow   int64
	numShrink int64
}

// NewMPool creates a pool with the given byte cap. cap == 0 means no
// limit.
func NewMPool(tag string, cap int64) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInvalidInput(context.TODO(), "mpool cap %d", cap)
	}
	if cap == 0 {
		cap = PB
	}
	return &MPool{tag: tag, cap: cap}, nil
}

// MustNewZero creates an unlimited pool, panicking on failure. Test
// code and tools use it.
func MustNewZero() *MPool {
	m, err := NewMPool("zero", 0)
	if err != nil {
		panic(err)
	}
	return m
}

func MustNew(tag string) *MPool {
	m, err := NewMPool(tag, 0)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *MPool) Tag() string {
	return m.tag
}

func (m *MPool) Cap() int64 {
	return m.cap
}

// Grow charges nb bytes against the pool, failing with OOM when the
// cap would be exceeded. nb may be zero.
func (m *MPool) Grow(nb int64) error {
	if nb < 0 {
		return moerr.NewInternalError(context.TODO(), "mpool grow negative size %d", nb)
	}
	curr := atomic.AddInt64(&m.curr, nb)
	if curr > m.cap {
		atomic.AddInt64(&m.curr, -nb)
		return moerr.NewOOM(context.TODO())
	}
	atomic.AddInt64(&m.numGrow, 1)
	for {
		high := atomic.LoadInt64(&m.high)
		if curr <= high || atomic.CompareAndSwapInt64(&m.high, high, curr) {
			return nil
		}
	}
}

// Shrink returns nb bytes to the pool.
func (m *MPool) Shrink(nb int64) {
	if nb <= 0 {
		return
	}
	atomic.AddInt64(&m.numShrink, 1)
	if atomic.AddInt64(&m.curr, -nb) < 0 {
		panic(moerr.NewInternalError(context.TODO(), "mpool %s shrink below zero", m.tag))
	}
}

// CurrNB returns the currently charged bytes.
func (m *MPool) CurrNB() int64 {
	return atomic.LoadInt64(&m.curr)
}

// HighWaterMark returns the peak charged bytes.
func (m *MPool) HighWaterMark() int64 {
	return atomic.LoadInt64(&m.high)
}

func (m *MPool) NumGrow() int64 {
	return atomic.LoadInt64(&m.numGrow)
}

func (m *MPool) NumShrink() int64 {
	return atomic.LoadInt64(&m.numShrink)
}

func (m *MPool) Report() string {
	return fmt.Sprintf("mpool %s: curr %d, high %d, cap %d, grow %d, shrink %d",
		m.tag, m.CurrNB(), m.HighWaterMark(), m.cap, m.NumGrow(), m.NumShrink())
}
