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

package mpool

import (
	"sync"
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/stretchr/testify/require"
)

func TestMPool(t *testing.T) {
	m, err := NewMPool("test-mpool-small", 0)
	require.True(t, err == nil, "new mpool failed %v", err)

	nb0 := m.CurrNB()
	hw0 := m.HighWaterMark()
	ngrow0 := m.NumGrow()

	require.True(t, ngrow0 == 0, "bad ngrow")

	for i := 1; i <= 10000; i++ {
		require.NoError(t, m.Grow(int64(i*10)))
		m.Shrink(int64(i * 10))
	}

	require.True(t, nb0 == m.CurrNB(), "leak")
	require.True(t, hw0+10000*10 == m.HighWaterMark(), "hw")
	require.True(t, ngrow0+10000 == m.NumGrow(), "grow")
	require.True(t, m.NumGrow() == m.NumShrink(), "shrink")
}

func TestMPoolCap(t *testing.T) {
	m, err := NewMPool("test-mpool-cap", 100)
	require.NoError(t, err)

	require.NoError(t, m.Grow(60))
	err = m.Grow(50)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM), "expected oom, got %v", err)
	// failed grow must not stay charged
	require.Equal(t, int64(60), m.CurrNB())
	require.NoError(t, m.Grow(40))
	m.Shrink(100)
	require.Equal(t, int64(0), m.CurrNB())

	_, err = NewMPool("bad", -1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}

// test race
func TestMPoolForRace(t *testing.T) {
	m := MustNewZero()
	var wg sync.WaitGroup
	run := func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if err := m.Grow(8); err != nil {
				panic(err)
			}
			m.Shrink(8)
		}
	}
	for i := 0; i < 800; i++ {
		wg.Add(1)
		go run()
	}
	wg.Wait()
	require.Equal(t, int64(0), m.CurrNB())
}

func BenchmarkMP(b *testing.B) {
	pool := MustNewZero()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		run := func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if err := pool.Grow(8); err != nil {
					panic(err)
				}
				pool.Shrink(8)
			}
		}
		for i := 0; i < 800; i++ {
			wg.Add(1)
			go run()
		}
		wg.Wait()
	}
}
