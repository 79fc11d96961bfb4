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

// Package nulls wraps up functions for the manipulation of the bitmap
// library roaring. A column stores all its NULL positions in one Nulls.
package nulls

import (
	"fmt"

	roaring "github.com/RoaringBitmap/roaring/roaring64"
)

type Nulls struct {
	Np *roaring.Bitmap
}

func NewWithSize(_ int) *Nulls {
	return &Nulls{Np: roaring.NewBitmap()}
}

func Build(size int, rows ...uint64) *Nulls {
	nsp := NewWithSize(size)
	Add(nsp, rows...)
	return nsp
}

func (nsp *Nulls) Clone() *Nulls {
	if nsp == nil {
		return nil
	}
	if nsp.Np == nil {
		return &Nulls{Np: nil}
	}
	return &Nulls{Np: nsp.Np.Clone()}
}

// Any returns true if nsp contains any null position.
func Any(nsp *Nulls) bool {
	if nsp == nil || nsp.Np == nil {
		return false
	}
	return !nsp.Np.IsEmpty()
}

// Size returns the count of null positions.
func Size(nsp *Nulls) int {
	if nsp == nil || nsp.Np == nil {
		return 0
	}
	return int(nsp.Np.GetCardinality())
}

func Contains(nsp *Nulls, row uint64) bool {
	if nsp == nil || nsp.Np == nil {
		return false
	}
	return nsp.Np.Contains(row)
}

func Add(nsp *Nulls, rows ...uint64) {
	if len(rows) == 0 {
		return
	}
	if nsp.Np == nil {
		nsp.Np = roaring.NewBitmap()
	}
	nsp.Np.AddMany(rows)
}

func AddRange(nsp *Nulls, start, end uint64) {
	if start >= end {
		return
	}
	if nsp.Np == nil {
		nsp.Np = roaring.NewBitmap()
	}
	nsp.Np.AddRange(start, end)
}

func Del(nsp *Nulls, rows ...uint64) {
	if nsp.Np == nil {
		return
	}
	for _, row := range rows {
		nsp.Np.Remove(row)
	}
}

func Reset(nsp *Nulls) {
	if nsp.Np != nil {
		nsp.Np.Clear()
	}
}

// Or performs union operation on Nulls nsp,m and stores the result in r
func Or(nsp, m, r *Nulls) {
	if !Any(nsp) && !Any(m) {
		r.Np = nil
		return
	}
	r.Np = roaring.NewBitmap()
	if Any(nsp) {
		r.Np.Or(nsp.Np)
	}
	if Any(m) {
		r.Np.Or(m.Np)
	}
}

// Range inserts nsp's nulls within [start, end) into m, shifted by
// bias: position p becomes p-start+bias.
func Range(nsp *Nulls, start, end, bias uint64, m *Nulls) *Nulls {
	if !Any(nsp) {
		return m
	}
	for p := start; p < end; p++ {
		if nsp.Np.Contains(p) {
			Add(m, p-start+bias)
		}
	}
	return m
}

// Filter returns the nulls of the column after applying sels: result
// position i is null iff sels[i] was null in nsp.
func Filter(nsp *Nulls, sels []int64) *Nulls {
	if !Any(nsp) || len(sels) == 0 {
		return &Nulls{}
	}
	res := &Nulls{}
	for i, sel := range sels {
		if nsp.Np.Contains(uint64(sel)) {
			Add(res, uint64(i))
		}
	}
	return res
}

// FilterCount returns how many of the selected rows are null.
func FilterCount(nsp *Nulls, sels []int64) int {
	if !Any(nsp) || len(sels) == 0 {
		return 0
	}
	var cnt int
	for _, sel := range sels {
		if nsp.Np.Contains(uint64(sel)) {
			cnt++
		}
	}
	return cnt
}

func String(nsp *Nulls) string {
	if !Any(nsp) {
		return "[]"
	}
	return fmt.Sprintf("%v", nsp.Np.ToArray())
}

func (nsp *Nulls) Any() bool {
	return Any(nsp)
}

func (nsp *Nulls) Contains(row uint64) bool {
	return Contains(nsp, row)
}

func (nsp *Nulls) Count() int {
	return Size(nsp)
}

func (nsp *Nulls) Or(m *Nulls) *Nulls {
	r := &Nulls{}
	Or(nsp, m, r)
	return r
}

func (nsp *Nulls) IsSame(m *Nulls) bool {
	if Any(nsp) != Any(m) {
		return false
	}
	if !Any(nsp) {
		return true
	}
	return nsp.Np.Equals(m.Np)
}

func (nsp *Nulls) ToArray() []uint64 {
	if !Any(nsp) {
		return nil
	}
	return nsp.Np.ToArray()
}
