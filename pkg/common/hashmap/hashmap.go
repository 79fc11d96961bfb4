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

package hashmap

import (
	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
)

// StrHashMap maps an encoded key to an uint64 group number starting
// from 1. Inserting a known key returns the group it was first given,
// inserting a fresh key returns last-group+1.
type StrHashMap struct {
	rows      uint64
	groups    map[string]uint64
	accounted int64

	mp *mpool.MPool
}

// NewStrHashMap sizes the table for an estimated group count. The
// estimate only pre-sizes, it never bounds.
func NewStrHashMap(estimated uint64, mp *mpool.MPool) *StrHashMap {
	return &StrHashMap{
		groups: make(map[string]uint64, estimated),
		mp:     mp,
	}
}

// Insert registers key and returns its group number. The second result
// reports whether the key was seen for the first time.
func (m *StrHashMap) Insert(key []byte) (uint64, bool, error) {
	if v, ok := m.groups[string(key)]; ok {
		return v, false, nil
	}
	if m.mp != nil {
		if err := m.mp.Grow(int64(len(key) + 8)); err != nil {
			return 0, false, err
		}
		m.accounted += int64(len(key) + 8)
	}
	m.rows++
	m.groups[string(key)] = m.rows
	return m.rows, true, nil
}

// Find returns the group number of key, 0 when the key is unknown.
func (m *StrHashMap) Find(key []byte) uint64 {
	return m.groups[string(key)]
}

func (m *StrHashMap) GroupCount() uint64 {
	return m.rows
}

func (m *StrHashMap) Size() int64 {
	return m.accounted
}

func (m *StrHashMap) Free() {
	if m.mp != nil && m.accounted > 0 {
		m.mp.Shrink(m.accounted)
	}
	m.accounted = 0
	m.groups = nil
	m.rows = 0
}
