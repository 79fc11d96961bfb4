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
	"sync/atomic"
)

// JoinMap is the shared result of a hash build: the key table plus,
// per group, the build-side row numbers carrying that key. One build
// feeds many probers, so the map is reference counted; the last Free
// releases the memory.
type JoinMap struct {
	refCnt    int64
	rowCnt    int64
	multiSels [][]int32
	shm       *StrHashMap
	valid     bool
}

func NewJoinMap(sels [][]int32, shm *StrHashMap) *JoinMap {
	return &JoinMap{
		refCnt:    0,
		shm:       shm,
		multiSels: sels,
		valid:     true,
	}
}

func (jm *JoinMap) SetRowCount(cnt int64) {
	jm.rowCnt = cnt
}

// GetRowCount returns the number of build-side rows behind the map,
// including rows that carry a null key.
func (jm *JoinMap) GetRowCount() int64 {
	return jm.rowCnt
}

func (jm *JoinMap) Sels() [][]int32 {
	return jm.multiSels
}

// Find returns the build-side rows matching key, nil when the key is
// unknown.
func (jm *JoinMap) Find(key []byte) []int32 {
	v := jm.shm.Find(key)
	if v == 0 {
		return nil
	}
	return jm.multiSels[v-1]
}

func (jm *JoinMap) GroupCount() uint64 {
	return jm.shm.GroupCount()
}

func (jm *JoinMap) IncRef(cnt int32) {
	atomic.AddInt64(&jm.refCnt, int64(cnt))
}

func (jm *JoinMap) IsValid() bool {
	return jm.valid
}

// FreeMemory releases the map regardless of outstanding references.
// Safe to call twice.
func (jm *JoinMap) FreeMemory() {
	if !jm.valid {
		return
	}
	for i := range jm.multiSels {
		jm.multiSels[i] = nil
	}
	jm.multiSels = nil
	jm.shm.Free()
	jm.valid = false
}

func (jm *JoinMap) Free() {
	if atomic.AddInt64(&jm.refCnt, -1) > 0 {
		return
	}
	jm.FreeMemory()
}

func (jm *JoinMap) Size() int64 {
	if jm.shm == nil {
		return 0
	}
	return jm.shm.Size()
}
