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

package partition

import (
	"bytes"

	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
)

// Partition returns the offsets where vs[sels[i]] differs from
// vs[sels[i-1]]. The 0th row always starts a new group. diffs is
// scratch space carrying marks from previously partitioned columns,
// so chaining Partition over several columns yields the boundaries of
// the combined key.
func Partition(sels []int64, diffs []bool, partitions []int64, vec *vector.Vector) []int64 {
	diffs[0] = true
	diffs = diffs[:len(sels)]
	switch vec.GetType().Oid {
	case types.T_bool:
		partitionFixed[bool](sels, diffs, vec)
	case types.T_int32:
		partitionFixed[int32](sels, diffs, vec)
	case types.T_int64:
		partitionFixed[int64](sels, diffs, vec)
	case types.T_float64:
		partitionFixed[float64](sels, diffs, vec)
	case types.T_datetime:
		partitionFixed[types.Datetime](sels, diffs, vec)
	case types.T_varchar:
		partitionBytes(sels, diffs, vec)
	}
	partitions = partitions[:0]
	for i, j := int64(0), int64(len(diffs)); i < j; i++ {
		if diffs[i] {
			partitions = append(partitions, i)
		}
	}
	return partitions
}

func partitionFixed[T comparable](sels []int64, diffs []bool, vec *vector.Vector) {
	var n bool
	var v T

	vs := vector.MustFixedCol[T](vec)
	nsp := vec.GetNulls()
	if nsp.Any() {
		for i, sel := range sels {
			w := vs[sel]
			isNull := nsp.Contains(uint64(sel))
			if n != isNull {
				diffs[i] = true
			} else {
				diffs[i] = diffs[i] || (v != w)
			}
			v = w
			n = isNull
		}
		return
	}
	for i, sel := range sels {
		w := vs[sel]
		diffs[i] = diffs[i] || (v != w)
		v = w
	}
}

func partitionBytes(sels []int64, diffs []bool, vec *vector.Vector) {
	var n bool
	var v []byte

	vs := vector.MustBytesCol(vec)
	nsp := vec.GetNulls()
	if nsp.Any() {
		for i, sel := range sels {
			w := vs[sel]
			isNull := nsp.Contains(uint64(sel))
			if n != isNull {
				diffs[i] = true
			} else {
				diffs[i] = diffs[i] || !bytes.Equal(v, w)
			}
			v = w
			n = isNull
		}
		return
	}
	for i, sel := range sels {
		w := vs[sel]
		diffs[i] = diffs[i] || !bytes.Equal(v, w)
		v = w
	}
}
