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

package sort

import (
	"bytes"
	"sort"

	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
)

type ordered interface {
	~int32 | ~int64 | ~float64
}

// Sort reorders os so that vec's values at those row numbers come out
// ascending, or descending when desc is set. Nulls sort before any
// value ascending, after any value descending.
func Sort(desc bool, os []int64, vec *vector.Vector) {
	less := lessFunc(vec)
	if nsp := vec.GetNulls(); nsp.Any() {
		base := less
		less = func(a, b int64) bool {
			na, nb := nsp.Contains(uint64(a)), nsp.Contains(uint64(b))
			if na || nb {
				return na && !nb
			}
			return base(a, b)
		}
	}
	if desc {
		base := less
		less = func(a, b int64) bool { return base(b, a) }
	}
	sort.Slice(os, func(i, j int) bool { return less(os[i], os[j]) })
}

func lessFunc(vec *vector.Vector) func(a, b int64) bool {
	switch vec.GetType().Oid {
	case types.T_bool:
		vs := vector.MustFixedCol[bool](vec)
		return func(a, b int64) bool { return !vs[a] && vs[b] }
	case types.T_int32:
		return lessFixed[int32](vec)
	case types.T_int64:
		return lessFixed[int64](vec)
	case types.T_float64:
		return lessFixed[float64](vec)
	case types.T_datetime:
		return lessFixed[types.Datetime](vec)
	case types.T_varchar:
		vs := vector.MustBytesCol(vec)
		return func(a, b int64) bool { return bytes.Compare(vs[a], vs[b]) < 0 }
	}
	return func(a, b int64) bool { return false }
}

func lessFixed[T ordered](vec *vector.Vector) func(a, b int64) bool {
	vs := vector.MustFixedCol[T](vec)
	return func(a, b int64) bool { return vs[a] < vs[b] }
}
