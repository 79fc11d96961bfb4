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

package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/nulls"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
)

// Vector is one column of a batch. Fixed width types store their values
// in a typed slice, varchar stores per-row byte slices. Null positions
// live in the nulls bitmap; the value slot of a null row is the zero
// value.
type Vector struct {
	typ types.Type
	// col is []bool, []int32, []int64, []float64 or []types.Datetime
	// for fixed width types, [][]byte for varchar
	col any
	nsp *nulls.Nulls

	length int

	// bytes charged against the mpool for this vector
	accounted int64
}

func NewVector(typ types.Type) *Vector {
	return &Vector{typ: typ, nsp: &nulls.Nulls{}}
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) SetNulls(nsp *nulls.Nulls) {
	if nsp == nil {
		nsp = &nulls.Nulls{}
	}
	v.nsp = nsp
}

// MustFixedCol returns the typed value slice of a fixed width vector.
func MustFixedCol[T any](v *Vector) []T {
	if v.col == nil {
		return nil
	}
	return v.col.([]T)
}

// MustBytesCol returns the per-row byte slices of a varchar vector.
func MustBytesCol(v *Vector) [][]byte {
	if v.col == nil {
		return nil
	}
	return v.col.([][]byte)
}

func GetFixedAt[T any](v *Vector, idx int) T {
	return v.col.([]T)[idx]
}

func (v *Vector) GetBytesAt(idx int) []byte {
	return v.col.([][]byte)[idx]
}

func (v *Vector) GetStringAt(idx int) string {
	return string(v.col.([][]byte)[idx])
}

func (v *Vector) IsNull(row uint64) bool {
	return nulls.Contains(v.nsp, row)
}

// Append appends one fixed width value. A null appends the zero value
// and records the position in the nulls bitmap.
func Append[T any](vec *Vector, val T, isNull bool, mp *mpool.MPool) error {
	if vec.typ.IsVarlen() {
		return moerr.NewInternalError(context.TODO(), "append fixed value to %s vector", vec.typ)
	}
	if err := vec.charge(int64(vec.typ.Size), mp); err != nil {
		return err
	}
	var col []T
	if vec.col != nil {
		col = vec.col.([]T)
	}
	if isNull {
		var zero T
		col = append(col, zero)
		nulls.Add(vec.nsp, uint64(vec.length))
	} else {
		col = append(col, val)
	}
	vec.col = col
	vec.length++
	return nil
}

// AppendBytes appends one varchar value.
func AppendBytes(vec *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	if !vec.typ.IsVarlen() {
		return moerr.NewInternalError(context.TODO(), "append bytes to %s vector", vec.typ)
	}
	if err := vec.charge(int64(len(val)), mp); err != nil {
		return err
	}
	var col [][]byte
	if vec.col != nil {
		col = vec.col.([][]byte)
	}
	if isNull {
		col = append(col, nil)
		nulls.Add(vec.nsp, uint64(vec.length))
	} else {
		buf := make([]byte, len(val))
		copy(buf, val)
		col = append(col, buf)
	}
	vec.col = col
	vec.length++
	return nil
}

func AppendList[T any](vec *Vector, vals []T, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		isNull := isNulls != nil && isNulls[i]
		if err := Append(vec, val, isNull, mp); err != nil {
			return err
		}
	}
	return nil
}

func AppendBytesList(vec *Vector, vals [][]byte, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		isNull := isNulls != nil && isNulls[i]
		if err := AppendBytes(vec, val, isNull, mp); err != nil {
			return err
		}
	}
	return nil
}

func AppendStringList(vec *Vector, vals []string, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		isNull := isNulls != nil && isNulls[i]
		if err := AppendBytes(vec, []byte(val), isNull, mp); err != nil {
			return err
		}
	}
	return nil
}

// AppendDefault appends one zero value of the vector's type.
func AppendDefault(vec *Vector, isNull bool, mp *mpool.MPool) error {
	switch vec.typ.Oid {
	case types.T_bool:
		return Append(vec, false, isNull, mp)
	case types.T_int32:
		return Append[int32](vec, 0, isNull, mp)
	case types.T_int64:
		return Append[int64](vec, 0, isNull, mp)
	case types.T_float64:
		return Append[float64](vec, 0, isNull, mp)
	case types.T_datetime:
		return Append[types.Datetime](vec, 0, isNull, mp)
	case types.T_varchar:
		return AppendBytes(vec, nil, isNull, mp)
	}
	return moerr.NewInternalError(context.TODO(), "append default for unknown type %s", vec.typ)
}

// UnionOne appends row sel of w.
func (v *Vector) UnionOne(w *Vector, sel int64, mp *mpool.MPool) error {
	return v.Union(w, []int64{sel}, mp)
}

// UnionAll appends every row of w.
func (v *Vector) UnionAll(w *Vector, mp *mpool.MPool) error {
	sels := make([]int64, w.length)
	for i := range sels {
		sels[i] = int64(i)
	}
	return v.Union(w, sels, mp)
}

// Union appends the selected rows of w in sels order.
func (v *Vector) Union(w *Vector, sels []int64, mp *mpool.MPool) error {
	if !v.typ.Eq(w.typ) {
		return moerr.NewInternalError(context.TODO(), "union %s vector with %s", v.typ, w.typ)
	}
	switch v.typ.Oid {
	case types.T_bool:
		return unionFixed[bool](v, w, sels, mp)
	case types.T_int32:
		return unionFixed[int32](v, w, sels, mp)
	case types.T_int64:
		return unionFixed[int64](v, w, sels, mp)
	case types.T_float64:
		return unionFixed[float64](v, w, sels, mp)
	case types.T_datetime:
		return unionFixed[types.Datetime](v, w, sels, mp)
	case types.T_varchar:
		col := MustBytesCol(w)
		for _, sel := range sels {
			if err := AppendBytes(v, col[sel], w.IsNull(uint64(sel)), mp); err != nil {
				return err
			}
		}
		return nil
	}
	return moerr.NewInternalError(context.TODO(), "union unknown type %s", v.typ)
}

func unionFixed[T any](v, w *Vector, sels []int64, mp *mpool.MPool) error {
	col := MustFixedCol[T](w)
	for _, sel := range sels {
		if err := Append(v, col[sel], w.IsNull(uint64(sel)), mp); err != nil {
			return err
		}
	}
	return nil
}

// Shuffle reorders the vector in place following sels. sels may pick
// any subset of rows, in any order, with repeats.
func (v *Vector) Shuffle(sels []int64, mp *mpool.MPool) error {
	if v.col == nil {
		return nil
	}
	res := NewVector(v.typ)
	if err := res.Union(v, sels, mp); err != nil {
		res.Free(mp)
		return err
	}
	old := *v
	*v = *res
	old.Free(mp)
	return nil
}

// Window copies rows [start, end) into a fresh vector.
func (v *Vector) Window(start, end int, mp *mpool.MPool) (*Vector, error) {
	if start < 0 || end < start || end > v.length {
		return nil, moerr.NewInternalError(context.TODO(), "vector window [%d, %d) out of range", start, end)
	}
	sels := make([]int64, 0, end-start)
	for i := start; i < end; i++ {
		sels = append(sels, int64(i))
	}
	res := NewVector(v.typ)
	if err := res.Union(v, sels, mp); err != nil {
		res.Free(mp)
		return nil, err
	}
	return res, nil
}

func (v *Vector) Dup(mp *mpool.MPool) (*Vector, error) {
	return v.Window(0, v.length, mp)
}

func (v *Vector) charge(nb int64, mp *mpool.MPool) error {
	if mp == nil {
		return nil
	}
	if err := mp.Grow(nb); err != nil {
		return err
	}
	v.accounted += nb
	return nil
}

// Free returns the vector's charged bytes to the pool. The vector is
// reusable as an empty vector afterwards.
func (v *Vector) Free(mp *mpool.MPool) {
	if mp != nil && v.accounted > 0 {
		mp.Shrink(v.accounted)
	}
	v.accounted = 0
	v.col = nil
	v.length = 0
	v.nsp = &nulls.Nulls{}
}

func (v *Vector) String() string {
	var sb strings.Builder
	sb.WriteString(v.typ.String())
	sb.WriteString("[")
	for i := 0; i < v.length; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		if v.IsNull(uint64(i)) {
			sb.WriteString("null")
			continue
		}
		switch v.typ.Oid {
		case types.T_bool:
			fmt.Fprintf(&sb, "%v", GetFixedAt[bool](v, i))
		case types.T_int32:
			fmt.Fprintf(&sb, "%d", GetFixedAt[int32](v, i))
		case types.T_int64:
			fmt.Fprintf(&sb, "%d", GetFixedAt[int64](v, i))
		case types.T_float64:
			fmt.Fprintf(&sb, "%v", GetFixedAt[float64](v, i))
		case types.T_datetime:
			sb.WriteString(GetFixedAt[types.Datetime](v, i).String())
		case types.T_varchar:
			sb.WriteString(v.GetStringAt(i))
		}
	}
	sb.WriteString("]")
	return sb.String()
}
