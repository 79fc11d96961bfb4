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

package join

import (
	"context"
	"math"

	"github.com/fagongzi/goetty/v2/buf"
	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
)

// Value tags of the canonical row encoding. Every value starts with a
// tag byte; varlen values add a length prefix, so no two distinct
// tuples share an encoding and no encoding is a prefix of another.
const (
	tagNull byte = iota + 1
	tagFixed
	tagBool
	tagBytes
)

// EncodeKey writes the row's values from the given columns into one
// canonical byte string. The second result reports a null among them;
// such rows never match in a join.
func EncodeKey(vecs []*vector.Vector, row int) ([]byte, bool) {
	bb := buf.NewByteBuf(16 * len(vecs))
	hasNull := false
	for _, vec := range vecs {
		if vec.IsNull(uint64(row)) {
			hasNull = true
			bb.MustWriteByte(tagNull)
			continue
		}
		switch vec.GetType().Oid {
		case types.T_bool:
			bb.MustWriteByte(tagBool)
			if vector.GetFixedAt[bool](vec, row) {
				bb.MustWriteByte(1)
			} else {
				bb.MustWriteByte(0)
			}
		case types.T_int32:
			bb.MustWriteByte(tagFixed)
			bb.WriteInt64(int64(vector.GetFixedAt[int32](vec, row)))
		case types.T_int64:
			bb.MustWriteByte(tagFixed)
			bb.WriteInt64(vector.GetFixedAt[int64](vec, row))
		case types.T_float64:
			bb.MustWriteByte(tagFixed)
			bb.WriteInt64(int64(math.Float64bits(vector.GetFixedAt[float64](vec, row))))
		case types.T_datetime:
			bb.MustWriteByte(tagFixed)
			bb.WriteInt64(int64(vector.GetFixedAt[types.Datetime](vec, row)))
		case types.T_varchar:
			v := vec.GetBytesAt(row)
			bb.MustWriteByte(tagBytes)
			bb.WriteUint32(uint32(len(v)))
			bb.MustWrite(v)
		}
	}
	_, v := bb.ReadAll()
	return v, hasNull
}

// EncodeRow packs the row's values from the given columns with the
// same scheme as EncodeKey, nulls included.
func EncodeRow(vecs []*vector.Vector, row int) []byte {
	v, _ := EncodeKey(vecs, row)
	return v
}

// DecodeRowInto appends one encoded row onto vecs, one value per
// column in order.
func DecodeRowInto(data []byte, vecs []*vector.Vector, mp *mpool.MPool) error {
	off := 0
	for _, vec := range vecs {
		if off >= len(data) {
			return moerr.NewInternalError(context.TODO(), "join row payload truncated")
		}
		tag := data[off]
		off++
		switch tag {
		case tagNull:
			if err := vector.AppendDefault(vec, true, mp); err != nil {
				return err
			}
		case tagBool:
			if off+1 > len(data) {
				return moerr.NewInternalError(context.TODO(), "join row payload truncated")
			}
			if err := vector.Append(vec, data[off] == 1, false, mp); err != nil {
				return err
			}
			off++
		case tagFixed:
			if off+8 > len(data) {
				return moerr.NewInternalError(context.TODO(), "join row payload truncated")
			}
			v := buf.Byte2Int64(data[off:])
			off += 8
			var err error
			switch vec.GetType().Oid {
			case types.T_int32:
				err = vector.Append(vec, int32(v), false, mp)
			case types.T_int64:
				err = vector.Append(vec, v, false, mp)
			case types.T_float64:
				err = vector.Append(vec, math.Float64frombits(uint64(v)), false, mp)
			case types.T_datetime:
				err = vector.Append(vec, types.Datetime(v), false, mp)
			default:
				err = moerr.NewInternalError(context.TODO(), "join row payload type mismatch for %s", vec.GetType())
			}
			if err != nil {
				return err
			}
		case tagBytes:
			if off+4 > len(data) {
				return moerr.NewInternalError(context.TODO(), "join row payload truncated")
			}
			n := int(buf.Byte2Uint32(data[off:]))
			off += 4
			if off+n > len(data) {
				return moerr.NewInternalError(context.TODO(), "join row payload truncated")
			}
			if err := vector.AppendBytes(vec, data[off:off+n], false, mp); err != nil {
				return err
			}
			off += n
		default:
			return moerr.NewInternalError(context.TODO(), "join row payload bad tag %d", tag)
		}
	}
	if off != len(data) {
		return moerr.NewInternalError(context.TODO(), "join row payload has %d trailing bytes", len(data)-off)
	}
	return nil
}

// keyPositions resolves key names in sch, in key order.
func keyPositions(sch *schema.Schema, keys []string) ([]int, error) {
	idx := make([]int, len(keys))
	for i, key := range keys {
		pos := sch.IndexOf(key)
		if pos < 0 {
			return nil, moerr.NewInternalError(context.TODO(), "join key %q not found in %s", key, sch)
		}
		idx[i] = pos
	}
	return idx, nil
}

func gatherVecs(vecs []*vector.Vector, idx []int) []*vector.Vector {
	out := make([]*vector.Vector, len(idx))
	for i, p := range idx {
		out[i] = vecs[p]
	}
	return out
}
