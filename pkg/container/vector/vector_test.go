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
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/stretchr/testify/require"
)

func TestAppendFixed(t *testing.T) {
	mp := mpool.MustNewZero()
	v := NewVector(types.New(types.T_int64))

	require.NoError(t, Append[int64](v, 7, false, mp))
	require.NoError(t, Append[int64](v, 0, true, mp))
	require.NoError(t, Append[int64](v, 9, false, mp))

	require.Equal(t, 3, v.Length())
	require.Equal(t, []int64{7, 0, 9}, MustFixedCol[int64](v))
	require.False(t, v.IsNull(0))
	require.True(t, v.IsNull(1))
	require.Equal(t, int64(9), GetFixedAt[int64](v, 2))

	// fixed append on a varchar vector is a usage bug
	s := NewVector(types.New(types.T_varchar))
	err := Append[int64](s, 1, false, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	v.Free(mp)
	s.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestAppendBytes(t *testing.T) {
	mp := mpool.MustNewZero()
	v := NewVector(types.New(types.T_varchar))

	require.NoError(t, AppendBytes(v, []byte("hello"), false, mp))
	require.NoError(t, AppendBytes(v, nil, true, mp))
	require.NoError(t, AppendStringList(v, []string{"x", "y"}, nil, mp))

	require.Equal(t, 4, v.Length())
	require.Equal(t, "hello", v.GetStringAt(0))
	require.True(t, v.IsNull(1))
	require.Equal(t, []byte("y"), v.GetBytesAt(3))

	v.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestShuffle(t *testing.T) {
	mp := mpool.MustNewZero()
	v := NewVector(types.New(types.T_int32))
	require.NoError(t, AppendList(v, []int32{10, 20, 30, 40}, []bool{false, true, false, false}, mp))

	require.NoError(t, v.Shuffle([]int64{3, 1, 0}, mp))
	require.Equal(t, []int32{40, 0, 10}, MustFixedCol[int32](v))
	require.False(t, v.IsNull(0))
	require.True(t, v.IsNull(1))
	require.Equal(t, 3, v.Length())

	v.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestUnion(t *testing.T) {
	mp := mpool.MustNewZero()
	w := NewVector(types.New(types.T_varchar))
	require.NoError(t, AppendStringList(w, []string{"a", "b", "c"}, []bool{false, true, false}, mp))

	v := NewVector(types.New(types.T_varchar))
	require.NoError(t, v.Union(w, []int64{2, 1, 2}, mp))
	require.Equal(t, 3, v.Length())
	require.Equal(t, "c", v.GetStringAt(0))
	require.True(t, v.IsNull(1))

	vi := NewVector(types.New(types.T_int64))
	err := vi.Union(w, []int64{0}, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	v.Free(mp)
	w.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestWindow(t *testing.T) {
	mp := mpool.MustNewZero()
	v := NewVector(types.New(types.T_int64))
	require.NoError(t, AppendList(v, []int64{1, 2, 3, 4}, []bool{false, false, true, false}, mp))

	w, err := v.Window(1, 3, mp)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 0}, MustFixedCol[int64](w))
	require.True(t, w.IsNull(1))

	_, err = v.Window(2, 9, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	v.Free(mp)
	w.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestOOM(t *testing.T) {
	mp, err := mpool.NewMPool("tiny", 16)
	require.NoError(t, err)
	v := NewVector(types.New(types.T_int64))
	require.NoError(t, Append[int64](v, 1, false, mp))
	require.NoError(t, Append[int64](v, 2, false, mp))
	err = Append[int64](v, 3, false, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))
	v.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}
