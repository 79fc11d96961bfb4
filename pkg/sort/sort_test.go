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
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/nulls"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/stretchr/testify/require"
)

func TestSortInt64(t *testing.T) {
	mp := mpool.MustNewZero()
	v := vector.NewVector(types.New(types.T_int64))
	require.NoError(t, vector.AppendList(v, []int64{3, 1, 4, 1, 5}, nil, mp))

	os := []int64{0, 1, 2, 3, 4}
	Sort(false, os, v)
	require.Equal(t, []int64{1, 3, 0, 2, 4}, os)

	os = []int64{0, 1, 2, 3, 4}
	Sort(true, os, v)
	require.Equal(t, []int64{4, 2, 0, 1, 3}, os)

	v.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestSortVarchar(t *testing.T) {
	mp := mpool.MustNewZero()
	v := vector.NewVector(types.New(types.T_varchar))
	require.NoError(t, vector.AppendStringList(v, []string{"pear", "apple", "fig"}, nil, mp))

	os := []int64{0, 1, 2}
	Sort(false, os, v)
	require.Equal(t, []int64{1, 2, 0}, os)

	v.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestSortNulls(t *testing.T) {
	mp := mpool.MustNewZero()
	v := vector.NewVector(types.New(types.T_float64))
	require.NoError(t, vector.AppendList(v, []float64{2.5, 0, 1.5}, []bool{false, true, false}, mp))
	require.True(t, nulls.Contains(v.GetNulls(), 1))

	os := []int64{0, 1, 2}
	Sort(false, os, v)
	require.Equal(t, []int64{1, 2, 0}, os)

	os = []int64{0, 1, 2}
	Sort(true, os, v)
	require.Equal(t, []int64{0, 2, 1}, os)

	v.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestSortSubset(t *testing.T) {
	mp := mpool.MustNewZero()
	v := vector.NewVector(types.New(types.T_int32))
	require.NoError(t, vector.AppendList(v, []int32{9, 2, 7, 4}, nil, mp))

	// only the picked rows move
	os := []int64{0, 2}
	Sort(false, os, v)
	require.Equal(t, []int64{2, 0}, os)

	v.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}
