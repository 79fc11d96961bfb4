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
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/nulls"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	mp := mpool.MustNewZero()
	partitions := make([]int64, 0, 4)

	v0 := vector.NewVector(types.New(types.T_int64))
	require.NoError(t, vector.AppendList(v0, []int64{1, 1, 2, 2, 2, 3}, nil, mp))
	partitions = Partition([]int64{0, 1, 2, 3, 4, 5}, make([]bool, 6), partitions, v0)
	require.Equal(t, []int64{0, 2, 5}, partitions)

	// a null run is its own group
	nulls.Add(v0.GetNulls(), 2, 3)
	partitions = Partition([]int64{0, 1, 2, 3, 4, 5}, make([]bool, 6), partitions, v0)
	require.Equal(t, []int64{0, 2, 4, 5}, partitions)

	v1 := vector.NewVector(types.New(types.T_varchar))
	require.NoError(t, vector.AppendStringList(v1, []string{"a", "a", "b", "b"}, nil, mp))
	partitions = Partition([]int64{0, 1, 2, 3}, make([]bool, 4), partitions, v1)
	require.Equal(t, []int64{0, 2}, partitions)

	// sels pick a subset in sorted order
	partitions = Partition([]int64{1, 3}, make([]bool, 2), partitions, v1)
	require.Equal(t, []int64{0, 1}, partitions)

	v0.Free(mp)
	v1.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestPartitionChained(t *testing.T) {
	mp := mpool.MustNewZero()

	// (1,x) (1,x) (1,y) (2,y)
	v0 := vector.NewVector(types.New(types.T_int32))
	require.NoError(t, vector.AppendList(v0, []int32{1, 1, 1, 2}, nil, mp))
	v1 := vector.NewVector(types.New(types.T_varchar))
	require.NoError(t, vector.AppendStringList(v1, []string{"x", "x", "y", "y"}, nil, mp))

	sels := []int64{0, 1, 2, 3}
	diffs := make([]bool, 4)
	partitions := make([]int64, 0, 4)
	partitions = Partition(sels, diffs, partitions, v0)
	require.Equal(t, []int64{0, 3}, partitions)
	partitions = Partition(sels, diffs, partitions, v1)
	require.Equal(t, []int64{0, 2, 3}, partitions)

	v0.Free(mp)
	v1.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}
