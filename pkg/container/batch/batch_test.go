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

package batch

import (
	"context"
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/stretchr/testify/require"
)

func makeBatch(t *testing.T, mp *mpool.MPool, ids []int64, names []string) *Batch {
	bat := New([]string{"id", "name"})
	bat.Vecs[0] = vector.NewVector(types.New(types.T_int64))
	bat.Vecs[1] = vector.NewVector(types.New(types.T_varchar))
	require.NoError(t, vector.AppendList(bat.Vecs[0], ids, nil, mp))
	require.NoError(t, vector.AppendStringList(bat.Vecs[1], names, nil, mp))
	bat.SetRowCount(len(ids))
	return bat
}

func TestAppend(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := makeBatch(t, mp, []int64{1, 2}, []string{"a", "b"})
	other := makeBatch(t, mp, []int64{3}, []string{"c"})

	res, err := bat.Append(context.TODO(), mp, other)
	require.NoError(t, err)
	require.Equal(t, 3, res.RowCount())
	require.Equal(t, []int64{1, 2, 3}, vector.MustFixedCol[int64](res.Vecs[0]))
	require.Equal(t, "c", res.Vecs[1].GetStringAt(2))

	// nil receiver starts a fresh copy
	var nilBat *Batch
	dup, err := nilBat.Append(context.TODO(), mp, other)
	require.NoError(t, err)
	require.Equal(t, 1, dup.RowCount())

	bat.Clean(mp)
	other.Clean(mp)
	dup.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestShuffleWindow(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := makeBatch(t, mp, []int64{1, 2, 3, 4}, []string{"a", "b", "c", "d"})

	w, err := bat.Window(1, 3, mp)
	require.NoError(t, err)
	require.Equal(t, 2, w.RowCount())
	require.Equal(t, []int64{2, 3}, vector.MustFixedCol[int64](w.Vecs[0]))

	require.NoError(t, bat.Shuffle([]int64{3, 0}, mp))
	require.Equal(t, 2, bat.RowCount())
	require.Equal(t, []int64{4, 1}, vector.MustFixedCol[int64](bat.Vecs[0]))
	require.Equal(t, "a", bat.Vecs[1].GetStringAt(1))

	bat.Clean(mp)
	w.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestRefCount(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := makeBatch(t, mp, []int64{1}, []string{"a"})

	bat.AddCnt(1)
	require.Equal(t, int64(2), bat.GetCnt())
	bat.Clean(mp)
	require.NotNil(t, bat.Vecs)
	bat.Clean(mp)
	require.Nil(t, bat.Vecs)
	require.Equal(t, int64(0), mp.CurrNB())

	// double clean is a no-op
	bat.Clean(mp)
}
