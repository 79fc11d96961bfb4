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
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/testutil"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
	"github.com/stretchr/testify/require"
)

func flattenRows(t *testing.T, proc *process.Process, bats []*batch.Batch) *batch.Batch {
	t.Helper()
	var out *batch.Batch
	var err error
	for _, bat := range bats {
		out, err = out.Append(proc.Ctx, proc.Mp(), bat)
		require.NoError(t, err)
		bat.Clean(proc.Mp())
	}
	return out
}

func TestHashJoinInner(t *testing.T) {
	proc := testutil.NewProc()
	left := leftTestBatch(proc, []int64{1, 2, 3}, []string{"a", "b", "c"})
	right := rightTestBatch(proc, []int64{1, 2, 2, 5}, []float64{10, 20, 21, 50})

	h, err := NewHashJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)
	out := h.ResultSchema(leftTestSchema())
	require.NotNil(t, out)
	require.Equal(t, []string{"id", "name", "score"}, out.Names())

	require.NoError(t, h.Build(proc, []*batch.Batch{right}))
	right.Clean(proc.Mp())
	require.Equal(t, int64(4), h.JoinMap().GetRowCount())

	bats, err := h.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())
	res := flattenRows(t, proc, bats)
	require.Equal(t, 3, res.RowCount())
	require.Equal(t, []int64{1, 2, 2}, vector.MustFixedCol[int64](res.Vecs[0]))
	require.Equal(t, "b", res.Vecs[1].GetStringAt(1))
	require.Equal(t, []float64{10, 20, 21}, vector.MustFixedCol[float64](res.Vecs[2]))

	trail, err := h.Trailing(proc, 0)
	require.NoError(t, err)
	require.Nil(t, trail)

	res.Clean(proc.Mp())
	h.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestHashJoinLeftOuter(t *testing.T) {
	proc := testutil.NewProc()
	left := leftTestBatch(proc, []int64{1, 3}, []string{"a", "c"})
	right := rightTestBatch(proc, []int64{1}, []float64{10})

	h, err := NewHashJoin(LeftOuter, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)
	require.NotNil(t, h.ResultSchema(leftTestSchema()))
	require.NoError(t, h.Build(proc, []*batch.Batch{right}))
	right.Clean(proc.Mp())

	bats, err := h.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())
	res := flattenRows(t, proc, bats)
	require.Equal(t, 2, res.RowCount())
	require.Equal(t, float64(10), vector.GetFixedAt[float64](res.Vecs[2], 0))
	require.True(t, res.Vecs[2].IsNull(1))
	require.Equal(t, "c", res.Vecs[1].GetStringAt(1))

	res.Clean(proc.Mp())
	h.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestHashJoinRightOuter(t *testing.T) {
	proc := testutil.NewProc()
	left := leftTestBatch(proc, []int64{1, 3}, []string{"a", "c"})
	right := rightTestBatch(proc, []int64{1, 5}, []float64{10, 50})

	h, err := NewHashJoin(RightOuter, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)
	require.NotNil(t, h.ResultSchema(leftTestSchema()))
	require.NoError(t, h.Build(proc, []*batch.Batch{right}))
	right.Clean(proc.Mp())

	bats, err := h.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())
	res := flattenRows(t, proc, bats)
	require.Equal(t, 1, res.RowCount())
	require.Equal(t, int64(1), vector.GetFixedAt[int64](res.Vecs[0], 0))
	res.Clean(proc.Mp())

	bats, err = h.Trailing(proc, 0)
	require.NoError(t, err)
	trail := flattenRows(t, proc, bats)
	require.Equal(t, 1, trail.RowCount())
	require.True(t, trail.Vecs[0].IsNull(0))
	require.True(t, trail.Vecs[1].IsNull(0))
	require.Equal(t, float64(50), vector.GetFixedAt[float64](trail.Vecs[2], 0))

	trail.Clean(proc.Mp())
	h.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestHashJoinNullKeys(t *testing.T) {
	proc := testutil.NewProc()

	left := leftTestSchema().NewBatch()
	require.NoError(t, vector.Append(left.Vecs[0], int64(0), true, proc.Mp()))
	require.NoError(t, vector.AppendBytes(left.Vecs[1], []byte("x"), false, proc.Mp()))
	left.SetRowCount(1)

	right := rightTestSchema().NewBatch()
	require.NoError(t, vector.Append(right.Vecs[0], int64(1), false, proc.Mp()))
	require.NoError(t, vector.Append(right.Vecs[0], int64(0), true, proc.Mp()))
	require.NoError(t, vector.Append(right.Vecs[1], float64(10), false, proc.Mp()))
	require.NoError(t, vector.Append(right.Vecs[1], float64(11), false, proc.Mp()))
	right.SetRowCount(2)

	h, err := NewHashJoin(FullOuter, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)
	require.NotNil(t, h.ResultSchema(leftTestSchema()))
	require.NoError(t, h.Build(proc, []*batch.Batch{right}))
	right.Clean(proc.Mp())

	// the null key stays out of the table
	require.Equal(t, uint64(1), h.JoinMap().GroupCount())

	bats, err := h.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())
	res := flattenRows(t, proc, bats)
	require.Equal(t, 1, res.RowCount())
	require.True(t, res.Vecs[0].IsNull(0))
	require.Equal(t, "x", res.Vecs[1].GetStringAt(0))
	require.True(t, res.Vecs[2].IsNull(0))
	res.Clean(proc.Mp())

	// both right rows were never matched, the null keyed one included
	bats, err = h.Trailing(proc, 0)
	require.NoError(t, err)
	trail := flattenRows(t, proc, bats)
	require.Equal(t, 2, trail.RowCount())
	require.Equal(t, []float64{10, 11}, vector.MustFixedCol[float64](trail.Vecs[2]))

	trail.Clean(proc.Mp())
	h.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestHashJoinBatchLimit(t *testing.T) {
	proc := testutil.NewProc()
	n := 10
	ids := make([]int64, n)
	names := make([]string, n)
	for i := range ids {
		ids[i] = int64(i)
		names[i] = "n"
	}
	left := leftTestBatch(proc, ids, names)
	right := rightTestBatch(proc, ids, make([]float64, n))

	h, err := NewHashJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)
	require.NotNil(t, h.ResultSchema(leftTestSchema()))
	require.NoError(t, h.Build(proc, []*batch.Batch{right}))
	right.Clean(proc.Mp())

	bats, err := h.Probe(proc, left, 4)
	require.NoError(t, err)
	left.Clean(proc.Mp())
	require.Equal(t, 3, len(bats))
	require.Equal(t, 4, bats[0].RowCount())
	require.Equal(t, 4, bats[1].RowCount())
	require.Equal(t, 2, bats[2].RowCount())

	for _, bat := range bats {
		bat.Clean(proc.Mp())
	}
	h.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestHashJoinErrors(t *testing.T) {
	proc := testutil.NewProc()

	_, err := NewHashJoin(Inner, []string{"id"}, nil, rightTestSchema())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	_, err = NewHashJoin(Inner, []string{"id"}, []string{"nope"}, rightTestSchema())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	h, err := NewHashJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)

	left := leftTestBatch(proc, []int64{1}, []string{"a"})
	defer left.Clean(proc.Mp())

	_, err = h.Probe(proc, left, 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	noKey := schema.NewWithNames([]string{"x"}, []types.Type{types.New(types.T_int64)})
	require.Nil(t, h.ResultSchema(noKey))
	_, err = h.Probe(proc, left, 0)
	require.Error(t, err)

	require.NotNil(t, h.ResultSchema(leftTestSchema()))
	_, err = h.Probe(proc, left, 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	right := rightTestBatch(proc, []int64{1}, []float64{10})
	require.NoError(t, h.Build(proc, []*batch.Batch{right}))
	err = h.Build(proc, []*batch.Batch{right})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
	right.Clean(proc.Mp())

	h.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}
