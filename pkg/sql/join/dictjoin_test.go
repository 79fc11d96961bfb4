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
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func TestDictJoinProbe(t *testing.T) {
	proc := testutil.NewProc()
	d, err := NewDictJoin(LeftOuter, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)
	require.True(t, d.Filled())

	right := rightTestBatch(proc, []int64{1, 2}, []float64{10, 20})
	require.NoError(t, d.Fill(proc, right))
	right.Clean(proc.Mp())
	right = rightTestBatch(proc, []int64{2}, []float64{21})
	require.NoError(t, d.Fill(proc, right))
	right.Clean(proc.Mp())
	require.Equal(t, 3, d.RowCount())

	require.NotNil(t, d.ResultSchema(leftTestSchema()))
	left := leftTestBatch(proc, []int64{2, 9}, []string{"b", "z"})
	bats, err := d.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())

	res := flattenRows(t, proc, bats)
	require.Equal(t, 3, res.RowCount())
	require.Equal(t, []float64{20, 21}, vector.MustFixedCol[float64](res.Vecs[2])[:2])
	require.True(t, res.Vecs[2].IsNull(2))
	require.Equal(t, "z", res.Vecs[1].GetStringAt(2))

	res.Clean(proc.Mp())
	d.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestDictJoinTrailing(t *testing.T) {
	proc := testutil.NewProc()
	d, err := NewDictJoin(RightOuter, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)

	right := rightTestBatch(proc, []int64{5, 1}, []float64{50, 10})
	require.NoError(t, d.Fill(proc, right))
	right.Clean(proc.Mp())

	require.NotNil(t, d.ResultSchema(leftTestSchema()))
	left := leftTestBatch(proc, []int64{1}, []string{"a"})
	bats, err := d.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())
	res := flattenRows(t, proc, bats)
	require.Equal(t, 1, res.RowCount())
	require.Equal(t, float64(10), vector.GetFixedAt[float64](res.Vecs[2], 0))
	res.Clean(proc.Mp())

	bats, err = d.Trailing(proc, 0)
	require.NoError(t, err)
	trail := flattenRows(t, proc, bats)
	require.Equal(t, 1, trail.RowCount())
	require.True(t, trail.Vecs[0].IsNull(0))
	require.Equal(t, float64(50), vector.GetFixedAt[float64](trail.Vecs[2], 0))

	trail.Clean(proc.Mp())
	d.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestDictJoinTotals(t *testing.T) {
	proc := testutil.NewProc()
	d, err := NewDictJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)
	require.False(t, d.HasTotals())
	require.NotNil(t, d.ResultSchema(leftTestSchema()))

	totals := rightTestBatch(proc, []int64{0}, []float64{77})
	require.NoError(t, d.SetTotals(proc, totals))
	totals.Clean(proc.Mp())
	require.True(t, d.HasTotals())

	inTotals := leftTestBatch(proc, []int64{9}, []string{"sum"})
	out, err := d.ApplyTotals(proc, inTotals)
	require.NoError(t, err)
	inTotals.Clean(proc.Mp())
	require.Equal(t, 1, out.RowCount())
	require.Equal(t, float64(77), vector.GetFixedAt[float64](out.Vecs[2], 0))

	out.Clean(proc.Mp())
	d.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestDictJoinErrors(t *testing.T) {
	proc := testutil.NewProc()
	d, err := NewDictJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema())
	require.NoError(t, err)

	err = d.Build(proc, nil)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	left := leftTestBatch(proc, []int64{1}, []string{"a"})
	_, err = d.Probe(proc, left, 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
	left.Clean(proc.Mp())

	d.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}
