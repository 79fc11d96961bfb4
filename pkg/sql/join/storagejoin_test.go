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
	"strings"
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func TestStorageJoinProbe(t *testing.T) {
	proc := testutil.NewProc()
	s, err := NewStorageJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema(), t.TempDir())
	require.NoError(t, err)
	require.True(t, s.Filled())

	right := rightTestBatch(proc, []int64{1, 2, 2}, []float64{10, 20, 21})
	require.NoError(t, s.Fill(proc, right))
	right.Clean(proc.Mp())
	require.Equal(t, uint64(3), s.RowCount())

	require.NotNil(t, s.ResultSchema(leftTestSchema()))
	left := leftTestBatch(proc, []int64{2, 9}, []string{"b", "z"})
	bats, err := s.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())

	res := flattenRows(t, proc, bats)
	require.Equal(t, 2, res.RowCount())
	require.Equal(t, []int64{2, 2}, vector.MustFixedCol[int64](res.Vecs[0]))
	require.Equal(t, []float64{20, 21}, vector.MustFixedCol[float64](res.Vecs[2]))

	res.Clean(proc.Mp())
	s.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestStorageJoinTrailing(t *testing.T) {
	proc := testutil.NewProc()
	s, err := NewStorageJoin(FullOuter, []string{"id"}, []string{"id"}, rightTestSchema(), t.TempDir())
	require.NoError(t, err)

	right := rightTestSchema().NewBatch()
	require.NoError(t, vector.Append(right.Vecs[0], int64(1), false, proc.Mp()))
	require.NoError(t, vector.Append(right.Vecs[0], int64(0), true, proc.Mp()))
	require.NoError(t, vector.Append(right.Vecs[0], int64(5), false, proc.Mp()))
	require.NoError(t, vector.AppendList(right.Vecs[1], []float64{10, 44, 50}, nil, proc.Mp()))
	right.SetRowCount(3)
	require.NoError(t, s.Fill(proc, right))
	right.Clean(proc.Mp())

	require.NotNil(t, s.ResultSchema(leftTestSchema()))
	left := leftTestBatch(proc, []int64{1}, []string{"a"})
	bats, err := s.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())
	res := flattenRows(t, proc, bats)
	require.Equal(t, 1, res.RowCount())
	res.Clean(proc.Mp())

	// the probed row is gone; the null keyed and the unmatched row
	// remain, in encoded key order
	bats, err = s.Trailing(proc, 0)
	require.NoError(t, err)
	trail := flattenRows(t, proc, bats)
	require.Equal(t, 2, trail.RowCount())
	require.True(t, trail.Vecs[0].IsNull(0))
	require.True(t, trail.Vecs[1].IsNull(0))
	require.Equal(t, []float64{44, 50}, vector.MustFixedCol[float64](trail.Vecs[2]))

	trail.Clean(proc.Mp())
	s.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestStorageJoinReopen(t *testing.T) {
	proc := testutil.NewProc()
	dir := t.TempDir()

	s, err := NewStorageJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema(), dir)
	require.NoError(t, err)
	right := rightTestBatch(proc, []int64{7}, []float64{70})
	require.NoError(t, s.Fill(proc, right))
	right.Clean(proc.Mp())

	totals := rightTestBatch(proc, []int64{0}, []float64{70})
	require.NoError(t, s.SetTotals(proc, totals))
	totals.Clean(proc.Mp())
	s.Free(proc)

	s, err = NewStorageJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema(), dir)
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.RowCount())
	require.True(t, s.HasTotals())

	require.NotNil(t, s.ResultSchema(leftTestSchema()))
	left := leftTestBatch(proc, []int64{7}, []string{"g"})
	bats, err := s.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())
	res := flattenRows(t, proc, bats)
	require.Equal(t, 1, res.RowCount())
	require.Equal(t, float64(70), vector.GetFixedAt[float64](res.Vecs[2], 0))

	res.Clean(proc.Mp())
	s.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestStorageJoinTotals(t *testing.T) {
	proc := testutil.NewProc()
	s, err := NewStorageJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema(), t.TempDir())
	require.NoError(t, err)
	require.False(t, s.HasTotals())
	require.NotNil(t, s.ResultSchema(leftTestSchema()))

	inTotals := leftTestBatch(proc, []int64{100}, []string{"sum"})

	// without stored totals the right part defaults to null
	out, err := s.ApplyTotals(proc, inTotals)
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
	require.True(t, out.Vecs[2].IsNull(0))
	out.Clean(proc.Mp())

	totals := rightTestBatch(proc, []int64{0}, []float64{123})
	require.NoError(t, s.SetTotals(proc, totals))
	totals.Clean(proc.Mp())
	require.True(t, s.HasTotals())

	out, err = s.ApplyTotals(proc, inTotals)
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
	require.Equal(t, int64(100), vector.GetFixedAt[int64](out.Vecs[0], 0))
	require.Equal(t, "sum", out.Vecs[1].GetStringAt(0))
	require.Equal(t, float64(123), vector.GetFixedAt[float64](out.Vecs[2], 0))

	out.Clean(proc.Mp())
	inTotals.Clean(proc.Mp())
	s.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestStorageJoinCompressedPayload(t *testing.T) {
	proc := testutil.NewProc()
	rightSch := schema.NewWithNames(
		[]string{"id", "blob"},
		[]types.Type{types.New(types.T_int64), types.New(types.T_varchar)},
	)
	s, err := NewStorageJoin(Inner, []string{"id"}, []string{"id"}, rightSch, t.TempDir())
	require.NoError(t, err)

	blob := strings.Repeat("abcdefgh", 64)
	right := rightSch.NewBatch()
	require.NoError(t, vector.Append(right.Vecs[0], int64(1), false, proc.Mp()))
	require.NoError(t, vector.AppendBytes(right.Vecs[1], []byte(blob), false, proc.Mp()))
	right.SetRowCount(1)
	require.NoError(t, s.Fill(proc, right))
	right.Clean(proc.Mp())

	require.NotNil(t, s.ResultSchema(leftTestSchema()))
	left := leftTestBatch(proc, []int64{1}, []string{"a"})
	bats, err := s.Probe(proc, left, 0)
	require.NoError(t, err)
	left.Clean(proc.Mp())

	res := flattenRows(t, proc, bats)
	require.Equal(t, 1, res.RowCount())
	require.Equal(t, blob, res.Vecs[2].GetStringAt(0))

	res.Clean(proc.Mp())
	s.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestStorageJoinErrors(t *testing.T) {
	proc := testutil.NewProc()
	s, err := NewStorageJoin(Inner, []string{"id"}, []string{"id"}, rightTestSchema(), t.TempDir())
	require.NoError(t, err)

	err = s.Build(proc, nil)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	left := leftTestBatch(proc, []int64{1}, []string{"a"})
	_, err = s.Probe(proc, left, 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
	left.Clean(proc.Mp())

	bad := leftTestBatch(proc, []int64{1, 2}, []string{"a", "b"})
	err = s.SetTotals(proc, bad)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	bad.Clean(proc.Mp())

	s.Free(proc)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}
