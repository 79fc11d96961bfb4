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

package order

import (
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/sql/colexec/value_scan"
	"github.com/matrixorigin/matrixflow/pkg/testutil"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
	"github.com/stretchr/testify/require"
)

func pairBatch(proc *process.Process, ids []int64, names []string) *batch.Batch {
	return testutil.NewBatchWithVectors([]*vector.Vector{
		testutil.NewInt64Vector(len(ids), types.New(types.T_int64), proc.Mp(), false, ids),
		testutil.NewStringVector(len(names), types.New(types.T_varchar), proc.Mp(), false, names),
	}, []string{"id", "name"})
}

func newOrderWith(keys []string, prefixLen int, bats ...*batch.Batch) *Order {
	child := value_scan.NewArgument()
	child.Batchs = bats
	order := NewArgument()
	order.Keys = keys
	order.PrefixLen = prefixLen
	order.AppendChild(child)
	return order
}

// drain runs the operator to the end and flattens every emitted batch
// into plain slices, counting the batches on the way.
func drain(t *testing.T, proc *process.Process, order *Order) (ids []int64, names []string, batches int) {
	t.Helper()
	for {
		res, err := order.Call(proc)
		require.NoError(t, err)
		if res.Status == vm.ExecStop {
			return
		}
		require.NotNil(t, res.Batch)
		batches++
		for i := 0; i < res.Batch.RowCount(); i++ {
			if res.Batch.Vecs[0].IsNull(uint64(i)) {
				ids = append(ids, -1)
			} else {
				ids = append(ids, vector.GetFixedAt[int64](res.Batch.Vecs[0], i))
			}
			if len(res.Batch.Vecs) > 1 {
				names = append(names, res.Batch.Vecs[1].GetStringAt(i))
			}
		}
	}
}

func TestOrderFullSort(t *testing.T) {
	defer leaktest.AfterTest(t)()
	proc := testutil.NewProc()

	order := newOrderWith([]string{"id"}, 0,
		pairBatch(proc, []int64{3, 1}, []string{"c", "a"}),
		pairBatch(proc, []int64{2}, []string{"b"}),
	)
	require.NoError(t, vm.Prepare(order, proc))

	ids, names, batches := drain(t, proc, order)
	require.Equal(t, 1, batches)
	require.Equal(t, []int64{1, 2, 3}, ids)
	require.Equal(t, []string{"a", "b", "c"}, names)

	vm.Free(order, proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestOrderTwoKeys(t *testing.T) {
	defer leaktest.AfterTest(t)()
	proc := testutil.NewProc()

	order := newOrderWith([]string{"id", "name"}, 0,
		pairBatch(proc, []int64{2, 1, 2, 1}, []string{"b", "x", "a", "y"}),
	)
	require.NoError(t, vm.Prepare(order, proc))

	ids, names, _ := drain(t, proc, order)
	require.Equal(t, []int64{1, 1, 2, 2}, ids)
	require.Equal(t, []string{"x", "y", "a", "b"}, names)

	vm.Free(order, proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestOrderCutsToBatchRows(t *testing.T) {
	defer leaktest.AfterTest(t)()
	proc := testutil.NewProc()
	proc.Lim.BatchRows = 4

	n := 10
	ids := make([]int64, n)
	names := make([]string, n)
	for i := range ids {
		ids[i] = int64(n - i)
		names[i] = "v"
	}
	order := newOrderWith([]string{"id"}, 0, pairBatch(proc, ids, names))
	require.NoError(t, vm.Prepare(order, proc))

	got, _, batches := drain(t, proc, order)
	require.Equal(t, 3, batches)
	want := make([]int64, n)
	for i := range want {
		want[i] = int64(i + 1)
	}
	require.Equal(t, want, got)

	vm.Free(order, proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestOrderFinishSort(t *testing.T) {
	defer leaktest.AfterTest(t)()
	proc := testutil.NewProc()

	// input already sorted by id; each id group gets its names sorted
	// and streams out as soon as the group closes, groups crossing
	// batch bounds included
	order := newOrderWith([]string{"id", "name"}, 1,
		pairBatch(proc, []int64{1, 1, 1, 2}, []string{"c", "a", "b", "z"}),
		pairBatch(proc, []int64{2, 3}, []string{"y", "x"}),
	)
	require.NoError(t, vm.Prepare(order, proc))

	ids, names, batches := drain(t, proc, order)
	require.Equal(t, 3, batches)
	require.Equal(t, []int64{1, 1, 1, 2, 2, 3}, ids)
	require.Equal(t, []string{"a", "b", "c", "y", "z", "x"}, names)

	vm.Free(order, proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestOrderNullsFirst(t *testing.T) {
	defer leaktest.AfterTest(t)()
	proc := testutil.NewProc()

	bat := batch.New([]string{"id"})
	bat.Vecs[0] = vector.NewVector(types.New(types.T_int64))
	require.NoError(t, vector.Append(bat.Vecs[0], int64(5), false, proc.Mp()))
	require.NoError(t, vector.Append(bat.Vecs[0], int64(0), true, proc.Mp()))
	require.NoError(t, vector.Append(bat.Vecs[0], int64(2), false, proc.Mp()))
	bat.SetRowCount(3)

	order := newOrderWith([]string{"id"}, 0, bat)
	require.NoError(t, vm.Prepare(order, proc))

	ids, _, _ := drain(t, proc, order)
	require.Equal(t, []int64{-1, 2, 5}, ids)

	vm.Free(order, proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestOrderMissingKey(t *testing.T) {
	defer leaktest.AfterTest(t)()
	proc := testutil.NewProc()

	order := newOrderWith([]string{"absent"}, 0,
		pairBatch(proc, []int64{1}, []string{"a"}),
	)
	require.NoError(t, vm.Prepare(order, proc))

	_, err := order.Call(proc)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	vm.Free(order, proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}
