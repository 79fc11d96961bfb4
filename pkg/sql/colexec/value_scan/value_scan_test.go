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

package value_scan

import (
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/testutil"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
	"github.com/stretchr/testify/require"
)

func intBatch(proc *process.Process, vs ...int64) *batch.Batch {
	return testutil.NewBatchWithVectors([]*vector.Vector{
		testutil.NewInt64Vector(len(vs), types.New(types.T_int64), proc.Mp(), false, vs),
	}, []string{"id"})
}

func TestValueScan(t *testing.T) {
	defer leaktest.AfterTest(t)()
	proc := testutil.NewProc()

	valueScan := NewArgument()
	valueScan.Batchs = []*batch.Batch{
		intBatch(proc, 1, 2),
		intBatch(proc, 3),
	}
	require.NoError(t, valueScan.Prepare(proc))

	res, err := valueScan.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 2, res.Batch.RowCount())

	res, err = valueScan.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 1, res.Batch.RowCount())
	require.Equal(t, int64(3), vector.GetFixedAt[int64](res.Batch.Vecs[0], 0))

	res, err = valueScan.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecStop, res.Status)
	require.Nil(t, res.Batch)

	valueScan.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestValueScanCancel(t *testing.T) {
	defer leaktest.AfterTest(t)()
	proc := testutil.NewProc()

	valueScan := NewArgument()
	valueScan.Batchs = []*batch.Batch{intBatch(proc, 1)}
	require.NoError(t, valueScan.Prepare(proc))

	proc.Cancel()
	res, err := valueScan.Call(proc)
	require.Error(t, err)
	require.Equal(t, vm.ExecStop, res.Status)

	valueScan.Free(proc, false, nil)
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}
