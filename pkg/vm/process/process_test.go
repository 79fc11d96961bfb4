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

package process

import (
	"context"
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	mp := mpool.MustNewZero()
	proc := New(context.TODO(), mp)
	require.NotNil(t, proc.Ctx)
	require.NotNil(t, proc.MessageBoard)
	require.Equal(t, mp, proc.GetMPool())
	require.Equal(t, int64(DefaultBatchSize), proc.Lim.BatchRows)

	proc.Cancel()
	select {
	case <-proc.Ctx.Done():
	default:
		t.Fatal("cancel should end the process context")
	}
}

func TestNewFromProc(t *testing.T) {
	mp := mpool.MustNewZero()
	top := New(context.TODO(), mp)
	child := NewFromProc(top, top.Ctx, 2)

	require.Len(t, child.Reg.MergeReceivers, 2)
	require.Equal(t, top.MessageBoard, child.MessageBoard)
	require.Equal(t, mp, child.Mp())

	// cancelling the top process reaches the child receivers
	top.Cancel()
	select {
	case <-child.Reg.MergeReceivers[0].Ctx.Done():
	default:
		t.Fatal("child receiver context should follow the parent")
	}
}

func TestCleanChannel(t *testing.T) {
	mp := mpool.MustNewZero()
	top := New(context.TODO(), mp)
	child := NewFromProc(top, top.Ctx, 1)

	bat := batch.New([]string{"a"})
	bat.Vecs[0] = vector.NewVector(types.New(types.T_int64))
	require.NoError(t, vector.Append[int64](bat.Vecs[0], 1, false, mp))
	bat.SetRowCount(1)

	reg := child.Reg.MergeReceivers[0]
	reg.Ch <- bat
	reg.CleanChannel(mp)
	require.Equal(t, 0, len(reg.Ch))
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestNilProcPool(t *testing.T) {
	var proc *Process
	require.NotNil(t, proc.GetMPool())
}
