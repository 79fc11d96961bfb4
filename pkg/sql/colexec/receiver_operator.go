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

// Package colexec holds the streaming operators pipelines are built
// from, one package per operator, plus the receiver plumbing the
// fan-in operators share.
package colexec

import (
	"reflect"

	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/logutil"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// ReceiverOperator pulls batches from the merge receivers of its
// process. Operators embed it in their container and drive it through
// InitReceiver and ReceiveFromAllRegs.
type ReceiverOperator struct {
	proc      *process.Process
	aliveCnt  int
	listeners []reflect.SelectCase
}

// InitReceiver starts listening on every merge receiver of proc. The
// 0th select case watches the process context so cancellation
// interrupts a blocked receive.
func (r *ReceiverOperator) InitReceiver(proc *process.Process) {
	r.proc = proc
	r.aliveCnt = len(proc.Reg.MergeReceivers)
	r.listeners = make([]reflect.SelectCase, r.aliveCnt+1)
	r.listeners[0] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(proc.Ctx.Done())}
	for i := 0; i < r.aliveCnt; i++ {
		r.listeners[i+1] = reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(proc.Reg.MergeReceivers[i].Ch),
		}
	}
}

// ReceiveFromAllRegs blocks until any live receiver yields a batch. A
// nil batch ends that sender's stream. The second result reports end
// of input: every stream ended or the process context is done.
func (r *ReceiverOperator) ReceiveFromAllRegs() (*batch.Batch, bool, error) {
	for {
		if r.aliveCnt == 0 {
			return nil, true, nil
		}
		chosen, value, ok := reflect.Select(r.listeners)
		if chosen == 0 {
			logutil.Debugf("process context done during merge receive")
			return nil, true, nil
		}
		if !ok {
			logutil.Errorf("children pipeline closed unexpectedly")
			r.removeChosen(chosen)
			return nil, true, nil
		}
		bat := (*batch.Batch)(value.UnsafePointer())
		if bat == nil {
			r.removeChosen(chosen)
			continue
		}
		if bat.IsEmpty() {
			bat.Clean(r.proc.Mp())
			continue
		}
		return bat, false, nil
	}
}

// ReceiveFromSingleReg blocks on one receiver only.
func (r *ReceiverOperator) ReceiveFromSingleReg(regIdx int) (*batch.Batch, bool, error) {
	select {
	case <-r.proc.Ctx.Done():
		return nil, true, nil
	case bat, ok := <-r.proc.Reg.MergeReceivers[regIdx].Ch:
		if !ok || bat == nil {
			return nil, true, nil
		}
		return bat, false, nil
	}
}

// FreeMergeTypeOperator drains whatever the senders still push, so a
// sender blocked on a full channel can finish its own teardown.
func (r *ReceiverOperator) FreeMergeTypeOperator(_ bool) {
	if r.proc == nil {
		return
	}
	if len(r.listeners) > 0 {
		// the process context is done by the time teardown runs, drop
		// its waiter so only the data channels remain
		r.listeners = r.listeners[1:]
	}
	for r.aliveCnt > 0 {
		chosen, value, ok := reflect.Select(r.listeners)
		if !ok {
			r.removeChosen(chosen)
			continue
		}
		bat := (*batch.Batch)(value.UnsafePointer())
		if bat == nil {
			r.removeChosen(chosen)
			continue
		}
		bat.Clean(r.proc.Mp())
	}
}

func (r *ReceiverOperator) removeChosen(idx int) {
	r.listeners = append(r.listeners[:idx], r.listeners[idx+1:]...)
	r.aliveCnt--
}
