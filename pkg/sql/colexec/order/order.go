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
	"bytes"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/partition"
	"github.com/matrixorigin/matrixflow/pkg/sort"
	"github.com/matrixorigin/matrixflow/pkg/vm"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

func (order *Order) String(buf *bytes.Buffer) {
	buf.WriteString("τ([")
	for i, k := range order.Keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(k)
	}
	buf.WriteString("])")
}

func (order *Order) Prepare(_ *process.Process) error {
	return nil
}

func (order *Order) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	ctr := &order.ctr
	if ctr.emitted != nil {
		ctr.emitted.Clean(proc.Mp())
		ctr.emitted = nil
	}

	result := vm.NewCallResult()
	for {
		if len(ctr.outs) > 0 {
			ctr.emitted = ctr.outs[0]
			ctr.outs = ctr.outs[1:]
			result.Batch = ctr.emitted
			return result, nil
		}
		if ctr.state == ended {
			result.Status = vm.ExecStop
			return result, nil
		}

		res, err := vm.ChildrenCall(order.Children[0], proc)
		if err != nil {
			return res, err
		}
		if res.Batch == nil {
			if err := ctr.flush(order, proc); err != nil {
				return result, err
			}
			ctr.state = ended
			continue
		}
		if res.Batch.IsEmpty() {
			continue
		}
		if ctr.keyIdx == nil {
			if err := ctr.bind(order, res.Batch, proc); err != nil {
				return result, err
			}
		}
		if err := ctr.absorb(order, res.Batch, proc); err != nil {
			return result, err
		}
	}
}

// bind resolves the key names against the column layout of the first
// batch. Every later batch shares that layout.
func (ctr *container) bind(order *Order, bat *batch.Batch, proc *process.Process) error {
	ctr.keyIdx = make([]int, 0, len(order.Keys))
	for _, key := range order.Keys {
		pos := -1
		for i, attr := range bat.Attrs {
			if attr == key {
				pos = i
				break
			}
		}
		if pos < 0 {
			return moerr.NewInternalError(proc.Ctx, "sort key %q not found in the input", key)
		}
		ctr.keyIdx = append(ctr.keyIdx, pos)
	}
	return nil
}

// absorb folds one input batch into the current group. Without a
// prefix everything is one group. With a prefix, each run of equal
// prefix values is a group; a group ending inside bat is flushed at
// once, the open tail stays buffered for the next batch.
func (ctr *container) absorb(order *Order, bat *batch.Batch, proc *process.Process) error {
	if order.PrefixLen == 0 {
		var err error
		ctr.buf, err = ctr.buf.Append(proc.Ctx, proc.Mp(), bat)
		return err
	}

	prefix := ctr.keyIdx[:order.PrefixLen]
	n := bat.RowCount()
	for i := 0; i < n; {
		j := i + 1
		for j < n && prefixEqual(bat, j-1, bat, j, prefix) {
			j++
		}
		if ctr.buf != nil && ctr.buf.RowCount() > 0 && !prefixEqual(ctr.buf, 0, bat, i, prefix) {
			if err := ctr.flush(order, proc); err != nil {
				return err
			}
		}
		w, err := bat.Window(i, j, proc.Mp())
		if err != nil {
			return err
		}
		if ctr.buf == nil {
			ctr.buf = w
		} else {
			if ctr.buf, err = ctr.buf.Append(proc.Ctx, proc.Mp(), w); err != nil {
				w.Clean(proc.Mp())
				return err
			}
			w.Clean(proc.Mp())
		}
		if j < n {
			if err := ctr.flush(order, proc); err != nil {
				return err
			}
		}
		i = j
	}
	return nil
}

// flush sorts the buffered group by the keys past the prefix and
// queues it for emission, cut to the process batch row limit.
func (ctr *container) flush(order *Order, proc *process.Process) error {
	if ctr.buf == nil || ctr.buf.RowCount() == 0 {
		return nil
	}
	bat := ctr.buf
	ctr.buf = nil

	if rest := ctr.keyIdx[order.PrefixLen:]; len(rest) > 0 {
		if err := sortBatch(bat, rest, proc); err != nil {
			bat.Clean(proc.Mp())
			return err
		}
	}

	limit := int(proc.Lim.BatchRows)
	if limit <= 0 {
		limit = process.DefaultBatchSize
	}
	if bat.RowCount() <= limit {
		ctr.outs = append(ctr.outs, bat)
		return nil
	}
	for start, n := 0, bat.RowCount(); start < n; start += limit {
		end := start + limit
		if end > n {
			end = n
		}
		w, err := bat.Window(start, end, proc.Mp())
		if err != nil {
			bat.Clean(proc.Mp())
			return err
		}
		ctr.outs = append(ctr.outs, w)
	}
	bat.Clean(proc.Mp())
	return nil
}

// sortBatch reorders bat in place so the keyIdx columns come out
// ascending, the first key outermost.
func sortBatch(bat *batch.Batch, keyIdx []int, proc *process.Process) error {
	vecs := make([]*vector.Vector, len(keyIdx))
	for i, idx := range keyIdx {
		vecs[i] = bat.Vecs[idx]
	}

	sels := make([]int64, bat.RowCount())
	for i := range sels {
		sels[i] = int64(i)
	}
	sort.Sort(false, sels, vecs[0])
	if len(vecs) > 1 {
		ps := make([]int64, 0, 16)
		ds := make([]bool, len(sels))
		ovec := vecs[0]
		for i, j := 1, len(vecs); i < j; i++ {
			ps = partition.Partition(sels, ds, ps, ovec)
			vec := vecs[i]
			for m, q := 0, len(ps); m < q; m++ {
				if m == q-1 {
					sort.Sort(false, sels[ps[m]:], vec)
				} else {
					sort.Sort(false, sels[ps[m]:ps[m+1]], vec)
				}
			}
			ovec = vec
		}
	}
	return bat.Shuffle(sels, proc.Mp())
}

// prefixEqual reports whether two rows carry the same values in every
// prefix column, null matching null.
func prefixEqual(lbat *batch.Batch, lrow int, rbat *batch.Batch, rrow int, prefix []int) bool {
	for _, idx := range prefix {
		if !equalAt(lbat.Vecs[idx], lrow, rbat.Vecs[idx], rrow) {
			return false
		}
	}
	return true
}

func equalAt(lvec *vector.Vector, lrow int, rvec *vector.Vector, rrow int) bool {
	lnull, rnull := lvec.IsNull(uint64(lrow)), rvec.IsNull(uint64(rrow))
	if lnull || rnull {
		return lnull && rnull
	}
	switch lvec.GetType().Oid {
	case types.T_bool:
		return vector.GetFixedAt[bool](lvec, lrow) == vector.GetFixedAt[bool](rvec, rrow)
	case types.T_int32:
		return vector.GetFixedAt[int32](lvec, lrow) == vector.GetFixedAt[int32](rvec, rrow)
	case types.T_int64:
		return vector.GetFixedAt[int64](lvec, lrow) == vector.GetFixedAt[int64](rvec, rrow)
	case types.T_float64:
		return vector.GetFixedAt[float64](lvec, lrow) == vector.GetFixedAt[float64](rvec, rrow)
	case types.T_datetime:
		return vector.GetFixedAt[types.Datetime](lvec, lrow) == vector.GetFixedAt[types.Datetime](rvec, rrow)
	case types.T_varchar:
		return bytes.Equal(lvec.GetBytesAt(lrow), rvec.GetBytesAt(rrow))
	}
	return false
}
