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
	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// emitter accumulates joined rows and cuts the result into batches of
// at most limit rows.
type emitter struct {
	sch       *schema.Schema
	leftWidth int
	limit     int
	mp        *mpool.MPool

	ready []*batch.Batch
	cur   *batch.Batch
}

func newEmitter(sch *schema.Schema, leftWidth, limit int, mp *mpool.MPool) *emitter {
	if limit <= 0 {
		limit = process.DefaultBatchSize
	}
	return &emitter{
		sch:       sch,
		leftWidth: leftWidth,
		limit:     limit,
		mp:        mp,
	}
}

func (e *emitter) batch() *batch.Batch {
	if e.cur == nil {
		e.cur = e.sch.NewBatch()
	}
	return e.cur
}

func (e *emitter) endRow() {
	e.cur.AddRowCount(1)
	if e.cur.RowCount() >= e.limit {
		e.ready = append(e.ready, e.cur)
		e.cur = nil
	}
}

// joinedRow appends one output row. A negative lrow or rrow leaves
// that side's columns null.
func (e *emitter) joinedRow(lbat *batch.Batch, lrow int, rbat *batch.Batch, rrow int, rightCols []int) error {
	bat := e.batch()
	for c := 0; c < e.leftWidth; c++ {
		if lrow < 0 {
			if err := vector.AppendDefault(bat.Vecs[c], true, e.mp); err != nil {
				return err
			}
			continue
		}
		if err := bat.Vecs[c].UnionOne(lbat.Vecs[c], int64(lrow), e.mp); err != nil {
			return err
		}
	}
	for k, rc := range rightCols {
		vec := bat.Vecs[e.leftWidth+k]
		if rrow < 0 {
			if err := vector.AppendDefault(vec, true, e.mp); err != nil {
				return err
			}
			continue
		}
		if err := vec.UnionOne(rbat.Vecs[rc], int64(rrow), e.mp); err != nil {
			return err
		}
	}
	e.endRow()
	return nil
}

// joinedRowPayload appends one output row whose right part comes from
// an encoded payload.
func (e *emitter) joinedRowPayload(lbat *batch.Batch, lrow int, payload []byte) error {
	bat := e.batch()
	for c := 0; c < e.leftWidth; c++ {
		if lrow < 0 {
			if err := vector.AppendDefault(bat.Vecs[c], true, e.mp); err != nil {
				return err
			}
			continue
		}
		if err := bat.Vecs[c].UnionOne(lbat.Vecs[c], int64(lrow), e.mp); err != nil {
			return err
		}
	}
	if err := DecodeRowInto(payload, bat.Vecs[e.leftWidth:], e.mp); err != nil {
		return err
	}
	e.endRow()
	return nil
}

// finish hands out everything accumulated, the last batch possibly
// short.
func (e *emitter) finish() []*batch.Batch {
	if e.cur != nil && e.cur.RowCount() > 0 {
		e.ready = append(e.ready, e.cur)
	}
	e.cur = nil
	out := e.ready
	e.ready = nil
	return out
}

// takeReady hands out only the full batches, keeping the open one.
func (e *emitter) takeReady() []*batch.Batch {
	out := e.ready
	e.ready = nil
	return out
}

func (e *emitter) free() {
	for _, bat := range e.ready {
		bat.Clean(e.mp)
	}
	e.ready = nil
	if e.cur != nil {
		e.cur.Clean(e.mp)
		e.cur = nil
	}
}

// joinedLayout derives the output layout Probe and ApplyTotals hand
// back: the input batch's columns followed by right's non-key
// columns.
func joinedLayout(in *batch.Batch, right *schema.Schema, rightCols []int) *schema.Schema {
	attrs := make([]schema.Attribute, 0, in.VectorCount()+len(rightCols))
	for i, vec := range in.Vecs {
		name := ""
		if i < len(in.Attrs) {
			name = in.Attrs[i]
		}
		attrs = append(attrs, schema.Attribute{Name: name, Typ: *vec.GetType()})
	}
	for _, rc := range rightCols {
		attrs = append(attrs, right.Attrs[rc])
	}
	return schema.New(attrs...)
}

// applyTotalsRow joins the pipeline's totals row with the joiner's
// totals values, defaults where none exist.
func applyTotalsRow(proc *process.Process, in *batch.Batch, right *schema.Schema, rightCols []int, rightTotals *batch.Batch) (*batch.Batch, error) {
	em := newEmitter(joinedLayout(in, right, rightCols), in.VectorCount(), 1, proc.Mp())
	lrow, rrow := -1, -1
	if in.RowCount() > 0 {
		lrow = 0
	}
	if rightTotals != nil && rightTotals.RowCount() > 0 {
		rrow = 0
	}
	if err := em.joinedRow(in, lrow, rightTotals, rrow, rightCols); err != nil {
		em.free()
		return nil, err
	}
	return em.finish()[0], nil
}
