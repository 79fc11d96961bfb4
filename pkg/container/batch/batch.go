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
	"bytes"
	"context"
	"fmt"
	"sync/atomic"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/logutil"
)

// Batch represents a part of a relation: a list of attributes and one
// column vector per attribute, all of the same row count.
type Batch struct {
	// Cnt is the reference count, default is 1
	Cnt int64
	// Attrs is the column name list
	Attrs []string
	// Vecs is the column data
	Vecs []*vector.Vector

	rowCount int
}

func New(attrs []string) *Batch {
	return &Batch{
		Cnt:   1,
		Attrs: attrs,
		Vecs:  make([]*vector.Vector, len(attrs)),
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Cnt:  1,
		Vecs: make([]*vector.Vector, n),
	}
}

func (bat *Batch) RowCount() int {
	return bat.rowCount
}

func (bat *Batch) SetRowCount(rowCount int) {
	bat.rowCount = rowCount
}

func (bat *Batch) AddRowCount(rowCount int) {
	bat.rowCount += rowCount
}

func (bat *Batch) VectorCount() int {
	return len(bat.Vecs)
}

func (bat *Batch) GetVector(pos int32) *vector.Vector {
	return bat.Vecs[pos]
}

func (bat *Batch) SetVector(pos int32, vec *vector.Vector) {
	bat.Vecs[pos] = vec
}

func (bat *Batch) SetAttributes(attrs []string) {
	bat.Attrs = attrs
}

func (bat *Batch) IsEmpty() bool {
	return bat == nil || bat.rowCount == 0
}

// Shuffle reorders all columns of the batch in place following sels.
func (bat *Batch) Shuffle(sels []int64, mp *mpool.MPool) error {
	for _, vec := range bat.Vecs {
		if err := vec.Shuffle(sels, mp); err != nil {
			return err
		}
	}
	bat.rowCount = len(sels)
	return nil
}

// Window copies rows [start, end) of every column into a fresh batch.
func (bat *Batch) Window(start, end int, mp *mpool.MPool) (*Batch, error) {
	rbat := NewWithSize(len(bat.Vecs))
	rbat.SetAttributes(bat.Attrs)
	for i, vec := range bat.Vecs {
		w, err := vec.Window(start, end, mp)
		if err != nil {
			rbat.Clean(mp)
			return nil, err
		}
		rbat.Vecs[i] = w
	}
	rbat.rowCount = end - start
	return rbat, nil
}

// Append copies every row of b onto bat. A nil receiver starts a fresh
// copy of b.
func (bat *Batch) Append(ctx context.Context, mp *mpool.MPool, b *Batch) (*Batch, error) {
	if bat == nil {
		return b.Dup(mp)
	}
	if len(bat.Vecs) != len(b.Vecs) {
		return nil, moerr.NewInternalError(ctx, "unexpected error happens in batch append")
	}
	for i := range bat.Vecs {
		if err := bat.Vecs[i].UnionAll(b.Vecs[i], mp); err != nil {
			return bat, err
		}
	}
	bat.rowCount += b.rowCount
	return bat, nil
}

func (bat *Batch) Dup(mp *mpool.MPool) (*Batch, error) {
	rbat := NewWithSize(len(bat.Vecs))
	rbat.SetAttributes(bat.Attrs)
	for i, vec := range bat.Vecs {
		rvec := vector.NewVector(*vec.GetType())
		if err := rvec.UnionAll(vec, mp); err != nil {
			rbat.Clean(mp)
			return nil, err
		}
		rbat.Vecs[i] = rvec
	}
	rbat.rowCount = bat.rowCount
	return rbat, nil
}

func (bat *Batch) AddCnt(cnt int) {
	atomic.AddInt64(&bat.Cnt, int64(cnt))
}

func (bat *Batch) GetCnt() int64 {
	return atomic.LoadInt64(&bat.Cnt)
}

// Clean drops one reference and frees the columns once the count hits
// zero.
func (bat *Batch) Clean(mp *mpool.MPool) {
	if bat == nil {
		return
	}
	if atomic.LoadInt64(&bat.Cnt) == 0 {
		return
	}
	if atomic.AddInt64(&bat.Cnt, -1) > 0 {
		return
	}
	for _, vec := range bat.Vecs {
		if vec != nil {
			vec.Free(mp)
		}
	}
	bat.Attrs = nil
	bat.Vecs = nil
	bat.rowCount = 0
}

func (bat *Batch) String() string {
	var buf bytes.Buffer

	for i, vec := range bat.Vecs {
		buf.WriteString(fmt.Sprintf("%d : %s\n", i, vec.String()))
	}
	return buf.String()
}

func (bat *Batch) Log(tag string) {
	if bat == nil || bat.rowCount < 1 {
		return
	}
	logutil.Infof("\n" + tag + "\n" + bat.String())
}
