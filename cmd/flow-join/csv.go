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

package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/common/mpool"
	"github.com/matrixorigin/matrixflow/pkg/config"
	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
	"github.com/matrixorigin/simdcsv"
)

// nullToken marks a null field, both reading and writing. An empty
// field also reads as null for every type but varchar.
const nullToken = `\N`

func readBatches(proc *process.Process, sch *schema.Schema, path string, rowLimit int) ([]*batch.Batch, error) {
	var bats []*batch.Batch
	err := readCSV(proc, sch, path, rowLimit, func(bat *batch.Batch) error {
		bats = append(bats, bat)
		return nil
	})
	if err != nil {
		for _, bat := range bats {
			bat.Clean(proc.Mp())
		}
		return nil, err
	}
	return bats, nil
}

// fillFromCSV streams path into a filled joiner batch by batch.
func fillFromCSV(proc *process.Process, fill func(*process.Process, *batch.Batch) error,
	sch *schema.Schema, path string, rowLimit int) error {
	return readCSV(proc, sch, path, rowLimit, func(bat *batch.Batch) error {
		err := fill(proc, bat)
		bat.Clean(proc.Mp())
		return err
	})
}

func readTotalsRow(proc *process.Process, sch *schema.Schema, path string) (*batch.Batch, error) {
	bats, err := readBatches(proc, sch, path, 2)
	if err != nil {
		return nil, err
	}
	if len(bats) != 1 || bats[0].RowCount() != 1 {
		for _, bat := range bats {
			bat.Clean(proc.Mp())
		}
		return nil, moerr.NewInvalidInput(context.TODO(), "%s wants exactly one totals row", path)
	}
	return bats[0], nil
}

// readCSV hands path to use in chunks of rowLimit rows; use owns each
// batch it receives.
func readCSV(proc *process.Process, sch *schema.Schema, path string, rowLimit int, use func(*batch.Batch) error) error {
	if rowLimit <= 0 {
		rowLimit = config.DefaultBatchRowLimit
	}
	f, err := os.Open(path)
	if err != nil {
		return moerr.NewInvalidInput(context.TODO(), "%s: %s", path, err)
	}
	defer f.Close()

	reader := simdcsv.NewReaderWithOptions(f, ',', '#', true, true)
	records := make([][]string, rowLimit)
	base := 0
	for {
		var cnt int
		records, cnt, err = reader.Read(rowLimit, proc.Ctx, records)
		if err != nil {
			return moerr.NewInvalidInput(context.TODO(), "%s: %s", path, err)
		}
		if cnt > 0 {
			bat, berr := buildBatch(proc, sch, path, base, records[:cnt])
			if berr != nil {
				return berr
			}
			if berr = use(bat); berr != nil {
				return berr
			}
			base += cnt
		}
		if cnt < rowLimit {
			return nil
		}
	}
}

func buildBatch(proc *process.Process, sch *schema.Schema, path string, base int, records [][]string) (*batch.Batch, error) {
	bat := sch.NewBatch()
	for i, record := range records {
		if len(record) != sch.Len() {
			bat.Clean(proc.Mp())
			return nil, moerr.NewInvalidInput(context.TODO(), "%s row %d has %d fields, want %d",
				path, base+i+1, len(record), sch.Len())
		}
		for col := range record {
			if err := appendField(bat.Vecs[col], sch.Attrs[col].Typ, record[col], proc.Mp()); err != nil {
				bat.Clean(proc.Mp())
				return nil, moerr.NewInvalidInput(context.TODO(), "%s row %d column %s: %s",
					path, base+i+1, sch.Attrs[col].Name, err)
			}
		}
	}
	bat.SetRowCount(len(records))
	return bat, nil
}

func appendField(vec *vector.Vector, typ types.Type, field string, mp *mpool.MPool) error {
	if field == nullToken || (field == "" && typ.Oid != types.T_varchar) {
		return vector.AppendDefault(vec, true, mp)
	}
	switch typ.Oid {
	case types.T_bool:
		v, err := strconv.ParseBool(field)
		if err != nil {
			return err
		}
		return vector.Append(vec, v, false, mp)
	case types.T_int32:
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return err
		}
		return vector.Append(vec, int32(v), false, mp)
	case types.T_int64:
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return err
		}
		return vector.Append(vec, v, false, mp)
	case types.T_float64:
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return err
		}
		return vector.Append(vec, v, false, mp)
	case types.T_datetime:
		v, err := types.ParseDatetime(field)
		if err != nil {
			return err
		}
		return vector.Append(vec, v, false, mp)
	case types.T_varchar:
		return vector.AppendBytes(vec, []byte(field), false, mp)
	}
	return moerr.NewInternalErrorNoCtx("no csv decoder for type %s", typ)
}

func formatField(vec *vector.Vector, typ types.Type, i int) string {
	if vec.IsNull(uint64(i)) {
		return nullToken
	}
	switch typ.Oid {
	case types.T_bool:
		return strconv.FormatBool(vector.GetFixedAt[bool](vec, i))
	case types.T_int32:
		return strconv.FormatInt(int64(vector.GetFixedAt[int32](vec, i)), 10)
	case types.T_int64:
		return strconv.FormatInt(vector.GetFixedAt[int64](vec, i), 10)
	case types.T_float64:
		return strconv.FormatFloat(vector.GetFixedAt[float64](vec, i), 'g', -1, 64)
	case types.T_datetime:
		return vector.GetFixedAt[types.Datetime](vec, i).String()
	case types.T_varchar:
		return vec.GetStringAt(i)
	}
	return ""
}

// csvSink writes delivered rows as csv. Branches deliver
// concurrently; totals rows are held back so they always close the
// output.
type csvSink struct {
	mu     sync.Mutex
	w      *csv.Writer
	sch    *schema.Schema
	record []string
	rows   int64
	totals [][]string
}

func newCSVSink(w io.Writer, sch *schema.Schema) *csvSink {
	return &csvSink{
		w:      csv.NewWriter(w),
		sch:    sch,
		record: make([]string, sch.Len()),
	}
}

func (s *csvSink) deliver(_ int, onTotals bool, bat *batch.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < bat.RowCount(); i++ {
		for col := range s.record {
			s.record[col] = formatField(bat.Vecs[col], s.sch.Attrs[col].Typ, i)
		}
		if onTotals {
			s.totals = append(s.totals, append([]string(nil), s.record...))
			continue
		}
		if err := s.w.Write(s.record); err != nil {
			return err
		}
		s.rows++
	}
	return nil
}

func (s *csvSink) finish() error {
	for _, rec := range s.totals {
		if err := s.w.Write(rec); err != nil {
			return err
		}
	}
	s.w.Flush()
	return s.w.Error()
}
