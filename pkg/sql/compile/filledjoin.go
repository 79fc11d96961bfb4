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

package compile

import (
	"fmt"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/sql/join"
	"github.com/matrixorigin/matrixflow/pkg/vm/pipeline"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

var _ Step = new(FilledJoinStep)

// FilledJoinStep joins one input stream against a joiner whose right
// side was filled before the query, such as a dictionary or a
// storage-backed side table. The step never builds the joiner and
// never frees it; the filled side outlives the query.
type FilledJoinStep struct {
	input *schema.Schema
	out   *schema.Schema
	j     join.Joiner

	maxRowCount int
}

// NewFilledJoinStep plans a join of the input against the pre-filled
// j. maxRowCount caps output batches.
func NewFilledJoinStep(input *schema.Schema, j join.Joiner, maxRowCount int) (*FilledJoinStep, error) {
	if !j.Filled() {
		return nil, moerr.NewInternalErrorNoCtx("filled join step wants a pre-filled joiner, %s is not", j.Name())
	}
	return &FilledJoinStep{
		input:       input,
		out:         j.ResultSchema(input),
		j:           j,
		maxRowCount: maxRowCount,
	}, nil
}

func (step *FilledJoinStep) OutputSchema() *schema.Schema {
	return step.out
}

func (step *FilledJoinStep) Joiner() join.Joiner {
	return step.j
}

func (step *FilledJoinStep) UpdateInputSchema(s *schema.Schema, idx int) error {
	if idx != 0 {
		return moerr.NewInternalErrorNoCtx("filled join step has one input, no input %d", idx)
	}
	step.input = s
	step.out = step.j.ResultSchema(s)
	return nil
}

func (step *FilledJoinStep) Describe() string {
	return fmt.Sprintf("%s join against filled %s", step.j.Kind(), step.j.Name())
}

func (step *FilledJoinStep) Traits() Traits {
	return Traits{
		PreservesStreamCount: true,
	}
}

// Materialize attaches the joiner to every branch of the input
// pipeline. When the joiner carries a totals row and the input has no
// totals branch, one is synthesized so the row has somewhere to land.
func (step *FilledJoinStep) Materialize(proc *process.Process, ins ...*pipeline.Pipeline) (*pipeline.Pipeline, error) {
	if len(ins) != 1 {
		return nil, moerr.NewInternalError(proc.Ctx, "filled join step wants one input pipeline, got %d", len(ins))
	}
	if step.out == nil {
		return nil, moerr.NewInternalError(proc.Ctx, "filled join step output schema is unresolved")
	}
	in := ins[0]

	defaultTotals := false
	if !in.HasTotals() && step.j.HasTotals() {
		if err := in.AddDefaultTotals(proc); err != nil {
			return nil, err
		}
		defaultTotals = true
	}
	if err := in.Join(step.j, step.out, step.maxRowCount, 0, defaultTotals); err != nil {
		return nil, err
	}
	return in, nil
}
