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

var _ Step = new(JoinStep)

// JoinStep joins two input streams through one joiner. The joiner
// picks the execution shape: a symmetric joiner reads both sides
// merged in key order, a build-probe one materializes the right side
// and probes it with the left. The same joiner instance may also be
// held by the sort steps preparing its inputs.
type JoinStep struct {
	left  *schema.Schema
	right *schema.Schema
	out   *schema.Schema
	j     join.Joiner

	maxRowCount   int
	maxParallel   int
	keepLeftOrder bool
}

// NewJoinStep plans a join of left and right through j. maxRowCount
// caps output batches, maxParallel the output branch count;
// keepLeftOrder forbids resizing the left side so its read order
// survives a build-probe join.
func NewJoinStep(left, right *schema.Schema, j join.Joiner, maxRowCount, maxParallel int, keepLeftOrder bool) *JoinStep {
	return &JoinStep{
		left:          left,
		right:         right,
		out:           j.ResultSchema(left),
		j:             j,
		maxRowCount:   maxRowCount,
		maxParallel:   maxParallel,
		keepLeftOrder: keepLeftOrder,
	}
}

func (step *JoinStep) OutputSchema() *schema.Schema {
	return step.out
}

func (step *JoinStep) Joiner() join.Joiner {
	return step.j
}

// UpdateInputSchema replaces one input. The output layout follows the
// left input, so only idx 0 recomputes it.
func (step *JoinStep) UpdateInputSchema(s *schema.Schema, idx int) error {
	switch idx {
	case 0:
		step.left = s
		step.out = step.j.ResultSchema(s)
	case 1:
		step.right = s
	default:
		return moerr.NewInternalErrorNoCtx("join step has two inputs, no input %d", idx)
	}
	return nil
}

// AllowPushDownToRight reports whether the planner may push filters
// or limits into the right input. A symmetric join scans the right
// side incrementally, so later filtering stays expressible; a
// build-probe join owns a finished view of it.
func (step *JoinStep) AllowPushDownToRight() bool {
	return step.j.Shape() == join.Symmetric
}

// SortMergeJoin returns the joiner as a sort-merge handle when it is
// one, for the sort steps preparing this join's inputs. Absence just
// means another algorithm runs the join.
func (step *JoinStep) SortMergeJoin() (*join.MergeJoin, bool) {
	mj, ok := step.j.(*join.MergeJoin)
	return mj, ok
}

func (step *JoinStep) Describe() string {
	return fmt.Sprintf("%s join (%s, %s)", step.j.Kind(), step.j.Name(), step.j.Shape())
}

func (step *JoinStep) Traits() Traits {
	return Traits{
		PreservesSorting: step.keepLeftOrder && step.j.Shape() == join.BuildProbe,
	}
}

// Materialize merges the two input pipelines into the join pipeline.
// The joiner is released when that pipeline finishes.
func (step *JoinStep) Materialize(proc *process.Process, ins ...*pipeline.Pipeline) (*pipeline.Pipeline, error) {
	if len(ins) != 2 {
		return nil, moerr.NewInternalError(proc.Ctx, "join step wants two input pipelines, got %d", len(ins))
	}
	if step.out == nil {
		return nil, moerr.NewInternalError(proc.Ctx, "join step output schema is unresolved")
	}

	var p *pipeline.Pipeline
	var err error
	if step.j.Shape() == join.Symmetric {
		mj, ok := step.SortMergeJoin()
		if !ok {
			return nil, moerr.NewInternalError(proc.Ctx, "%s declares the symmetric shape but is no merge join", step.j.Name())
		}
		p, err = pipeline.JoinSymmetric(proc, ins[0], ins[1], mj, step.out, step.maxRowCount)
		if err != nil {
			return nil, err
		}
		if err = p.Resize(proc, step.maxParallel); err != nil {
			p.Dispose(proc)
			return nil, err
		}
	} else {
		p, err = pipeline.JoinBuildProbe(proc, ins[0], ins[1], step.j, step.out,
			step.maxRowCount, step.maxParallel, step.keepLeftOrder)
		if err != nil {
			return nil, err
		}
	}
	p.AddCloser(step.j.Free)
	return p, nil
}
