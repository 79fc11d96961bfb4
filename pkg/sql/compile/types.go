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

// Package compile turns plan steps into runnable pipelines. A step is
// a node of the physical plan: it knows its output schema and, handed
// the already-built pipelines of its inputs, extends or merges them
// into its own pipeline.
package compile

import (
	"github.com/matrixorigin/matrixflow/pkg/container/schema"
	"github.com/matrixorigin/matrixflow/pkg/vm/pipeline"
	"github.com/matrixorigin/matrixflow/pkg/vm/process"
)

// Step is one plan node. Materialize consumes the input pipelines;
// after it returns they belong to the result.
type Step interface {
	// OutputSchema is the row layout the step's pipeline produces.
	OutputSchema() *schema.Schema

	// UpdateInputSchema replaces the input schema at idx after the
	// planner rewrote what feeds this step.
	UpdateInputSchema(s *schema.Schema, idx int) error

	// Materialize builds the step's pipeline from its inputs' ones.
	Materialize(proc *process.Process, ins ...*pipeline.Pipeline) (*pipeline.Pipeline, error)

	// Describe names the step for plan explains.
	Describe() string

	Traits() Traits
}

// Traits are the step properties the planner reasons with. Each step
// declares its own and nothing verifies them at run time, so they
// must match what the step's pipeline really does.
type Traits struct {
	// PreservesDistinct holds when distinct input rows stay distinct
	// in the output.
	PreservesDistinct bool

	// ReturnsSingleStream holds when the output is exactly one data
	// branch no matter how many the input had.
	ReturnsSingleStream bool

	// PreservesStreamCount holds when the output branch count equals
	// the input branch count.
	PreservesStreamCount bool

	// PreservesSorting holds when input row order survives the step.
	PreservesSorting bool

	// PreservesRowCount holds when the step neither drops nor adds
	// rows.
	PreservesRowCount bool
}
