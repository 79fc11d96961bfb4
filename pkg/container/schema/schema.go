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

// Package schema describes the column layout of the batches flowing
// through a pipeline: an ordered list of named, typed attributes.
package schema

import (
	"strings"

	"github.com/matrixorigin/matrixflow/pkg/container/batch"
	"github.com/matrixorigin/matrixflow/pkg/container/types"
	"github.com/matrixorigin/matrixflow/pkg/container/vector"
)

// Attribute is one column of a relation.
type Attribute struct {
	Name string
	Typ  types.Type
}

// Schema is an ordered attribute list. Attribute names are unique
// within one schema.
type Schema struct {
	Attrs []Attribute
}

func New(attrs ...Attribute) *Schema {
	return &Schema{Attrs: attrs}
}

// NewWithNames builds a schema pairing names[i] with typs[i].
func NewWithNames(names []string, typs []types.Type) *Schema {
	attrs := make([]Attribute, len(names))
	for i := range names {
		attrs[i] = Attribute{Name: names[i], Typ: typs[i]}
	}
	return &Schema{Attrs: attrs}
}

func (s *Schema) Len() int {
	return len(s.Attrs)
}

func (s *Schema) Names() []string {
	names := make([]string, len(s.Attrs))
	for i, attr := range s.Attrs {
		names[i] = attr.Name
	}
	return names
}

func (s *Schema) Types() []types.Type {
	typs := make([]types.Type, len(s.Attrs))
	for i, attr := range s.Attrs {
		typs[i] = attr.Typ
	}
	return typs
}

// IndexOf returns the position of the named attribute, or -1.
func (s *Schema) IndexOf(name string) int {
	for i, attr := range s.Attrs {
		if attr.Name == name {
			return i
		}
	}
	return -1
}

func (s *Schema) Contains(name string) bool {
	return s.IndexOf(name) >= 0
}

func (s *Schema) Clone() *Schema {
	attrs := make([]Attribute, len(s.Attrs))
	copy(attrs, s.Attrs)
	return &Schema{Attrs: attrs}
}

// Equals reports whether both schemas have the same attributes in the
// same order.
func (s *Schema) Equals(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.Attrs) != len(o.Attrs) {
		return false
	}
	for i, attr := range s.Attrs {
		if attr.Name != o.Attrs[i].Name || !attr.Typ.Eq(o.Attrs[i].Typ) {
			return false
		}
	}
	return true
}

// NewBatch builds an empty batch laid out after the schema.
func (s *Schema) NewBatch() *batch.Batch {
	bat := batch.New(s.Names())
	for i, attr := range s.Attrs {
		bat.Vecs[i] = vector.NewVector(attr.Typ)
	}
	return bat
}

func (s *Schema) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, attr := range s.Attrs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(attr.Name)
		sb.WriteString(" ")
		sb.WriteString(attr.Typ.String())
	}
	sb.WriteString(")")
	return sb.String()
}
