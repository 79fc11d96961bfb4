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

package types

import (
	"context"
	"fmt"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
)

type T uint8

const (
	// T_any is the unknown type
	T_any T = iota

	T_bool
	T_int32
	T_int64
	T_float64
	T_datetime
	T_varchar
)

type Type struct {
	Oid T

	// Size of the fixed width in-memory representation, -1 for var len
	Size int32
	// Width is the display width, 0 when unconstrained
	Width int32
}

func New(oid T) Type {
	return Type{Oid: oid, Size: oid.FixedLength()}
}

func (t T) ToType() Type {
	return New(t)
}

// FixedLength returns the in-memory byte width of the type, -1 when
// variable length.
func (t T) FixedLength() int32 {
	switch t {
	case T_bool:
		return 1
	case T_int32:
		return 4
	case T_int64, T_float64, T_datetime:
		return 8
	case T_varchar:
		return -1
	}
	return 0
}

func (t T) IsFixedLen() bool {
	return t.FixedLength() >= 0
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_float64:
		return "DOUBLE"
	case T_datetime:
		return "DATETIME"
	case T_varchar:
		return "VARCHAR"
	}
	return fmt.Sprintf("unexpected type tag %d", t)
}

func (t Type) String() string {
	return t.Oid.String()
}

func (t Type) Eq(o Type) bool {
	return t.Oid == o.Oid
}

func (t Type) IsVarlen() bool {
	return !t.Oid.IsFixedLen()
}

// TypeOfName resolves a type name (as written in configs and schema
// strings) to its tag.
func TypeOfName(name string) (T, error) {
	switch name {
	case "bool":
		return T_bool, nil
	case "int", "int32":
		return T_int32, nil
	case "bigint", "int64":
		return T_int64, nil
	case "double", "float64":
		return T_float64, nil
	case "datetime":
		return T_datetime, nil
	case "varchar":
		return T_varchar, nil
	}
	return T_any, moerr.NewInvalidInput(context.TODO(), "unknown type name %s", name)
}
