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
	"testing"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"github.com/stretchr/testify/require"
)

func TestTypeSizes(t *testing.T) {
	tests := []struct {
		oid    T
		size   int32
		varlen bool
	}{
		{T_bool, 1, false},
		{T_int32, 4, false},
		{T_int64, 8, false},
		{T_float64, 8, false},
		{T_datetime, 8, false},
		{T_varchar, -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.oid.String(), func(t *testing.T) {
			typ := tt.oid.ToType()
			require.Equal(t, tt.size, typ.Size)
			require.Equal(t, tt.varlen, typ.IsVarlen())
			require.True(t, typ.Eq(New(tt.oid)))
		})
	}
}

func TestTypeOfName(t *testing.T) {
	for name, want := range map[string]T{
		"bool":     T_bool,
		"int":      T_int32,
		"int32":    T_int32,
		"bigint":   T_int64,
		"int64":    T_int64,
		"double":   T_float64,
		"float64":  T_float64,
		"datetime": T_datetime,
		"varchar":  T_varchar,
	} {
		got, err := TypeOfName(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := TypeOfName("decimal")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}

func TestParseDatetime(t *testing.T) {
	d, err := ParseDatetime("2022-03-01 10:20:30")
	require.NoError(t, err)
	require.Equal(t, "2022-03-01 10:20:30", d.String())

	d, err = ParseDatetime("2022-03-01")
	require.NoError(t, err)
	require.Equal(t, "2022-03-01 00:00:00", d.String())

	_, err = ParseDatetime("yesterday")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}
