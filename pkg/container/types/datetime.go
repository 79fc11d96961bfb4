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
	"time"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
)

// Datetime is microseconds since the unix epoch, UTC.
type Datetime int64

const datetimeLayout = "2006-01-02 15:04:05"

func DatetimeFromTime(t time.Time) Datetime {
	return Datetime(t.UTC().UnixMicro())
}

// ParseDatetime accepts "YYYY-MM-DD hh:mm:ss" and the date-only form
// "YYYY-MM-DD".
func ParseDatetime(s string) (Datetime, error) {
	if t, err := time.ParseInLocation(datetimeLayout, s, time.UTC); err == nil {
		return DatetimeFromTime(t), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return 0, moerr.NewInvalidInput(context.TODO(), "invalid datetime %s", s)
	}
	return DatetimeFromTime(t), nil
}

func (d Datetime) ToTime() time.Time {
	return time.UnixMicro(int64(d)).UTC()
}

func (d Datetime) String() string {
	return d.ToTime().Format(datetimeLayout)
}
