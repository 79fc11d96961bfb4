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

package message

import (
	"bytes"
	"context"
	"strconv"

	"github.com/matrixorigin/matrixflow/pkg/common/hashmap"
)

var _ Message = JoinMapMsg{}

// JoinMapMsg hands the finished hash table from the build operator to
// the probe operators. A nil JoinMapPtr tells probers the build ended
// without a result.
type JoinMapMsg struct {
	JoinMapPtr *hashmap.JoinMap
	Tag        int32
}

func (t JoinMapMsg) NeedBlock() bool {
	return true
}

func (t JoinMapMsg) Destroy() {
	if t.JoinMapPtr != nil {
		t.JoinMapPtr.FreeMemory()
	}
}

func (t JoinMapMsg) GetMsgTag() int32 {
	return t.Tag
}

func (t JoinMapMsg) DebugString() string {
	buf := bytes.NewBuffer(make([]byte, 0, 64))
	buf.WriteString("joinmap message, tag:" + strconv.Itoa(int(t.Tag)) + "\n")
	if t.JoinMapPtr != nil {
		buf.WriteString("joinmap rowcnt " + strconv.Itoa(int(t.JoinMapPtr.GetRowCount())) + "\n")
	} else {
		buf.WriteString("joinmapPtr is nil \n")
	}
	return buf.String()
}

// ReceiveJoinMap blocks until the tagged join map arrives. It returns
// nil when ctx ends first or the build finished empty-handed.
func ReceiveJoinMap(tag int32, mb *MessageBoard, ctx context.Context) (*hashmap.JoinMap, error) {
	msgReceiver := NewMessageReceiver([]int32{tag}, mb)
	for {
		msgs, ctxDone, err := msgReceiver.ReceiveMessage(true, ctx)
		if err != nil {
			return nil, err
		}
		if ctxDone {
			return nil, nil
		}
		for i := range msgs {
			msg, ok := msgs[i].(JoinMapMsg)
			if !ok {
				panic("expect join map message, receive unknown message!")
			}
			jm := msg.JoinMapPtr
			if jm == nil {
				return nil, nil
			}
			if !jm.IsValid() {
				panic("join receive a joinmap which has been freed!")
			}
			return jm, nil
		}
	}
}

// FinalizeJoinMapMessage posts a nil join map when the build failed so
// probers blocked on the tag wake up.
func FinalizeJoinMapMessage(mb *MessageBoard, tag int32, pipelineFailed bool, err error) {
	if pipelineFailed || err != nil {
		SendMessage(JoinMapMsg{JoinMapPtr: nil, Tag: tag}, mb)
	}
}
