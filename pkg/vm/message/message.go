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

// Package message carries side-channel results between operators of
// the same query, such as the hash table a build operator hands to its
// probers. Messages are broadcast on a per-query board and matched by
// tag.
package message

import (
	"context"
	"sync"
)

type Message interface {
	// GetMsgTag returns the tag the message is addressed with.
	GetMsgTag() int32
	// NeedBlock reports whether receivers block waiting for this kind
	// of message.
	NeedBlock() bool
	// Destroy releases whatever the message still owns.
	Destroy()
	DebugString() string
}

// MessageBoard holds every message sent during one query run.
// Messages stay on the board until Reset so that late receivers still
// see them.
type MessageBoard struct {
	mu       sync.Mutex
	messages []Message
	waiters  []chan struct{}
}

func NewMessageBoard() *MessageBoard {
	return &MessageBoard{}
}

func SendMessage(m Message, mb *MessageBoard) {
	mb.mu.Lock()
	mb.messages = append(mb.messages, m)
	ws := mb.waiters
	mb.waiters = nil
	mb.mu.Unlock()
	for _, w := range ws {
		close(w)
	}
}

// Reset destroys all messages and unblocks any receiver still
// waiting. Call it once the query is done.
func (mb *MessageBoard) Reset() {
	mb.mu.Lock()
	for _, m := range mb.messages {
		m.Destroy()
	}
	mb.messages = mb.messages[:0]
	ws := mb.waiters
	mb.waiters = nil
	mb.mu.Unlock()
	for _, w := range ws {
		close(w)
	}
}

// MessageReceiver reads messages matching its tags, each at most
// once.
type MessageReceiver struct {
	tags   []int32
	mb     *MessageBoard
	offset int
}

func NewMessageReceiver(tags []int32, mb *MessageBoard) *MessageReceiver {
	return &MessageReceiver{
		tags: tags,
		mb:   mb,
	}
}

// ReceiveMessage returns the matching messages sent since the last
// call. With blocking set it waits for at least one match; the second
// result reports that ctx ended the wait instead.
func (mr *MessageReceiver) ReceiveMessage(blocking bool, ctx context.Context) ([]Message, bool, error) {
	for {
		msgs, wait := mr.collect()
		if len(msgs) > 0 || !blocking {
			return msgs, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, true, nil
		case <-wait:
		}
	}
}

func (mr *MessageReceiver) collect() ([]Message, chan struct{}) {
	mb := mr.mb
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []Message
	for ; mr.offset < len(mb.messages); mr.offset++ {
		m := mb.messages[mr.offset]
		for _, tag := range mr.tags {
			if m.GetMsgTag() == tag {
				out = append(out, m)
				break
			}
		}
	}
	if out != nil {
		return out, nil
	}
	w := make(chan struct{})
	mb.waiters = append(mb.waiters, w)
	return nil, w
}
