// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(chunkSize int) *Pool {
	return NewPool(testAllocator{chunkSize: chunkSize}, chunkSize)
}

type testAllocator struct{ chunkSize int }

func (a testAllocator) Get() []byte  { return make([]byte, a.chunkSize) }
func (a testAllocator) Put(_ []byte) {}

func TestSingleWriteClampsAtCapacity(t *testing.T) {
	pool := newTestPool(8)
	s := NewSingle(pool.Acquire())

	n := s.Write([]byte("hello world"))
	assert.Equal(t, 8, n, "write must clamp at capacity, never tear")
	assert.Equal(t, 8, s.Len())

	out := make([]byte, 8)
	assert.Equal(t, 8, s.Read(out))
	assert.Equal(t, "hello wo", string(out))
}

func TestSingleMoveReadNeverGoesNegative(t *testing.T) {
	pool := newTestPool(8)
	s := NewSingle(pool.Acquire())
	s.Write([]byte("abcd"))

	assert.Equal(t, 0, s.MoveRead(-5))
	assert.Equal(t, 4, s.Len())
}

func TestMultiReadableSpansCrossBlocks(t *testing.T) {
	pool := newTestPool(4)
	m := NewMulti(pool)

	m.Write([]byte("abcdefgh"))
	require.Equal(t, 8, m.Len())

	spans := m.ReadableSpans(-1)
	require.Len(t, spans, 2)
	assert.Equal(t, "abcd", string(spans[0].Bytes()))
	assert.Equal(t, "efgh", string(spans[1].Bytes()))
}

func TestMultiCloneReadableSplitsWithoutCopy(t *testing.T) {
	pool := newTestPool(16)
	m := NewMulti(pool)
	m.Write([]byte("stream-payload-bytes"))

	clone := m.CloneReadable(6)
	out := make([]byte, 6)
	assert.Equal(t, 6, clone.Read(out))
	assert.Equal(t, "stream", string(out))

	// source's read cursor advanced past the cloned bytes.
	remaining := make([]byte, m.Len())
	m.Read(remaining)
	assert.Equal(t, "-payload-bytes", string(remaining))
}

func TestEncoderCommitAndRollback(t *testing.T) {
	pool := newTestPool(4)
	s := NewSingle(pool.Acquire())

	enc := NewEncoder(s)
	assert.True(t, enc.Put([]byte("ab")))
	assert.False(t, enc.Put([]byte("cde"))) // only 2 bytes free, 3 requested
	assert.False(t, enc.Ok())
	assert.False(t, enc.Commit())
	assert.Equal(t, 0, s.Len(), "failed encode must not touch the target")

	enc.Reset()
	assert.True(t, enc.Put([]byte("ab")))
	assert.True(t, enc.Commit())
	assert.Equal(t, 2, s.Len())
}

func TestDecoderRollbackOnShortBuffer(t *testing.T) {
	pool := newTestPool(8)
	s := NewSingle(pool.Acquire())
	s.Write([]byte("ab"))

	dec := NewDecoder(s)
	assert.Equal(t, []byte("ab"), dec.Take(2))
	assert.Nil(t, dec.Take(1), "NeedMoreData must not dereference beyond the buffer")

	dec.Rollback()
	assert.Equal(t, 2, s.Len(), "rollback must not commit the speculative advance")
}

func TestSharedSpanOutlivesSourceReset(t *testing.T) {
	pool := newTestPool(8)
	chunk := pool.Acquire()
	s := NewSingle(chunk)
	s.Write([]byte("payload!"))

	shared := NewShared(chunk, 0, 8)
	s.Reset()
	assert.Equal(t, "payload!", string(shared.Bytes()))
	shared.Release()
}
