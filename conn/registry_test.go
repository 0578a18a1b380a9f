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

package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupAfterRegister(t *testing.T) {
	r := NewRegistry()
	c := New(false, r, TransportParameters{})
	cid := []byte{1, 2, 3, 4}

	r.Register(cid, c)
	got, ok := r.Lookup(cid)
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestRegistryIdleConnectionsFindsUntouchedEntries(t *testing.T) {
	r := NewRegistry()
	c := New(false, r, TransportParameters{})
	cid := []byte{5, 6, 7, 8}
	r.Register(cid, c)

	// idleSeconds=0: every registered entry is at least 0 seconds old.
	idle := r.IdleConnections(0)
	require.Len(t, idle, 1)
	assert.Same(t, c, idle[0])

	r.Touch(cid)
	stillIdle := r.IdleConnections(3600)
	assert.Empty(t, stillIdle)
}

func TestRegistryUnregisterRemovesEntry(t *testing.T) {
	r := NewRegistry()
	c := New(false, r, TransportParameters{})
	cid := []byte{9, 9, 9}
	r.Register(cid, c)
	r.Unregister(cid)

	_, ok := r.Lookup(cid)
	assert.False(t, ok)
}
