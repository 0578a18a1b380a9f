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

// Package conn implements the Connection orchestrator (L7): the state
// machine, connection-ID lifecycle, transport-parameter wiring, and the
// timer coordinator that drives L3 through L6 from datagram receive,
// writable, and timer-fire entry points (spec.md §4.8, §5).
package conn

import (
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/qtransport/quicd/internal/fasttime"
)

// DefaultCIDLen is the length of locally-issued connection IDs.
const DefaultCIDLen = 8

// LocalCID is one connection ID this endpoint has issued to the peer.
type LocalCID struct {
	Sequence   uint64
	ID         []byte
	ResetToken [16]byte
	retired    bool
}

// CIDGenerator issues locally-originated connection IDs. Randomness
// comes from uuid.New() rather than a hand-rolled CSPRNG wrapper.
type CIDGenerator struct{}

// New returns a fresh random connection ID of n bytes (n <= 16; longer
// IDs concatenate additional uuid draws).
func (CIDGenerator) New(n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		u := uuid.New()
		out = append(out, u[:]...)
	}
	return out[:n]
}

// ResetToken derives a 16-byte stateless reset token for id, so a peer
// that later receives an unparseable short-header packet on this
// connection can confirm closure without state (RFC 9000 §10.3). The
// token is deterministic in id so any instance holding the static key
// can recompute it.
func ResetToken(staticKey []byte, id []byte) [16]byte {
	h := xxhash.New()
	h.Write(staticKey)
	h.Write(id)
	sum := h.Sum(nil)
	var tok [16]byte
	// xxhash.Sum is 8 bytes; stretch to 16 by hashing twice with a
	// one-byte domain separator rather than pulling in a second hash
	// algorithm just for the extra bits.
	copy(tok[:8], sum)
	h2 := xxhash.New()
	h2.Write(staticKey)
	h2.Write(id)
	h2.Write([]byte{0x01})
	copy(tok[8:], h2.Sum(nil))
	return tok
}

// Registry maps connection IDs to connections for datagram dispatch,
// keyed by an xxhash.Sum64 of the CID bytes.
type Registry struct {
	byCID map[uint64][]*registryEntry
}

type registryEntry struct {
	cid      string
	conn     *Conn
	lastSeen int64 // fasttime.UnixTimestamp() as of the last Touch
}

// NewRegistry constructs an empty CID routing table.
func NewRegistry() *Registry {
	return &Registry{byCID: make(map[uint64][]*registryEntry)}
}

func cidHash(cid []byte) uint64 { return xxhash.Sum64(cid) }

// Register associates cid with c, for future Lookup calls.
func (r *Registry) Register(cid []byte, c *Conn) {
	h := cidHash(cid)
	r.byCID[h] = append(r.byCID[h], &registryEntry{cid: string(cid), conn: c, lastSeen: fasttime.UnixTimestamp()})
}

// Touch marks cid as having just seen activity, using fasttime's coarse
// (1-second-granularity) clock rather than time.Now(): a dispatcher
// calls this on every received datagram, far more often than the
// second-scale precision IdleConnections needs to find reap candidates.
func (r *Registry) Touch(cid []byte) {
	h := cidHash(cid)
	for _, e := range r.byCID[h] {
		if e.cid == string(cid) {
			e.lastSeen = fasttime.UnixTimestamp()
			return
		}
	}
}

// IdleConnections returns every registered connection whose CID hasn't
// been Touch-ed in at least idleSeconds, for a periodic reaper sweep
// (spec.md §5's idle-timeout bookkeeping) that doesn't need a per-
// connection precise timer goroutine.
func (r *Registry) IdleConnections(idleSeconds int64) []*Conn {
	now := fasttime.UnixTimestamp()
	var idle []*Conn
	seen := make(map[*Conn]bool)
	for _, entries := range r.byCID {
		for _, e := range entries {
			if seen[e.conn] {
				continue
			}
			if now-e.lastSeen >= idleSeconds {
				idle = append(idle, e.conn)
				seen[e.conn] = true
			}
		}
	}
	return idle
}

// Lookup finds the connection owning cid, if any.
func (r *Registry) Lookup(cid []byte) (*Conn, bool) {
	h := cidHash(cid)
	for _, e := range r.byCID[h] {
		if e.cid == string(cid) {
			return e.conn, true
		}
	}
	return nil, false
}

// Unregister removes cid from the routing table (on RETIRE_CONNECTION_ID
// or connection close).
func (r *Registry) Unregister(cid []byte) {
	h := cidHash(cid)
	entries := r.byCID[h]
	for i, e := range entries {
		if e.cid == string(cid) {
			r.byCID[h] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// CIDPool manages the set of connection IDs this endpoint has issued to
// its peer, up to the peer's active_connection_id_limit (spec.md §4.8).
type CIDPool struct {
	gen    CIDGenerator
	cids   []*LocalCID
	nextSeq uint64
	limit  uint64
}

// NewCIDPool constructs a pool honoring the peer's advertised
// active_connection_id_limit.
func NewCIDPool(limit uint64) *CIDPool {
	return &CIDPool{limit: limit}
}

// IssueUpTo tops the pool up to the peer's limit, returning the newly
// issued CIDs (each needs a NEW_CONNECTION_ID frame sent).
func (p *CIDPool) IssueUpTo(staticKey []byte) []*LocalCID {
	var issued []*LocalCID
	active := 0
	for _, c := range p.cids {
		if !c.retired {
			active++
		}
	}
	for uint64(active) < p.limit {
		id := p.gen.New(DefaultCIDLen)
		lc := &LocalCID{Sequence: p.nextSeq, ID: id, ResetToken: ResetToken(staticKey, id)}
		p.nextSeq++
		p.cids = append(p.cids, lc)
		issued = append(issued, lc)
		active++
	}
	return issued
}

// Retire marks the one local CID whose sequence number equals sequence
// as retired, as a received RETIRE_CONNECTION_ID frame requests. This
// pool tracks what we issue; a peer's retire_prior_to on the receive
// path is not handled here.
func (p *CIDPool) Retire(sequence uint64) {
	for _, c := range p.cids {
		if c.Sequence == sequence {
			c.retired = true
			return
		}
	}
}

// Active returns every non-retired locally-issued CID.
func (p *CIDPool) Active() []*LocalCID {
	var out []*LocalCID
	for _, c := range p.cids {
		if !c.retired {
			out = append(out, c)
		}
	}
	return out
}
