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

package h3

import (
	"github.com/qtransport/quicd/buffer"
	"github.com/qtransport/quicd/qerr"
)

// controlFrameAllowed reports whether frameType may legally appear on a
// control stream at all (RFC 9114 §7.2: DATA, HEADERS and PUSH_PROMISE
// are request-stream-only frames).
func controlFrameAllowed(t FrameType) bool {
	switch t {
	case FrameData, FrameHeaders, FramePushPromise:
		return false
	default:
		return true
	}
}

// ControlStream enforces RFC 9114 §7.2.4's control-stream policy: the
// very first frame must be SETTINGS, and SETTINGS must never repeat.
// One ControlStream tracks exactly one peer-initiated control stream.
type ControlStream struct {
	dec         *Decoder
	sawSettings bool
	closed      *qerr.Error
}

// NewControlStream creates a ControlStream, pulling reassembly chunks
// from pool.
func NewControlStream(pool *buffer.Pool) *ControlStream {
	return &ControlStream{dec: NewDecoder(pool)}
}

// Feed appends newly received bytes for this stream.
func (c *ControlStream) Feed(b []byte) {
	c.dec.Feed(b)
}

// Poll decodes as many complete frames as are currently buffered,
// validating each against control-stream policy. It stops and returns
// the first policy violation as a *qerr.Error (Kind ==
// KindCloseApplication), matching the "dispatcher raises ... and closes
// with that code" behavior spec.md §8 scenario 5 describes; once a
// ControlStream has closed this way every subsequent Poll call returns
// the same error immediately.
func (c *ControlStream) Poll() ([]Frame, *qerr.Error) {
	if c.closed != nil {
		return nil, c.closed
	}

	var out []Frame
	for {
		f, status, err := c.dec.Next()
		if err != nil {
			c.closed = qerr.H3(qerr.H3FrameError, "control stream: %s", err)
			return out, c.closed
		}
		if status == StatusNeedMoreData {
			return out, nil
		}

		if !c.sawSettings {
			if f.Type != FrameSettings {
				c.closed = qerr.H3(qerr.H3MissingSettings,
					"control stream: first frame was type 0x%x, not SETTINGS", f.Type)
				return out, c.closed
			}
			c.sawSettings = true
		} else if f.Type == FrameSettings {
			c.closed = qerr.H3(qerr.H3FrameUnexpected, "control stream: duplicate SETTINGS frame")
			return out, c.closed
		}

		if !controlFrameAllowed(f.Type) {
			c.closed = qerr.H3(qerr.H3FrameUnexpected,
				"control stream: frame type 0x%x not allowed here", f.Type)
			return out, c.closed
		}

		out = append(out, f)
	}
}

// Close releases the Decoder's buffered chunks.
func (c *ControlStream) Close() {
	c.dec.Release()
}
