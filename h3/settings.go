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
	gojson "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/qtransport/quicd/varint"
)

// Setting identifiers this implementation recognizes (RFC 9114 §7.2.4.1,
// RFC 9204 §5).
const (
	SettingQPACKMaxTableCapacity uint64 = 0x01
	SettingMaxFieldSectionSize   uint64 = 0x06
	SettingQPACKBlockedStreams   uint64 = 0x07
)

// Settings is a decoded SETTINGS frame payload. Unknown identifiers are
// preserved in Extra rather than dropped, per RFC 9114 §7.2.4
// ("identifiers ... greater than or equal to 0x21 ... are reserved ...
// and MUST be ignored"): ignoring means not acting on them, not
// discarding them from a faithful round trip.
type Settings struct {
	QPACKMaxTableCapacity uint64
	MaxFieldSectionSize   uint64
	QPACKBlockedStreams   uint64
	Extra                 map[uint64]uint64
}

// DecodeSettings parses a SETTINGS frame payload (a flat sequence of
// (identifier, value) varint pairs).
func DecodeSettings(payload []byte) (Settings, error) {
	var s Settings
	for len(payload) > 0 {
		id, n1, err := varint.Decode(payload)
		if err != nil {
			return Settings{}, err
		}
		payload = payload[n1:]

		val, n2, err := varint.Decode(payload)
		if err != nil {
			return Settings{}, err
		}
		payload = payload[n2:]

		switch id {
		case SettingQPACKMaxTableCapacity:
			s.QPACKMaxTableCapacity = val
		case SettingMaxFieldSectionSize:
			s.MaxFieldSectionSize = val
		case SettingQPACKBlockedStreams:
			s.QPACKBlockedStreams = val
		default:
			if s.Extra == nil {
				s.Extra = make(map[uint64]uint64)
			}
			s.Extra[id] = val
		}
	}
	return s, nil
}

// Encode serializes s into a SETTINGS frame payload (identifiers with a
// zero value are omitted, matching the common "only send what you want
// to change from the default" convention).
func (s Settings) Encode() ([]byte, error) {
	var payload []byte
	var err error

	appendPair := func(id, val uint64) {
		if err != nil {
			return
		}
		payload, err = varint.Encode(payload, id)
		if err != nil {
			return
		}
		payload, err = varint.Encode(payload, val)
	}

	if s.QPACKMaxTableCapacity != 0 {
		appendPair(SettingQPACKMaxTableCapacity, s.QPACKMaxTableCapacity)
	}
	if s.MaxFieldSectionSize != 0 {
		appendPair(SettingMaxFieldSectionSize, s.MaxFieldSectionSize)
	}
	if s.QPACKBlockedStreams != 0 {
		appendPair(SettingQPACKBlockedStreams, s.QPACKBlockedStreams)
	}
	for id, val := range s.Extra {
		appendPair(id, val)
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// EncodeFrame wraps s as a full SETTINGS Frame payload, including the
// type/length header.
func EncodeFrame(s Settings) (Frame, error) {
	payload, err := s.Encode()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameSettings, Payload: payload}, nil
}

// DumpSettings renders s as human-readable JSON for debug logging, via
// goccy/go-json rather than encoding/json, mirroring conn.DumpParameters.
func DumpSettings(s Settings) (string, error) {
	b, err := gojson.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "h3: dump settings")
	}
	return string(b), nil
}
