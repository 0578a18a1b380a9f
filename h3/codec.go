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

import "github.com/qtransport/quicd/varint"

// Encode serializes f as a full HTTP/3 frame: type varint, length
// varint, payload bytes (RFC 9114 §4.1).
func (f Frame) Encode() ([]byte, error) {
	out, err := varint.Encode(nil, uint64(f.Type))
	if err != nil {
		return nil, err
	}
	out, err = varint.Encode(out, uint64(len(f.Payload)))
	if err != nil {
		return nil, err
	}
	return append(out, f.Payload...), nil
}

// EncodeStreamPreamble serializes the leading type varint a freshly
// opened unidirectional stream of type t announces itself with.
func EncodeStreamPreamble(t StreamType) ([]byte, error) {
	return varint.Encode(nil, uint64(t))
}
