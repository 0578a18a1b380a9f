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

package frame

// Padding is a single zero byte with no body; PADDING frames are
// typically emitted in runs to pad a packet to a target size.
type Padding struct{}

func (Padding) FrameType() Type                    { return TypePadding }
func (Padding) EvalSize() int                      { return 1 }
func (f Padding) Encode(dst []byte) ([]byte, error) { return append(dst, byte(TypePadding)), nil }

// Ping carries no data; its only effect is eliciting an ACK.
type Ping struct{}

func (Ping) FrameType() Type                    { return TypePing }
func (Ping) EvalSize() int                      { return 1 }
func (f Ping) Encode(dst []byte) ([]byte, error) { return append(dst, byte(TypePing)), nil }

// HandshakeDone signals handshake confirmation; server-only to send.
type HandshakeDone struct{}

func (HandshakeDone) FrameType() Type { return TypeHandshakeDone }
func (HandshakeDone) EvalSize() int   { return 1 }
func (f HandshakeDone) Encode(dst []byte) ([]byte, error) {
	return append(dst, byte(TypeHandshakeDone)), nil
}
