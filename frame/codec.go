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

import "github.com/qtransport/quicd/qerr"

// decodeOne dispatches on the frame type byte (a single tag switch, per
// spec.md §9's re-expression of IFrame's virtual dispatch as a tagged
// union) and returns the decoded Frame plus the number of bytes consumed
// from payload, including the type octet itself.
func decodeOne(payload []byte, localIsServer bool) (Frame, int, error) {
	if len(payload) == 0 {
		return nil, 0, ErrPartialFrame
	}
	typeByte := payload[0]
	rest := payload[1:]

	switch {
	case typeByte == byte(TypePadding):
		return Padding{}, 1, nil
	case typeByte == byte(TypePing):
		return Ping{}, 1, nil
	case typeByte == byte(TypeHandshakeDone):
		return HandshakeDone{}, 1, nil
	case typeByte == byte(TypeAck) || typeByte == byte(TypeAckECN):
		return decodeAck(typeByte, rest)
	case typeByte == byte(TypeResetStream):
		return decodeResetStream(rest)
	case typeByte == byte(TypeStopSending):
		return decodeStopSending(rest)
	case typeByte == byte(TypeCrypto):
		return decodeCrypto(rest)
	case typeByte == byte(TypeNewToken):
		return decodeNewToken(rest)
	case typeByte >= byte(TypeStream) && typeByte <= byte(TypeStream)+0x07:
		return decodeStream(typeByte, rest, localIsServer)
	case typeByte == byte(TypeMaxData):
		return decodeMaxData(rest)
	case typeByte == byte(TypeMaxStreamData):
		return decodeMaxStreamData(rest)
	case typeByte == byte(TypeMaxStreamsBidi):
		return decodeMaxStreams(true, rest)
	case typeByte == byte(TypeMaxStreamsUni):
		return decodeMaxStreams(false, rest)
	case typeByte == byte(TypeDataBlocked):
		return decodeDataBlocked(rest)
	case typeByte == byte(TypeStreamDataBlocked):
		return decodeStreamDataBlocked(rest)
	case typeByte == byte(TypeStreamsBlockedBidi):
		return decodeStreamsBlocked(true, rest)
	case typeByte == byte(TypeStreamsBlockedUni):
		return decodeStreamsBlocked(false, rest)
	case typeByte == byte(TypeNewConnectionID):
		return decodeNewConnectionID(rest)
	case typeByte == byte(TypeRetireConnectionID):
		return decodeRetireConnectionID(rest)
	case typeByte == byte(TypePathChallenge):
		return decodePathChallenge(rest)
	case typeByte == byte(TypePathResponse):
		return decodePathResponse(rest)
	case typeByte == byte(TypeConnectionCloseQUIC):
		return decodeConnectionClose(false, rest)
	case typeByte == byte(TypeConnectionCloseApp):
		return decodeConnectionClose(true, rest)
	case typeByte == byte(TypeDatagram) || typeByte == byte(TypeDatagram)|0x01:
		return decodeDatagram(typeByte, rest)
	default:
		return nil, 0, qerr.Transport(qerr.FrameEncodingError, "frame: unknown type 0x%x", typeByte)
	}
}

// Decode parses payload (one packet's decrypted contents) into its
// constituent frames. Decoding stops cleanly when the payload is
// exhausted; stopping in the middle of a frame is a protocol error
// (spec.md §4.5: "a partial final frame is a protocol error").
// localIsServer selects which stream-ID initiator bit is locally valid.
func Decode(payload []byte, localIsServer bool) ([]Frame, error) {
	var frames []Frame
	off := 0
	for off < len(payload) {
		f, n, err := decodeOne(payload[off:], localIsServer)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		off += n
	}
	return frames, nil
}

// Encode serializes frames in order, appending to dst.
func Encode(dst []byte, frames []Frame) ([]byte, error) {
	var err error
	for _, f := range frames {
		dst, err = f.Encode(dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}
