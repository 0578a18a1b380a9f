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

// Package qerr implements the RFC 9000 §20 / RFC 9114 §8 transport and
// application error-code taxonomy, plus the drop-vs-close propagation
// policy from spec.md §7.
package qerr

import "fmt"

// Code is a QUIC transport error code (RFC 9000 §20.1).
type Code uint64

const (
	NoError                  Code = 0x00
	InternalError            Code = 0x01
	ConnectionRefused        Code = 0x02
	FlowControlError         Code = 0x03
	StreamLimitError         Code = 0x04
	StreamStateError         Code = 0x05
	FinalSizeError           Code = 0x06
	FrameEncodingError       Code = 0x07
	TransportParameterError  Code = 0x08
	ConnectionIDLimitError   Code = 0x09
	ProtocolViolation        Code = 0x0a
	InvalidToken             Code = 0x0b
	ApplicationError         Code = 0x0c
	CryptoBufferExceeded     Code = 0x0d
	KeyUpdateError           Code = 0x0e
	AEADLimitReached         Code = 0x0f
	NoViablePath             Code = 0x10
)

// H3Code is an HTTP/3 application error code (RFC 9114 §8.1).
type H3Code uint64

const (
	H3NoError             H3Code = 0x0100
	H3GeneralProtocolError H3Code = 0x0101
	H3InternalError       H3Code = 0x0102
	H3StreamCreationError H3Code = 0x0103
	H3ClosedCriticalStream H3Code = 0x0104
	H3FrameUnexpected     H3Code = 0x0105
	H3FrameError          H3Code = 0x0106
	H3ExcessiveLoad       H3Code = 0x0107
	H3IDError             H3Code = 0x0108
	H3SettingsError       H3Code = 0x0109
	H3MissingSettings     H3Code = 0x010a
	H3RequestRejected     H3Code = 0x010b
	H3RequestCancelled    H3Code = 0x010c
	H3RequestIncomplete   H3Code = 0x010d
	H3MessageError        H3Code = 0x010e
	H3ConnectError        H3Code = 0x010f
	H3VersionFallback     H3Code = 0x0110
)

// QPACKCode is a QPACK application error code (RFC 9204 §8.1).
type QPACKCode uint64

const (
	QPACKDecompressionFailed QPACKCode = 0x0200
	QPACKEncoderStreamError  QPACKCode = 0x0201
	QPACKDecoderStreamError  QPACKCode = 0x0202
)

// Kind distinguishes how an Error should propagate, per spec.md §7.
type Kind int

const (
	// KindDropPacket: AEAD authentication failure on a received packet.
	// The packet is dropped silently; no connection-level effect.
	KindDropPacket Kind = iota

	// KindCloseTransport: close the connection with a transport-level
	// CONNECTION_CLOSE carrying a Code.
	KindCloseTransport

	// KindCloseApplication: close the connection with an
	// application-level CONNECTION_CLOSE carrying an H3Code/QPACKCode
	// (or an application-defined code above the QUIC transport space).
	KindCloseApplication
)

// Error is the error type every core package returns for protocol-level
// failures, carrying enough information for a Connection to decide
// between "drop the packet" and "close the connection".
type Error struct {
	Kind      Kind
	Code      Code
	AppCode   uint64
	FrameType uint64 // set when Kind == KindCloseTransport and a specific frame triggered it
	Msg       string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindDropPacket:
		return fmt.Sprintf("qerr: drop packet: %s", e.Msg)
	case KindCloseApplication:
		return fmt.Sprintf("qerr: close application(0x%x): %s", e.AppCode, e.Msg)
	default:
		return fmt.Sprintf("qerr: close transport(0x%x): %s", e.Code, e.Msg)
	}
}

// Drop constructs a KindDropPacket error (AEAD auth failure, undecodable
// header protection sample, and similar non-fatal per-packet failures).
func Drop(format string, args ...any) *Error {
	return &Error{Kind: KindDropPacket, Msg: fmt.Sprintf(format, args...)}
}

// Transport constructs a KindCloseTransport error for the given code.
func Transport(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindCloseTransport, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// TransportFrame is Transport with the triggering frame type attached,
// for FRAME_ENCODING_ERROR / PROTOCOL_VIOLATION reporting (RFC 9000
// §20.1 "the frame type that triggered the error").
func TransportFrame(code Code, frameType uint64, format string, args ...any) *Error {
	e := Transport(code, format, args...)
	e.FrameType = frameType
	return e
}

// Application constructs a KindCloseApplication error carrying an
// HTTP/3, QPACK, or application-defined code.
func Application(appCode uint64, format string, args ...any) *Error {
	return &Error{Kind: KindCloseApplication, AppCode: appCode, Msg: fmt.Sprintf(format, args...)}
}

// H3 is Application specialized for an H3Code.
func H3(code H3Code, format string, args ...any) *Error {
	return Application(uint64(code), format, args...)
}
