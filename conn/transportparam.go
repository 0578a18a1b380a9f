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
	"time"

	"github.com/mitchellh/mapstructure"
	gojson "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/qtransport/quicd/varint"
)

// transportParamID is one RFC 9000 §18.2 transport parameter ID.
type transportParamID uint64

const (
	tpOriginalDestinationConnectionID transportParamID = 0x00
	tpMaxIdleTimeout                  transportParamID = 0x01
	tpStatelessResetToken             transportParamID = 0x02
	tpMaxUDPPayloadSize               transportParamID = 0x03
	tpInitialMaxData                  transportParamID = 0x04
	tpInitialMaxStreamDataBidiLocal   transportParamID = 0x05
	tpInitialMaxStreamDataBidiRemote  transportParamID = 0x06
	tpInitialMaxStreamDataUni         transportParamID = 0x07
	tpInitialMaxStreamsBidi           transportParamID = 0x08
	tpInitialMaxStreamsUni            transportParamID = 0x09
	tpAckDelayExponent                transportParamID = 0x0a
	tpMaxAckDelay                     transportParamID = 0x0b
	tpDisableActiveMigration          transportParamID = 0x0c
	tpActiveConnectionIDLimit         transportParamID = 0x0e
)

// TransportParameters is the decoded, typed view of a peer's transport
// parameters, populated via mapstructure.Decode from the varint-tagged
// wire map the same way confengine unpacks a YAML-sourced map into a
// typed Go struct.
type TransportParameters struct {
	MaxIdleTimeout                 uint64 `mapstructure:"max_idle_timeout"`
	MaxUDPPayloadSize              uint64 `mapstructure:"max_udp_payload_size"`
	InitialMaxData                 uint64 `mapstructure:"initial_max_data"`
	InitialMaxStreamDataBidiLocal  uint64 `mapstructure:"initial_max_stream_data_bidi_local"`
	InitialMaxStreamDataBidiRemote uint64 `mapstructure:"initial_max_stream_data_bidi_remote"`
	InitialMaxStreamDataUni        uint64 `mapstructure:"initial_max_stream_data_uni"`
	InitialMaxStreamsBidi          uint64 `mapstructure:"initial_max_streams_bidi"`
	InitialMaxStreamsUni           uint64 `mapstructure:"initial_max_streams_uni"`
	AckDelayExponent               uint64 `mapstructure:"ack_delay_exponent"`
	MaxAckDelay                    uint64 `mapstructure:"max_ack_delay"`
	ActiveConnectionIDLimit        uint64 `mapstructure:"active_connection_id_limit"`
	DisableActiveMigration         bool   `mapstructure:"disable_active_migration"`
}

// MaxAckDelayDuration converts the milliseconds-wire MaxAckDelay field
// used for sendctl.NewController's RTT-estimation input.
func (tp TransportParameters) MaxAckDelayDuration() time.Duration {
	return time.Duration(tp.MaxAckDelay) * time.Millisecond
}

// DecodeTransportParameters parses RFC 9000 §18.1's
// {id, length, value}* wire encoding into the raw id→bytes map and then
// projects it onto TransportParameters via mapstructure, mirroring
// confengine's two-step "parse loosely, decode strictly" shape.
func DecodeTransportParameters(b []byte) (TransportParameters, error) {
	raw := map[string]any{}
	off := 0
	for off < len(b) {
		id, n, err := varint.Decode(b[off:])
		if err != nil {
			return TransportParameters{}, errors.Wrap(err, "conn: transport parameter id")
		}
		off += n
		length, n, err := varint.Decode(b[off:])
		if err != nil {
			return TransportParameters{}, errors.Wrap(err, "conn: transport parameter length")
		}
		off += n
		if off+int(length) > len(b) {
			return TransportParameters{}, errors.New("conn: transport parameter value runs past buffer")
		}
		val := b[off : off+int(length)]
		off += int(length)

		switch transportParamID(id) {
		case tpDisableActiveMigration:
			raw["disable_active_migration"] = true
		case tpMaxIdleTimeout:
			v, _, _ := varint.Decode(val)
			raw["max_idle_timeout"] = v
		case tpMaxUDPPayloadSize:
			v, _, _ := varint.Decode(val)
			raw["max_udp_payload_size"] = v
		case tpInitialMaxData:
			v, _, _ := varint.Decode(val)
			raw["initial_max_data"] = v
		case tpInitialMaxStreamDataBidiLocal:
			v, _, _ := varint.Decode(val)
			raw["initial_max_stream_data_bidi_local"] = v
		case tpInitialMaxStreamDataBidiRemote:
			v, _, _ := varint.Decode(val)
			raw["initial_max_stream_data_bidi_remote"] = v
		case tpInitialMaxStreamDataUni:
			v, _, _ := varint.Decode(val)
			raw["initial_max_stream_data_uni"] = v
		case tpInitialMaxStreamsBidi:
			v, _, _ := varint.Decode(val)
			raw["initial_max_streams_bidi"] = v
		case tpInitialMaxStreamsUni:
			v, _, _ := varint.Decode(val)
			raw["initial_max_streams_uni"] = v
		case tpAckDelayExponent:
			v, _, _ := varint.Decode(val)
			raw["ack_delay_exponent"] = v
		case tpMaxAckDelay:
			v, _, _ := varint.Decode(val)
			raw["max_ack_delay"] = v
		case tpActiveConnectionIDLimit:
			v, _, _ := varint.Decode(val)
			raw["active_connection_id_limit"] = v
		}
		// tpOriginalDestinationConnectionID / tpStatelessResetToken carry
		// raw bytes, not varint scalars, and aren't part of the typed
		// TransportParameters projection; they are skipped, and their
		// values are not returned to the caller.
	}

	var tp TransportParameters
	if err := mapstructure.Decode(raw, &tp); err != nil {
		return TransportParameters{}, errors.Wrap(err, "conn: decode transport parameters")
	}
	return tp, nil
}

// EncodeTransportParameters serializes tp back to RFC 9000 §18.1 wire
// form, for the handshake message this endpoint sends.
func EncodeTransportParameters(tp TransportParameters) ([]byte, error) {
	var out []byte
	put := func(id transportParamID, v uint64) error {
		var err error
		out, err = varint.Encode(out, uint64(id))
		if err != nil {
			return err
		}
		valBuf, err := varint.Encode(nil, v)
		if err != nil {
			return err
		}
		out, err = varint.Encode(out, uint64(len(valBuf)))
		if err != nil {
			return err
		}
		out = append(out, valBuf...)
		return nil
	}
	fields := []struct {
		id transportParamID
		v  uint64
	}{
		{tpMaxIdleTimeout, tp.MaxIdleTimeout},
		{tpMaxUDPPayloadSize, tp.MaxUDPPayloadSize},
		{tpInitialMaxData, tp.InitialMaxData},
		{tpInitialMaxStreamDataBidiLocal, tp.InitialMaxStreamDataBidiLocal},
		{tpInitialMaxStreamDataBidiRemote, tp.InitialMaxStreamDataBidiRemote},
		{tpInitialMaxStreamDataUni, tp.InitialMaxStreamDataUni},
		{tpInitialMaxStreamsBidi, tp.InitialMaxStreamsBidi},
		{tpInitialMaxStreamsUni, tp.InitialMaxStreamsUni},
		{tpAckDelayExponent, tp.AckDelayExponent},
		{tpMaxAckDelay, tp.MaxAckDelay},
		{tpActiveConnectionIDLimit, tp.ActiveConnectionIDLimit},
	}
	for _, f := range fields {
		if err := put(f.id, f.v); err != nil {
			return nil, err
		}
	}
	if tp.DisableActiveMigration {
		var err error
		out, err = varint.Encode(out, uint64(tpDisableActiveMigration))
		if err != nil {
			return nil, err
		}
		out, err = varint.Encode(out, 0)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DumpParameters renders tp as human-readable JSON for debug logging,
// via goccy/go-json rather than encoding/json.
func DumpParameters(tp TransportParameters) (string, error) {
	b, err := gojson.MarshalIndent(tp, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "conn: dump transport parameters")
	}
	return string(b), nil
}
