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

package tracekit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartConnectionReturnsUsableSpan(t *testing.T) {
	_, span := StartConnection(context.Background(), true, "deadbeef")
	assert.NotNil(t, span)
	span.Event("Connected")
	span.End(2, 0)
}

func TestEndOnNilSpanIsSafe(t *testing.T) {
	var span *ConnectionSpan
	assert.NotPanics(t, func() {
		span.Event("Connected")
		span.End(0, 0)
	})
}
