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

package cmd

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtransport/quicd/qcrypto"
)

func TestInitialSecretVectorIsDeterministicAndDirectional(t *testing.T) {
	dcid, err := hex.DecodeString(vectorsDCID)
	require.NoError(t, err)

	clientSecret, serverSecret := qcrypto.DeriveInitialSecrets(qcrypto.SuiteAES128GCMSHA256, dcid)
	clientSecret2, serverSecret2 := qcrypto.DeriveInitialSecrets(qcrypto.SuiteAES128GCMSHA256, dcid)

	assert.Len(t, clientSecret, 32)
	assert.Len(t, serverSecret, 32)
	assert.NotEqual(t, clientSecret, serverSecret)
	assert.Equal(t, clientSecret, clientSecret2, "same dcid must derive the same client secret")
	assert.Equal(t, serverSecret, serverSecret2, "same dcid must derive the same server secret")
}

func TestVarintBucketsCoverAllFourLengthClasses(t *testing.T) {
	buckets, err := buildVarintBuckets()
	require.NoError(t, err)
	require.Len(t, buckets, 4)
	for i, want := range []int{1, 2, 4, 8} {
		assert.Equal(t, want, buckets[i].Bytes, "bucket %d", i)
	}
}

func TestQPACKVectorRoundTrips(t *testing.T) {
	qv, err := buildQPACKVector()
	require.NoError(t, err)
	assert.Equal(t, "x-bench", qv.DecodedName)
	assert.Equal(t, "v", qv.DecodedValue)
}
