/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package timing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEndpointSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	peer := NewMockPeer(ctrl)
	e := NewEndpointSource(peer)

	peer.EXPECT().Ready().Return(true)
	peer.EXPECT().Status().Return(uint8(0x8))
	require.Equal(t, LockStatus{Domain: DomainEndpoint, Locked: true, Code: 0x8}, e.LockStatus())

	// status is limited to 4 bits
	peer.EXPECT().Status().Return(uint8(0xfc))
	require.Equal(t, uint8(0xc), e.Status())

	peer.EXPECT().Timestamp().Return(uint64(1 << 40))
	require.Equal(t, Timestamp(1<<40), e.Timestamp())

	peer.EXPECT().Reset()
	e.Reset()
}
