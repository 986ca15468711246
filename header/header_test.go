// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresID(t *testing.T) {
	assert.NotEmpty(t, Validate(Raw{}))
	assert.NotEmpty(t, Validate(Raw{ID: []byte{}}))
	assert.Empty(t, Validate(Raw{ID: []byte("x")}))
}

func TestValidateRejectsUnknownFields(t *testing.T) {
	msg := Validate(Raw{ID: []byte("x"), Unknown: []string{"bogus"}})
	assert.NotEmpty(t, msg)
}

func TestValidateTypeChecksOptionalFields(t *testing.T) {
	assert.NotEmpty(t, Validate(Raw{ID: []byte("x"), V: 123}))
	assert.NotEmpty(t, Validate(Raw{ID: []byte("x"), Pa: "not-a-list"}))
	assert.NotEmpty(t, Validate(Raw{ID: []byte("x"), D: "not-a-bool"}))
}

func TestNormalizeProducesTypedHeader(t *testing.T) {
	h, msg := Normalize(Raw{
		ID: []byte("x"),
		V:  "A",
		Pa: []string{"root"},
		Pe: "peer1",
		I:  uint64(7),
		D:  true,
		C:  false,
	})
	require.Empty(t, msg)
	assert.Equal(t, "A", h.V)
	assert.Equal(t, []string{"root"}, h.Pa)
	assert.Equal(t, "peer1", h.Pe)
	assert.EqualValues(t, 7, h.I)
	assert.True(t, h.D)
	assert.False(t, h.IsLocal())
}

func TestIsLocalWhenPerspectiveEmpty(t *testing.T) {
	h, msg := Normalize(Raw{ID: []byte("x")})
	require.Empty(t, msg)
	assert.True(t, h.IsLocal())
}
