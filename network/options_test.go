// Copyright 2017 Microsoft. All rights reserved.
// MIT License

package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nomadic-Drones/rustycan4docker/vxerr"
)

func TestParseCreateOptionsDefaults(t *testing.T) {
	opts, err := parseCreateOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultDevice, opts.Device)
	assert.Equal(t, defaultCreatePeer, opts.Peer)
	assert.Equal(t, defaultCanID, opts.CanID)
}

func TestParseCreateOptionsExplicit(t *testing.T) {
	opts, err := parseCreateOptions([]byte(`{"vxcan.dev":"vcan","vxcan.peer":"vcanp","vxcan.id":"3"}`))
	require.NoError(t, err)
	assert.Equal(t, "vcan", opts.Device)
	assert.Equal(t, "vcanp", opts.Peer)
	assert.Equal(t, "3", opts.CanID)
}

func TestParseCreateOptionsPartialFallsBackToDefaults(t *testing.T) {
	opts, err := parseCreateOptions([]byte(`{"vxcan.id":"7"}`))
	require.NoError(t, err)
	assert.Equal(t, defaultDevice, opts.Device)
	assert.Equal(t, defaultCreatePeer, opts.Peer)
	assert.Equal(t, "7", opts.CanID)
}

func TestParseCreateOptionsMalformedBlobIsBadOptions(t *testing.T) {
	_, err := parseCreateOptions([]byte(`{not valid json`))
	assert.ErrorIs(t, err, vxerr.ErrBadOptions)
}

func TestParseAttachOptionsOverride(t *testing.T) {
	peer := parseAttachOptions([]byte(`{"vxcan.peer":"can42"}`))
	assert.Equal(t, "can42", peer)
}

func TestParseAttachOptionsEmptyBlob(t *testing.T) {
	assert.Equal(t, "", parseAttachOptions(nil))
}

func TestParseAttachOptionsMalformedBlobIsNoOverride(t *testing.T) {
	assert.Equal(t, "", parseAttachOptions([]byte(`{broken`)))
}
