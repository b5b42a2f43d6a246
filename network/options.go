// Copyright 2017 Microsoft. All rights reserved.
// MIT License

package network

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"

	"github.com/Nomadic-Drones/rustycan4docker/log"
	"github.com/Nomadic-Drones/rustycan4docker/vxerr"
)

// createOptions is the options_blob shape recognised on network_create.
type createOptions struct {
	Device string `mapstructure:"vxcan.dev"`
	Peer   string `mapstructure:"vxcan.peer"`
	CanID  string `mapstructure:"vxcan.id"`
}

const (
	defaultDevice         = "vcan"
	defaultCreatePeer     = "vcanp"
	defaultEngineLoadPeer = "vcan"
	defaultCanID          = "0"
)

// parseCreateOptions decodes options_blob for network_create. A malformed
// blob surfaces as BadOptions; a blob that parses but omits a recognised
// key falls through to that key's default with a logged warning.
func parseCreateOptions(blob []byte) (createOptions, error) {
	opts := createOptions{
		Device: defaultDevice,
		Peer:   defaultCreatePeer,
		CanID:  defaultCanID,
	}
	if len(blob) == 0 {
		return opts, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(blob, &raw); err != nil {
		return createOptions{}, vxerr.ErrBadOptions
	}

	decoded := opts
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &decoded,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return createOptions{}, vxerr.ErrBadOptions
	}
	if err := decoder.Decode(raw); err != nil {
		return createOptions{}, vxerr.ErrBadOptions
	}

	warnIfMissing(raw, "vxcan.dev", defaultDevice)
	warnIfMissing(raw, "vxcan.peer", defaultCreatePeer)
	warnIfMissing(raw, "vxcan.id", defaultCanID)

	return decoded, nil
}

// parseAttachOptions decodes options_blob for endpoint_attach. A malformed
// blob is treated as "no override" (peerOverride == "") rather than an
// error: attach falls back to the network's default peer.
func parseAttachOptions(blob []byte) string {
	if len(blob) == 0 {
		return ""
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(blob, &raw); err != nil {
		log.Printf("[net] attach options blob did not parse, ignoring peer override: %v", err)
		return ""
	}

	peer, _ := raw["vxcan.peer"].(string)
	return peer
}

func warnIfMissing(raw map[string]interface{}, key, def string) {
	if _, ok := raw[key]; !ok {
		log.Printf("[net] options blob missing %q, defaulting to %q", key, def)
	}
}
