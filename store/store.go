// Copyright 2017 Microsoft. All rights reserved.
// MIT License

// Package store persists the set of NetworkConfig declarations the Manager
// knows about, so the plugin process can reconstruct its Network objects
// after a restart. Only network declarations are persisted; endpoints and
// gateway rules are reconstructed from the kernel on demand.
package store

// NetworkConfig is the persisted form of a Network: enough to rebuild it.
type NetworkConfig struct {
	Device string `json:"device"`
	Peer   string `json:"peer"`
	CanID  string `json:"canid"`
}

// Store is a whole-file mirror of {NetworkId: NetworkConfig}.
type Store interface {
	// Exists reports whether the backing file is present.
	Exists() bool

	// Load returns the persisted network configs. A missing file is not an
	// error: it returns an empty map (first run). A corrupt file is logged
	// and also returns an empty map, rather than failing the caller.
	Load() (map[string]NetworkConfig, error)

	// Save atomically replaces the backing file's contents.
	Save(all map[string]NetworkConfig) error
}
