// Copyright 2017 Microsoft. All rights reserved.
// MIT License

// Package network implements the lifecycle and concurrency controller that
// coordinates the in-memory graph of networks/endpoints/rules, the kernel
// vcan/vxcan/cangw state those objects mirror, and the on-disk persistence
// of network declarations.
package network

import (
	"sync"

	"github.com/Nomadic-Drones/rustycan4docker/kernel"
	"github.com/Nomadic-Drones/rustycan4docker/log"
	"github.com/Nomadic-Drones/rustycan4docker/store"
	"github.com/Nomadic-Drones/rustycan4docker/vxerr"
)

// driverName is the value an engine-reported network's declared driver
// must equal for network_load to adopt it.
const driverName = "rustyvxcan"

// EngineNetwork is one network declaration as reported by the container
// engine.
type EngineNetwork struct {
	ID      string
	Driver  string
	Options map[string]interface{}
}

// Discovery enumerates networks known to the container engine. Manager
// consults it only from NetworkLoad, and only when the persistence file is
// present; see DESIGN.md for the trust-order decision.
type Discovery interface {
	ListNetworks() ([]EngineNetwork, error)
}

// Manager owns the map of all networks keyed by engine-assigned network id,
// mediates all outside calls, serialises recovery, and owns the on-disk
// persistence file.
type Manager struct {
	kern      kernel.Interface
	persist   store.Store
	discovery Discovery

	mu       sync.RWMutex
	networks map[string]*network

	loadMu sync.Mutex
}

// NewManager constructs a Manager, reconstructing a Network for every entry
// in the persistence file. A missing file is a normal first run; a corrupt
// file is logged and treated as empty (store.Store.Load already absorbs
// both cases).
func NewManager(kern kernel.Interface, persist store.Store, discovery Discovery) (*Manager, error) {
	m := &Manager{
		kern:      kern,
		persist:   persist,
		discovery: discovery,
		networks:  make(map[string]*network),
	}

	configs, err := persist.Load()
	if err != nil {
		log.Errorf("[net] failed to load persisted networks, starting empty: %v", err)
		return m, nil
	}

	for nuid, cfg := range configs {
		nw, err := newNetwork(kern, cfg.Device, cfg.Peer, cfg.CanID)
		if err != nil {
			log.Errorf("[net] failed to reconstruct network %v from persisted config: %v", nuid, err)
			continue
		}
		m.networks[nuid] = nw
	}

	return m, nil
}

// NetworkLoad reconciles the Manager's map with the engine's view. If the
// persistence file is absent, this is a no-op: the persistence file is
// ground truth, trusted over the engine even though the engine might still
// remember networks from a prior run.
func (m *Manager) NetworkLoad() {
	log.Printf("[net] Loading networks from the container engine.")

	if !m.persist.Exists() {
		log.Printf("[net] Persistence file absent, treating as first run and skipping engine load.")
		return
	}

	if m.discovery == nil {
		return
	}
	engineNetworks, err := m.discovery.ListNetworks()
	if err != nil {
		log.Errorf("[net] network_load: failed to enumerate engine networks: %v", err)
		return
	}

	for _, en := range engineNetworks {
		if en.Driver != driverName {
			continue
		}

		m.mu.RLock()
		_, exists := m.networks[en.ID]
		m.mu.RUnlock()
		if exists {
			continue
		}

		opts := engineLoadOptions(en.Options)
		nw, err := newNetwork(m.kern, opts.Device, opts.Peer, opts.CanID)
		if err != nil {
			log.Errorf("[net] network_load: failed to adopt network %v: %v", en.ID, err)
			continue
		}

		m.mu.Lock()
		m.networks[en.ID] = nw
		m.mu.Unlock()
	}
}

// engineLoadOptions applies vxcan.peer's engine-load default ("vcan"
// instead of create's "vcanp").
func engineLoadOptions(raw map[string]interface{}) createOptions {
	opts := createOptions{
		Device: defaultDevice,
		Peer:   defaultEngineLoadPeer,
		CanID:  defaultCanID,
	}
	if v, ok := raw["vxcan.dev"].(string); ok && v != "" {
		opts.Device = v
	}
	if v, ok := raw["vxcan.peer"].(string); ok && v != "" {
		opts.Peer = v
	}
	if v, ok := raw["vxcan.id"].(string); ok && v != "" {
		opts.CanID = v
	}
	return opts
}

// NetworkCreate parses options_blob, inserts a new Network, and persists
// {nuid -> NetworkConfig} atomically.
func (m *Manager) NetworkCreate(nuid string, optionsBlob []byte) error {
	log.Printf("[net] Creating network %v.", nuid)
	var err error
	defer func() {
		if err != nil {
			log.Printf("[net] Failed to create network %v, err:%v.", nuid, err)
		}
	}()

	var opts createOptions
	opts, err = parseCreateOptions(optionsBlob)
	if err != nil {
		return err
	}

	var nw *network
	nw, err = newNetwork(m.kern, opts.Device, opts.Peer, opts.CanID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.networks[nuid] = nw
	m.mu.Unlock()

	m.persistAll()
	log.Printf("[net] Created network %v.", nuid)
	return nil
}

// NetworkDelete removes nuid from the map (triggering kernel teardown via
// the Network destructor if createdByUs) and from the persistence file.
// Deletion is best-effort: an unknown nuid is a no-op, not an error.
func (m *Manager) NetworkDelete(nuid string) error {
	log.Printf("[net] Deleting network %v.", nuid)

	m.mu.Lock()
	nw, ok := m.networks[nuid]
	if ok {
		delete(m.networks, nuid)
	}
	m.mu.Unlock()

	if !ok {
		log.Printf("[net] Network %v not found, network_delete is a no-op.", nuid)
		return nil
	}

	nw.destroy(m.kern)
	m.persistAll()
	log.Printf("[net] Deleted network %v.", nuid)
	return nil
}

// EndpointCreate creates an Endpoint and adds it to nuid's network; a no-op
// if the network is unknown.
func (m *Manager) EndpointCreate(nuid, epuid string) error {
	log.Printf("[net] Creating endpoint %v on network %v.", epuid, nuid)
	var err error
	defer func() {
		if err != nil {
			log.Printf("[net] Failed to create endpoint %v on network %v, err:%v.", epuid, nuid, err)
		}
	}()

	nw := m.lookupNetwork(nuid)
	if nw == nil {
		log.Printf("[net] Network %v not found, endpoint_create for %v is a no-op.", nuid, epuid)
		return nil
	}

	var ep *endpoint
	ep, err = newEndpoint(m.kern, epuid)
	if err != nil {
		return err
	}
	nw.endpointAdd(ep)
	log.Printf("[net] Created endpoint %v on network %v.", epuid, nuid)
	return nil
}

// EndpointDelete removes epuid from nuid's network, tearing down its
// kernel state.
func (m *Manager) EndpointDelete(nuid, epuid string) error {
	log.Printf("[net] Deleting endpoint %v from network %v.", epuid, nuid)

	nw := m.lookupNetwork(nuid)
	if nw == nil {
		log.Printf("[net] Network %v not found, endpoint_delete for %v is a no-op.", nuid, epuid)
		return nil
	}
	nw.endpointRemove(m.kern, epuid)
	log.Printf("[net] Deleted endpoint %v from network %v.", epuid, nuid)
	return nil
}

// EndpointAttach is the recovery-aware entry point: it performs the
// double-checked "missing network" recovery, then the analogous "missing
// endpoint" create-or-observe recovery, before delegating the rule weaving
// to network.endpointAttach.
func (m *Manager) EndpointAttach(nuid, epuid, sandboxKey string, optionsBlob []byte) (*JoinResponse, error) {
	log.Printf("[net] Attaching endpoint %v on network %v to sandbox %v.", epuid, nuid, sandboxKey)
	var err error
	defer func() {
		if err != nil {
			log.Printf("[net] Failed to attach endpoint %v on network %v, err:%v.", epuid, nuid, err)
		}
	}()

	var nw *network
	nw, err = m.resolveNetwork(nuid)
	if err != nil {
		return nil, err
	}

	if err = m.resolveEndpoint(nw, epuid); err != nil {
		return nil, err
	}

	peerOverride := parseAttachOptions(optionsBlob)
	var resp *JoinResponse
	resp, err = nw.endpointAttach(m.kern, epuid, peerOverride)
	if err != nil {
		return nil, err
	}
	log.Printf("[net] Attached endpoint %v on network %v, response %+v.", epuid, nuid, resp)
	return resp, nil
}

// EndpointDetach locates nuid's network and detaches epuid. Detachment is
// best-effort cleanup: an unknown network or endpoint is a no-op.
func (m *Manager) EndpointDetach(nuid, epuid string) error {
	log.Printf("[net] Detaching endpoint %v from network %v.", epuid, nuid)

	nw := m.lookupNetwork(nuid)
	if nw == nil {
		log.Printf("[net] Network %v not found, endpoint_detach for %v is a no-op.", nuid, epuid)
		return nil
	}
	nw.endpointDetach(m.kern, epuid)
	log.Printf("[net] Detached endpoint %v from network %v.", epuid, nuid)
	return nil
}

// lookupNetwork is a plain shared-lock read, no recovery.
func (m *Manager) lookupNetwork(nuid string) *network {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.networks[nuid]
}

// resolveNetwork implements the double-checked network recovery: read
// shared; if missing, acquire loadMu exclusive, re-check, and on a second
// miss consult the persistence file before giving up with NetworkNotFound.
func (m *Manager) resolveNetwork(nuid string) (*network, error) {
	if nw := m.lookupNetwork(nuid); nw != nil {
		return nw, nil
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if nw := m.lookupNetwork(nuid); nw != nil {
		return nw, nil
	}

	configs, err := m.persist.Load()
	if err != nil {
		log.Errorf("[net] resolveNetwork: failed to read persistence file: %v", err)
		return nil, vxerr.ErrNetworkNotFound
	}
	cfg, ok := configs[nuid]
	if !ok {
		return nil, vxerr.ErrNetworkNotFound
	}

	nw, err := newNetwork(m.kern, cfg.Device, cfg.Peer, cfg.CanID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.networks[nuid] = nw
	m.mu.Unlock()

	return nw, nil
}

// resolveEndpoint implements the analogous missing-endpoint recovery
// pattern: read-check, release, exclusive-acquire, re-check,
// create-or-observe. This is how an endpoint that survived a process
// restart in the kernel gets re-materialized in memory on attach.
func (m *Manager) resolveEndpoint(nw *network, epuid string) error {
	if nw.getEndpoint(epuid) != nil {
		return nil
	}

	nw.mu.Lock()
	defer nw.mu.Unlock()

	if _, ok := nw.endpoints[epuid]; ok {
		return nil
	}

	ep, err := newEndpoint(m.kern, epuid)
	if err != nil {
		return err
	}
	nw.endpoints[epuid] = ep
	return nil
}

// persistAll writes the whole-map snapshot of every network currently in
// the Manager. Persistence failures are logged, never propagated: loss of
// durability is preferred to loss of liveness.
func (m *Manager) persistAll() {
	m.mu.RLock()
	snapshot := make(map[string]store.NetworkConfig, len(m.networks))
	for nuid, nw := range m.networks {
		snapshot[nuid] = store.NetworkConfig{
			Device: nw.device,
			Peer:   nw.peer,
			CanID:  nw.canid,
		}
	}
	m.mu.RUnlock()

	if err := m.persist.Save(snapshot); err != nil {
		log.Errorf("[net] failed to persist network state: %v", err)
	}
}
