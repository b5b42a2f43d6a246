// Copyright 2017 Microsoft. All rights reserved.
// MIT License

package network

import (
	"sync"

	"github.com/Nomadic-Drones/rustycan4docker/kernel"
	"github.com/Nomadic-Drones/rustycan4docker/log"
	"github.com/Nomadic-Drones/rustycan4docker/vxerr"
)

// rulePair is a directed (src,dst) interface tuple. Each logical pair is
// realised as two cangw kernel entries (standard + extended frame format);
// rules tracks only the logical pair.
type rulePair struct {
	src, dst string
}

// JoinResponse is returned to the container engine from EndpointAttach. The
// field names are fixed by the external wire contract.
type JoinResponse struct {
	SrcName   string
	DstPrefix string
}

// network is one logical CAN bus: one vcan interface plus the rule set that
// bridges all its endpoints. Endpoint carries no back-pointer here; rule
// weaving always passes nw.ifc explicitly.
type network struct {
	device      string
	peer        string
	canid       string
	ifc         string
	createdByUs bool

	mu        sync.RWMutex
	endpoints map[string]*endpoint

	rulesMu sync.RWMutex
	rules   []rulePair
}

// newNetwork reconciles (or creates) the vcan bus interface named
// device+canid.
func newNetwork(kern kernel.Interface, device, peer, canid string) (*network, error) {
	nw := &network{
		device:    device,
		peer:      peer,
		canid:     canid,
		ifc:       device + canid,
		endpoints: make(map[string]*endpoint),
	}

	ifaces, err := kern.ListInterfaces()
	if err != nil {
		return nil, err
	}
	if kernel.Exists(ifaces, nw.ifc) {
		log.Printf("[net] vcan bus %v already present, adopting without ownership", nw.ifc)
		return nw, nil
	}

	result, err := kern.AddVcan(nw.ifc)
	if err != nil {
		return nil, err
	}
	if result == kernel.AlreadyExists {
		log.Printf("[net] vcan bus %v created concurrently by another actor", nw.ifc)
		return nw, nil
	}

	if err := kern.LinkUp(nw.ifc); err != nil {
		return nil, err
	}
	nw.createdByUs = true
	return nw, nil
}

// ensureBusExists is the recovery step endpointAttach runs first: if the
// bus interface is missing (e.g. after a host reboot), recreate it. The
// caller holds nw.mu.
func (nw *network) ensureBusExists(kern kernel.Interface) error {
	ifaces, err := kern.ListInterfaces()
	if err != nil {
		return err
	}
	if kernel.Exists(ifaces, nw.ifc) {
		return nil
	}

	result, err := kern.AddVcan(nw.ifc)
	if err != nil {
		return err
	}
	if result == kernel.AlreadyExists {
		return nil
	}

	nw.createdByUs = true
	return kern.LinkUp(nw.ifc)
}

// endpointAdd inserts ep under ep.uid, overwriting on collision (last
// writer wins). Pure in-memory; no kernel effect.
func (nw *network) endpointAdd(ep *endpoint) {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	nw.endpoints[ep.uid] = ep
}

// endpointRemove removes uid (no-op if absent) and tears down its kernel
// state. destroy runs under nw.mu: it reads ep.createdByUs, which a
// concurrent endpointAttach on the same endpoint may write under the same
// lock, so releasing the lock before destroy would let the two race on
// that field.
func (nw *network) endpointRemove(kern kernel.Interface, uid string) {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	ep, ok := nw.endpoints[uid]
	if !ok {
		return
	}
	delete(nw.endpoints, uid)
	ep.destroy(kern)
}

// getEndpoint returns the endpoint for uid, or nil if absent.
func (nw *network) getEndpoint(uid string) *endpoint {
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	return nw.endpoints[uid]
}

// endpointAttach weaves the forwarding rules that bridge uid onto the bus
// and to every other present endpoint. It fails with EndpointNotFound if
// uid was never added to this network; the Manager is responsible for the
// create-or-observe recovery that happens before this is called.
//
// The whole algorithm runs under nw.mu held exclusively:
// ensureInterfaceExists (step 3) mutates ep.createdByUs, and that mutation
// must be serialized against a concurrent endpointRemove's ep.destroy on
// the same endpoint.
func (nw *network) endpointAttach(kern kernel.Interface, uid, peerOverride string) (*JoinResponse, error) {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	// Step 1: bus recovery. Runs under nw.mu as well: it mutates
	// nw.createdByUs when it has to recreate the bus, and two attaches
	// racing through a missing bus must not write that field concurrently.
	if err := nw.ensureBusExists(kern); err != nil {
		return nil, err
	}

	// Step 2: endpoint must already be known to this network.
	ep, ok := nw.endpoints[uid]
	if !ok {
		return nil, vxerr.ErrEndpointNotFound
	}

	// Step 3: ensure this endpoint's own vxcan pair is present.
	if _, err := ep.ensureInterfaceExists(kern); err != nil {
		return nil, err
	}

	// Step 4: bus <-> endpoint forwarding rules.
	if err := nw.addRule(kern, nw.ifc, ep.device); err != nil {
		return nil, err
	}
	if err := nw.addRule(kern, ep.device, nw.ifc); err != nil {
		return nil, err
	}

	// Step 5: cross-wire every other present endpoint.
	for otherUID, other := range nw.endpoints {
		if otherUID == uid {
			continue
		}

		present, err := other.interfaceExists(kern)
		if err != nil {
			return nil, err
		}
		if !present {
			log.Printf("[net] skipping cross-wire %v<->%v: peer not present in kernel", ep.device, other.device)
			continue
		}
		if err := nw.addRule(kern, other.device, ep.device); err != nil {
			return nil, err
		}
		if err := nw.addRule(kern, ep.device, other.device); err != nil {
			return nil, err
		}
	}

	// Step 6: response.
	dstPrefix := nw.peer
	if peerOverride != "" {
		dstPrefix = peerOverride
	}
	return &JoinResponse{SrcName: ep.peer, DstPrefix: dstPrefix}, nil
}

// endpointDetach reverses endpointAttach: removes every rule this endpoint
// participates in. Absent rules are silently skipped, and an unknown uid is
// a no-op: detach is best-effort cleanup and never fails.
func (nw *network) endpointDetach(kern kernel.Interface, uid string) {
	ep := nw.getEndpoint(uid)
	if ep == nil {
		log.Printf("[net] Endpoint %v not found on bus %v, detach is a no-op.", uid, nw.ifc)
		return
	}

	nw.mu.RLock()
	others := make([]*endpoint, 0, len(nw.endpoints))
	for otherUID, other := range nw.endpoints {
		if otherUID != uid {
			others = append(others, other)
		}
	}
	nw.mu.RUnlock()

	for _, other := range others {
		nw.removeRule(kern, other.device, ep.device)
		nw.removeRule(kern, ep.device, other.device)
	}

	nw.removeRule(kern, ep.device, nw.ifc)
	nw.removeRule(kern, nw.ifc, ep.device)
}

// validateHealth reports whether nw.ifc and every endpoint's device are
// present in the kernel.
func (nw *network) validateHealth(kern kernel.Interface) (bool, error) {
	ifaces, err := kern.ListInterfaces()
	if err != nil {
		return false, err
	}
	if !kernel.Exists(ifaces, nw.ifc) {
		return false, nil
	}

	nw.mu.RLock()
	defer nw.mu.RUnlock()
	for _, ep := range nw.endpoints {
		if !kernel.Exists(ifaces, ep.device) {
			return false, nil
		}
	}
	return true, nil
}

// addRule installs the directed pair (src,dst) if not already present,
// including both the standard- and extended-frame cangw entries.
func (nw *network) addRule(kern kernel.Interface, src, dst string) error {
	nw.rulesMu.Lock()
	defer nw.rulesMu.Unlock()

	pair := rulePair{src: src, dst: dst}
	for _, existing := range nw.rules {
		if existing == pair {
			return nil
		}
	}

	if err := kern.CangwAdd(src, dst, false); err != nil {
		return err
	}
	if err := kern.CangwAdd(src, dst, true); err != nil {
		return err
	}

	nw.rules = append(nw.rules, pair)
	return nil
}

// removeRule deletes the directed pair (src,dst) by value equality (first
// match removed); a no-op if absent.
func (nw *network) removeRule(kern kernel.Interface, src, dst string) {
	nw.rulesMu.Lock()
	defer nw.rulesMu.Unlock()

	pair := rulePair{src: src, dst: dst}
	idx := -1
	for i, existing := range nw.rules {
		if existing == pair {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	if err := kern.CangwDel(src, dst, false); err != nil {
		log.Printf("[net] failed to remove standard-frame rule %v->%v: %v", src, dst, err)
	}
	if err := kern.CangwDel(src, dst, true); err != nil {
		log.Printf("[net] failed to remove extended-frame rule %v->%v: %v", src, dst, err)
	}

	nw.rules = append(nw.rules[:idx], nw.rules[idx+1:]...)
}

// destroy removes the vcan bus interface if this process owns it, and
// tears down every remaining endpoint. Errors are logged, never propagated.
func (nw *network) destroy(kern kernel.Interface) {
	nw.mu.Lock()
	endpoints := make([]*endpoint, 0, len(nw.endpoints))
	for _, ep := range nw.endpoints {
		endpoints = append(endpoints, ep)
	}
	nw.endpoints = make(map[string]*endpoint)
	for _, ep := range endpoints {
		ep.destroy(kern)
	}
	ours := nw.createdByUs
	nw.mu.Unlock()

	if !ours {
		return
	}
	if err := kern.LinkDown(nw.ifc); err != nil {
		log.Printf("[net] failed to bring down bus %v during teardown: %v", nw.ifc, err)
	}
	if err := kern.DeleteVcan(nw.ifc); err != nil {
		log.Printf("[net] failed to delete bus %v during teardown: %v", nw.ifc, err)
	}
}
