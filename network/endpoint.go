// Copyright 2017 Microsoft. All rights reserved.
// MIT License

package network

import (
	"github.com/Nomadic-Drones/rustycan4docker/kernel"
	"github.com/Nomadic-Drones/rustycan4docker/log"
)

// devicePrefixLen is the number of leading bytes of an EndpointId used to
// derive the vxcan device name. Two ids sharing this prefix get the same
// device name and nothing detects it: the second endpoint finds the device
// present and adopts it without ownership. See DESIGN.md.
const devicePrefixLen = 8

// RecoveryState reports what ensureInterfaceExists had to do.
type RecoveryState int

const (
	// AlreadyPresent means the kernel already had the interface.
	AlreadyPresent RecoveryState = iota
	// Recreated means this call created the interface.
	Recreated
)

// endpoint is one container's attachment to a network, backed by one vxcan
// pair. It carries no back-pointer to its owning network: the network
// passes its own ifc name as an argument when weaving rules.
type endpoint struct {
	uid         string
	device      string
	peer        string
	createdByUs bool
}

// newEndpoint derives device/peer names from uid and ensures the kernel
// vxcan pair exists.
func newEndpoint(kern kernel.Interface, uid string) (*endpoint, error) {
	device := deviceName(uid)
	ep := &endpoint{
		uid:    uid,
		device: device,
		peer:   device + "p",
	}

	ifaces, err := kern.ListInterfaces()
	if err != nil {
		return nil, err
	}
	if kernel.Exists(ifaces, device) {
		log.Printf("[net] vxcan %v already present, adopting without ownership", device)
		return ep, nil
	}

	result, err := kern.AddVxcanPair(device, ep.peer)
	if err != nil {
		return nil, err
	}
	if result == kernel.AlreadyExists {
		log.Printf("[net] vxcan %v created concurrently by another actor", device)
		return ep, nil
	}

	if err := kern.LinkUp(device); err != nil {
		return nil, err
	}
	ep.createdByUs = true
	return ep, nil
}

// deviceName computes "vxcan" + the first devicePrefixLen bytes of uid.
func deviceName(uid string) string {
	if len(uid) > devicePrefixLen {
		uid = uid[:devicePrefixLen]
	}
	return "vxcan" + uid
}

// interfaceExists reports whether the kernel currently enumerates device.
func (ep *endpoint) interfaceExists(kern kernel.Interface) (bool, error) {
	ifaces, err := kern.ListInterfaces()
	if err != nil {
		return false, err
	}
	return kernel.Exists(ifaces, ep.device), nil
}

// ensureInterfaceExists is the idempotent repair path network.endpointAttach
// calls during its recovery step.
func (ep *endpoint) ensureInterfaceExists(kern kernel.Interface) (RecoveryState, error) {
	present, err := ep.interfaceExists(kern)
	if err != nil {
		return AlreadyPresent, err
	}
	if present {
		return AlreadyPresent, nil
	}

	result, err := kern.AddVxcanPair(ep.device, ep.peer)
	if err != nil {
		return AlreadyPresent, err
	}
	if result == kernel.AlreadyExists {
		return AlreadyPresent, nil
	}

	if err := kern.LinkUp(ep.device); err != nil {
		return AlreadyPresent, err
	}
	ep.createdByUs = true
	return Recreated, nil
}

// destroy tears down the vxcan pair if this process owns it. Errors are
// logged, never propagated: destruction must not fail.
func (ep *endpoint) destroy(kern kernel.Interface) {
	if !ep.createdByUs {
		return
	}

	if err := kern.LinkDown(ep.device); err != nil {
		log.Printf("[net] failed to bring down %v during teardown: %v", ep.device, err)
	}
	if err := kern.DeleteVxcanPair(ep.device); err != nil {
		log.Printf("[net] failed to delete vxcan pair %v during teardown: %v", ep.device, err)
	}
}
