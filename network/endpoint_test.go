// Copyright 2017 Microsoft. All rights reserved.
// MIT License

package network

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Nomadic-Drones/rustycan4docker/kernel"
)

var _ = Describe("Endpoint", func() {
	var rec *kernel.Recorder

	BeforeEach(func() {
		rec = kernel.NewRecorder()
	})

	It("derives device and peer names from the first 8 bytes of uid", func() {
		ep, err := newEndpoint(rec, "AAAAAAAAAA")
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.device).To(Equal("vxcanAAAAAAAA"))
		Expect(ep.peer).To(Equal("vxcanAAAAAAAAp"))
		Expect(ep.createdByUs).To(BeTrue())
	})

	It("uses the whole uid when shorter than the prefix length", func() {
		ep, err := newEndpoint(rec, "AB")
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.device).To(Equal("vxcanAB"))
	})

	It("adopts an already-present interface without claiming ownership", func() {
		rec.Interfaces["vxcanAAAAAAAA"] = struct{}{}
		rec.Interfaces["vxcanAAAAAAAAp"] = struct{}{}

		ep, err := newEndpoint(rec, "AAAAAAAAAA")
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.createdByUs).To(BeFalse())
	})

	It("reports AlreadyPresent from ensureInterfaceExists when nothing changed", func() {
		ep, err := newEndpoint(rec, "AAAAAAAAAA")
		Expect(err).NotTo(HaveOccurred())

		state, err := ep.ensureInterfaceExists(rec)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(AlreadyPresent))
	})

	It("recreates a missing pair and reports Recreated", func() {
		ep, err := newEndpoint(rec, "AAAAAAAAAA")
		Expect(err).NotTo(HaveOccurred())

		delete(rec.Interfaces, ep.device)
		delete(rec.Interfaces, ep.peer)

		state, err := ep.ensureInterfaceExists(rec)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(Recreated))
		Expect(rec.HasInterface(ep.device)).To(BeTrue())
	})

	It("tears down the pair on destroy only if it owns it", func() {
		ep, err := newEndpoint(rec, "AAAAAAAAAA")
		Expect(err).NotTo(HaveOccurred())

		ep.destroy(rec)
		Expect(rec.HasInterface(ep.device)).To(BeFalse())
	})

	It("leaves an adopted pair alone on destroy", func() {
		rec.Interfaces["vxcanAAAAAAAA"] = struct{}{}
		rec.Interfaces["vxcanAAAAAAAAp"] = struct{}{}

		ep, err := newEndpoint(rec, "AAAAAAAAAA")
		Expect(err).NotTo(HaveOccurred())

		ep.destroy(rec)
		Expect(rec.HasInterface(ep.device)).To(BeTrue())
	})
})
