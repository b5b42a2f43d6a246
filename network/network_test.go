// Copyright 2017 Microsoft. All rights reserved.
// MIT License

package network

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Nomadic-Drones/rustycan4docker/kernel"
)

var _ = Describe("Network", func() {
	var rec *kernel.Recorder
	var nw *network

	BeforeEach(func() {
		rec = kernel.NewRecorder()
		var err error
		nw, err = newNetwork(rec, "vcan", "vcanp", "0")
		Expect(err).NotTo(HaveOccurred())
		Expect(nw.ifc).To(Equal("vcan0"))
		Expect(nw.createdByUs).To(BeTrue())
	})

	attachEndpoint := func(uid, peerOverride string) *JoinResponse {
		ep, err := newEndpoint(rec, uid)
		Expect(err).NotTo(HaveOccurred())
		nw.endpointAdd(ep)

		resp, err := nw.endpointAttach(rec, uid, peerOverride)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("wires a single endpoint to the bus", func() {
		resp := attachEndpoint("AAAAAAAAAA", "")

		Expect(rec.HasRule("vcan0", "vxcanAAAAAAAA", false)).To(BeTrue())
		Expect(rec.HasRule("vxcanAAAAAAAA", "vcan0", false)).To(BeTrue())
		Expect(resp.SrcName).To(Equal("vxcanAAAAAAAAp"))
		Expect(resp.DstPrefix).To(Equal("vcanp"))
	})

	It("cross-wires a second endpoint and keeps both bus edges", func() {
		attachEndpoint("AAAAAAAAAA", "")
		attachEndpoint("BBBBBBBBBB", "")

		Expect(rec.HasRule("vcan0", "vxcanAAAAAAAA", false)).To(BeTrue())
		Expect(rec.HasRule("vcan0", "vxcanBBBBBBBB", false)).To(BeTrue())
		Expect(rec.HasRule("vxcanAAAAAAAA", "vxcanBBBBBBBB", false)).To(BeTrue())
		Expect(rec.HasRule("vxcanBBBBBBBB", "vxcanAAAAAAAA", false)).To(BeTrue())
		Expect(nw.rules).To(HaveLen(6))
	})

	It("honours a peer override on attach", func() {
		resp := attachEndpoint("AAAAAAAAAA", "can42")
		Expect(resp.DstPrefix).To(Equal("can42"))
	})

	It("removes the detached endpoint's rules and keeps the other's bus edges", func() {
		attachEndpoint("AAAAAAAAAA", "")
		attachEndpoint("BBBBBBBBBB", "")

		nw.endpointDetach(rec, "AAAAAAAAAA")

		Expect(nw.rules).To(HaveLen(2))
		Expect(rec.HasRule("vcan0", "vxcanBBBBBBBB", false)).To(BeTrue())
		Expect(rec.HasRule("vxcanBBBBBBBB", "vcan0", false)).To(BeTrue())
		Expect(rec.HasRule("vcan0", "vxcanAAAAAAAA", false)).To(BeFalse())
	})

	It("is idempotent when attaching the same endpoint twice", func() {
		first := attachEndpoint("AAAAAAAAAA", "")
		ep, err := newEndpoint(rec, "AAAAAAAAAA")
		Expect(err).NotTo(HaveOccurred())
		nw.endpointAdd(ep)
		second, err := nw.endpointAttach(rec, "AAAAAAAAAA", "")
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
		Expect(nw.rules).To(HaveLen(2))
	})

	It("skips cross-wiring a peer whose interface has disappeared", func() {
		ep, err := newEndpoint(rec, "BBBBBBBBBB")
		Expect(err).NotTo(HaveOccurred())
		nw.endpointAdd(ep)

		// Simulate B's vxcan having been externally deleted before A attaches.
		delete(rec.Interfaces, "vxcanBBBBBBBB")
		delete(rec.Interfaces, "vxcanBBBBBBBBp")

		attachEndpoint("AAAAAAAAAA", "")

		Expect(rec.HasRule("vcan0", "vxcanAAAAAAAA", false)).To(BeTrue())
		Expect(rec.HasRule("vxcanAAAAAAAA", "vxcanBBBBBBBB", false)).To(BeFalse())

		// A subsequent attach of B recreates its pair and wires both edges.
		resp := attachEndpoint("BBBBBBBBBB", "")
		Expect(resp).NotTo(BeNil())
		Expect(rec.HasRule("vxcanAAAAAAAA", "vxcanBBBBBBBB", false)).To(BeTrue())
		Expect(rec.HasRule("vxcanBBBBBBBB", "vxcanAAAAAAAA", false)).To(BeTrue())
	})

	It("fails EndpointNotFound for an endpoint never added", func() {
		_, err := nw.endpointAttach(rec, "ZZZZZZZZZZ", "")
		Expect(err).To(MatchError(ContainSubstring("endpoint not found")))
	})

	It("reports health only while bus and endpoint devices are present", func() {
		attachEndpoint("AAAAAAAAAA", "")
		ok, err := nw.validateHealth(rec)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		delete(rec.Interfaces, "vxcanAAAAAAAA")
		ok, err = nw.validateHealth(rec)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})
