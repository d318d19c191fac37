// Package roundtrip_test exercises the property spec.md §8 calls out
// explicitly: a stream produced by a Generator, replayed through a
// Tracer, reconstructs exactly the retirement sequence fed to the
// Generator in the first place.
package roundtrip_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riscv-trace/etrace/binary"
	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/generator"
	"github.com/riscv-trace/etrace/insn"
	"github.com/riscv-trace/etrace/packet"
	"github.com/riscv-trace/etrace/tracer"
	"github.com/riscv-trace/etrace/types"
)

// step is a minimal generator.Step for the scenarios below: a plain
// retirement at a given address, instruction size and privilege.
type step struct {
	addr uint64
	priv types.Privilege
}

func (s step) Address() uint64 { return s.addr }
func (s step) Kind() generator.Kind {
	return generator.Kind{Tag: generator.KindRetirement, InsnSize: insn.Normal}
}
func (s step) CType() generator.CType { return generator.CTypeUnreported }
func (s step) Context() types.Context { return types.Context{Privilege: s.priv} }
func (s step) Timestamp() *uint64     { return nil }

func generate(steps []step) []*packet.InstructionTrace {
	protocol := config.NewBuilder().Build()
	gen := generator.NewBuilder().WithProtocol(protocol).Build()

	var payloads []*packet.InstructionTrace
	for _, s := range steps {
		payload, err := gen.ProcessStep(s, nil)
		Expect(err).NotTo(HaveOccurred())
		if payload != nil {
			payloads = append(payloads, payload)
		}
	}
	drain := gen.EndQualification(false)
	for {
		payload, ok, err := drain.Next()
		Expect(err).NotTo(HaveOccurred())
		if !ok {
			break
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

func replay(oracle binary.Oracle, payloads []*packet.InstructionTrace) []tracer.Item {
	protocol := config.NewBuilder().Build()
	tr, err := tracer.NewBuilder().WithOracle(oracle).WithProtocol(protocol).Build()
	Expect(err).NotTo(HaveOccurred())

	var items []tracer.Item
	for _, p := range payloads {
		Expect(tr.ProcessPayload(p)).To(Succeed())
		for {
			item, ok, err := tr.Next()
			Expect(err).NotTo(HaveOccurred())
			if !ok {
				break
			}
			items = append(items, item)
		}
	}
	return items
}

var _ = Describe("Generator/Tracer round trip", func() {
	When("the hart retires a straight run of instructions", func() {
		It("reconstructs the same PC sequence the generator was fed", func() {
			oracle := binary.Table{
				0x80000000: {Size: insn.Normal, Kind: insn.KindNone},
				0x80000004: {Size: insn.Normal, Kind: insn.KindNone},
				0x80000008: {Size: insn.Normal, Kind: insn.KindNone},
				0x8000000c: {Size: insn.Normal, Kind: insn.KindNone},
			}
			steps := []step{
				{addr: 0x80000000, priv: types.PrivilegeUser},
				{addr: 0x80000004, priv: types.PrivilegeUser},
				{addr: 0x80000008, priv: types.PrivilegeUser},
				{addr: 0x8000000c, priv: types.PrivilegeUser},
			}

			payloads := generate(steps)
			Expect(payloads).NotTo(BeEmpty())
			Expect(payloads[0].Format).To(Equal(packet.FormatSync))
			Expect(payloads[0].Sync.Subformat).To(Equal(packet.SyncStart))

			items := replay(oracle, payloads)

			var pcs []uint64
			for _, it := range items {
				pcs = append(pcs, it.PC)
			}
			Expect(pcs).To(Equal([]uint64{
				0x80000000, 0x80000000, 0x80000004, 0x80000008, 0x8000000c,
			}))
			Expect(items[0].Kind).To(Equal(tracer.KindContext))
			for _, it := range items[1:] {
				Expect(it.Kind).To(Equal(tracer.KindRegular))
			}
		})
	})

	When("a privilege change occurs mid-run", func() {
		It("forces a second synchronization that still reconstructs the right PC sequence", func() {
			oracle := binary.Table{
				0x80001000: {Size: insn.Normal, Kind: insn.KindNone},
				0x80001004: {Size: insn.Normal, Kind: insn.KindNone},
				0x80001008: {Size: insn.Normal, Kind: insn.KindNone},
			}
			steps := []step{
				{addr: 0x80001000, priv: types.PrivilegeUser},
				{addr: 0x80001004, priv: types.PrivilegeUser},
				{addr: 0x80001008, priv: types.PrivilegeMachine},
			}

			payloads := generate(steps)
			var syncCount int
			for _, p := range payloads {
				if p.Format == packet.FormatSync && p.Sync.Subformat == packet.SyncStart {
					syncCount++
				}
			}
			Expect(syncCount).To(Equal(2), "expected a Sync on the privilege change in addition to the initial one")
			Expect(payloads[1].Sync.Start.Context.Privilege).To(Equal(types.PrivilegeMachine))

			items := replay(oracle, payloads)
			var pcs []uint64
			for _, it := range items {
				pcs = append(pcs, it.PC)
			}
			Expect(pcs).To(Equal([]uint64{0x80001000, 0x80001000, 0x80001004, 0x80001008}))
		})
	})
})
