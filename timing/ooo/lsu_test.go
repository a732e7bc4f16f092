package ooo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/o3sim/emu"
	"github.com/sarchlab/o3sim/timing/mem"
	"github.com/sarchlab/o3sim/timing/ooo"
)

func storeUop(seq uint64, robIndex int, word uint32) ooo.RenamedOp {
	return ooo.RenamedOp{
		DecodedOp: uop(0x1000+uint32(seq)*4, word),
		Seq:       seq,
		ROBIndex:  robIndex,
	}
}

func loadUop(seq uint64, robIndex int, word uint32, dest ooo.PhysReg) ooo.RenamedOp {
	op := storeUop(seq, robIndex, word)
	op.Dest = dest
	op.HasDest = true
	return op
}

var _ = Describe("LSU", func() {
	var (
		backing *emu.Memory
		port    *mem.SimpleMemory
		lsu     *ooo.LSU
	)

	BeforeEach(func() {
		backing = emu.NewMemory()
		port = mem.NewSimpleMemory(backing,
			mem.WithLatencyConfig(&mem.LatencyConfig{LoadLatency: 2, StoreLatency: 2}))
		lsu = ooo.NewLSU(4, port)
	})

	// step advances the memory channel and the LSU by one cycle.
	step := func() {
		port.Tick()
		lsu.CollectResponses()
		lsu.TryMemOps()
	}

	execStore := func(op ooo.RenamedOp, base, data uint32) {
		Expect(lsu.CanExecStore()).To(BeTrue())
		lsu.ExecStore(op, base, data)
		lsu.DrainStoreCompletion()
	}

	Describe("store-to-load forwarding", func() {
		It("should forward the youngest uncommitted store", func() {
			s1 := storeUop(0, 0, sw(5, 1, 0))
			s2 := storeUop(1, 1, sw(5, 1, 0))
			lsu.DispatchStore(s1)
			lsu.DispatchStore(s2)
			execStore(s1, 0x2000, 0xAABBCCDD)
			execStore(s2, 0x2000, 0x11223344)

			ld := loadUop(2, 2, lw(6, 1, 0), 40)
			Expect(lsu.CanStartLoad(2)).To(BeTrue())
			lsu.ExecLoad(ld, 0x2000)

			pkt, ok := lsu.PeekLoadCompletion()
			Expect(ok).To(BeTrue(), "full forward completes without memory")
			Expect(pkt.Value).To(Equal(uint32(0x11223344)))
			Expect(pkt.Dest).To(Equal(ooo.PhysReg(40)))
			Expect(lsu.Stats().FullForwards).To(Equal(uint64(1)))
		})

		It("should fall back to the oldest committed store", func() {
			s1 := storeUop(0, 0, sw(5, 1, 0))
			s2 := storeUop(1, 1, sw(5, 1, 0))
			lsu.DispatchStore(s1)
			lsu.DispatchStore(s2)
			execStore(s1, 0x2000, 0x11111111)
			execStore(s2, 0x2000, 0x22222222)
			_, _, _, ok := lsu.MarkCommitted(0, 0)
			Expect(ok).To(BeTrue())
			_, _, _, ok = lsu.MarkCommitted(1, 0)
			Expect(ok).To(BeTrue())

			ld := loadUop(2, 2, lw(6, 1, 0), 40)
			lsu.ExecLoad(ld, 0x2000)

			pkt, ok := lsu.PeekLoadCompletion()
			Expect(ok).To(BeTrue())
			Expect(pkt.Value).To(Equal(uint32(0x11111111)))
		})

		It("should merge forwarded bytes over memory bytes", func() {
			backing.Write32(0x2000, 0xDDCCBBAA)

			s1 := storeUop(0, 0, sh(5, 1, 0))
			lsu.DispatchStore(s1)
			execStore(s1, 0x2000, 0xFFFF1234)

			ld := loadUop(1, 1, lw(6, 1, 0), 40)
			Expect(lsu.CanStartLoad(1)).To(BeTrue())
			lsu.ExecLoad(ld, 0x2000)

			_, ok := lsu.PeekLoadCompletion()
			Expect(ok).To(BeFalse(), "partial forward needs a memory read")

			for i := 0; i < 4; i++ {
				step()
			}

			pkt, ok := lsu.PeekLoadCompletion()
			Expect(ok).To(BeTrue())
			Expect(pkt.Value).To(Equal(uint32(0xDDCC1234)))
			Expect(lsu.Stats().PartialForwards).To(Equal(uint64(1)))
		})

		It("should sign-extend forwarded halfword loads", func() {
			s1 := storeUop(0, 0, sh(5, 1, 0))
			lsu.DispatchStore(s1)
			execStore(s1, 0x2000, 0x8000)

			ld := loadUop(1, 1, lh(6, 1, 0), 40)
			lsu.ExecLoad(ld, 0x2000)

			pkt, ok := lsu.PeekLoadCompletion()
			Expect(ok).To(BeTrue())
			Expect(pkt.Value).To(Equal(uint32(0xFFFF8000)))
		})
	})

	Describe("conservative load scheduling", func() {
		It("should block a load while an older store lacks address and data", func() {
			s1 := storeUop(0, 0, sw(5, 1, 0))
			lsu.DispatchStore(s1)

			Expect(lsu.CanStartLoad(1)).To(BeFalse())

			execStore(s1, 0x3000, 7)
			Expect(lsu.CanStartLoad(1)).To(BeTrue())
		})

		It("should not block a load on younger stores", func() {
			s1 := storeUop(5, 0, sw(5, 1, 0))
			lsu.DispatchStore(s1)

			Expect(lsu.CanStartLoad(2)).To(BeTrue())
		})

		It("should allow only one outstanding load", func() {
			ld := loadUop(0, 0, lw(6, 1, 0), 40)
			lsu.ExecLoad(ld, 0x2000)

			Expect(lsu.CanStartLoad(1)).To(BeFalse())
		})
	})

	Describe("store drain", func() {
		It("should write memory only after commit, in order, with an ack", func() {
			s1 := storeUop(0, 0, sw(5, 1, 0))
			lsu.DispatchStore(s1)
			execStore(s1, 0x2000, 0xCAFEBABE)

			// Executed but uncommitted: never drains.
			for i := 0; i < 4; i++ {
				step()
			}
			Expect(backing.Read32(0x2000)).To(Equal(uint32(0)))

			addr, size, data, ok := lsu.MarkCommitted(0, 0)
			Expect(ok).To(BeTrue())
			Expect(addr).To(Equal(uint32(0x2000)))
			Expect(size).To(Equal(4))
			Expect(data).To(Equal(uint32(0xCAFEBABE)))

			for i := 0; i < 4 && lsu.StoreQueueLen() > 0; i++ {
				step()
			}
			Expect(backing.Read32(0x2000)).To(Equal(uint32(0xCAFEBABE)))
			Expect(lsu.StoreQueueLen()).To(Equal(0))
		})

		It("should apply the byte mask of narrow stores", func() {
			backing.Write32(0x2000, 0xFFFFFFFF)

			s1 := storeUop(0, 0, sh(5, 1, 2))
			lsu.DispatchStore(s1)
			execStore(s1, 0x2000, 0x1234)
			lsu.MarkCommitted(0, 0)

			for i := 0; i < 4 && lsu.StoreQueueLen() > 0; i++ {
				step()
			}
			Expect(backing.Read32(0x2000)).To(Equal(uint32(0x1234FFFF)))
		})
	})

	Describe("faults", func() {
		It("should flag a misaligned load", func() {
			ld := loadUop(0, 0, lw(6, 1, 0), 40)
			lsu.ExecLoad(ld, 0x2002)

			pkt, ok := lsu.PeekLoadCompletion()
			Expect(ok).To(BeTrue())
			Expect(pkt.Fault).To(BeTrue())
		})

		It("should flag a misaligned store", func() {
			s1 := storeUop(0, 0, sw(5, 1, 0))
			lsu.DispatchStore(s1)
			lsu.ExecStore(s1, 0x2001, 7)

			pkt, ok := lsu.PeekStoreCompletion()
			Expect(ok).To(BeTrue())
			Expect(pkt.Fault).To(BeTrue())
		})
	})

	Describe("squash", func() {
		It("should drop a squashed load's in-flight memory response", func() {
			ld := loadUop(0, 3, lw(6, 1, 0), 40)
			lsu.ExecLoad(ld, 0x2000)
			step()

			lsu.Squash(3, 0)

			// The response arrives after the squash and must vanish.
			for i := 0; i < 4; i++ {
				step()
			}
			_, ok := lsu.PeekLoadCompletion()
			Expect(ok).To(BeFalse())

			// The channel is free for a fresh load.
			backing.Write32(0x2000, 42)
			ld2 := loadUop(1, 4, lw(6, 1, 0), 41)
			Expect(lsu.CanStartLoad(1)).To(BeTrue())
			lsu.ExecLoad(ld2, 0x2000)
			for i := 0; i < 4; i++ {
				step()
			}
			pkt, ok := lsu.PeekLoadCompletion()
			Expect(ok).To(BeTrue())
			Expect(pkt.Value).To(Equal(uint32(42)))
		})

		It("should remove a squashed store-queue tail entry", func() {
			s1 := storeUop(0, 0, sw(5, 1, 0))
			s2 := storeUop(1, 1, sw(5, 1, 0))
			lsu.DispatchStore(s1)
			lsu.DispatchStore(s2)

			lsu.Squash(1, 0)

			Expect(lsu.StoreQueueLen()).To(Equal(1))
			// The older store no longer blocks on the squashed one.
			execStore(s1, 0x2000, 1)
			Expect(lsu.CanStartLoad(2)).To(BeTrue())
		})
	})
})
