package ooo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/o3sim/timing/ooo"
)

// waitingOp builds a renamed ALU op waiting on the given sources.
func waitingOp(seq uint64, robIndex int, src1 ooo.PhysReg, src1Ready bool,
	src2 ooo.PhysReg, src2Ready bool) ooo.RenamedOp {
	op := ooo.RenamedOp{
		DecodedOp: uop(0x1000+uint32(seq)*4, add(3, 1, 2)),
		Seq:       seq,
		ROBIndex:  robIndex,
		Src1:      src1,
		Src1Ready: src1Ready,
		Src2:      src2,
		Src2Ready: src2Ready,
	}
	return op
}

var _ = Describe("Station", func() {
	var station *ooo.Station

	BeforeEach(func() {
		station = ooo.NewStation("alu", 2)
	})

	Describe("dispatch", func() {
		It("should accept until both slots are occupied", func() {
			Expect(station.CanAccept()).To(BeTrue())
			Expect(station.Dispatch(waitingOp(0, 0, 32, true, 33, true))).To(BeTrue())
			Expect(station.CanAccept()).To(BeTrue())
			Expect(station.Dispatch(waitingOp(1, 1, 32, true, 33, true))).To(BeTrue())
			Expect(station.CanAccept()).To(BeFalse())
			Expect(station.Occupancy()).To(Equal(2))
		})
	})

	Describe("wakeup", func() {
		It("should set readiness on a matching source tag", func() {
			station.Dispatch(waitingOp(0, 0, 40, false, 41, false))

			station.Wakeup(40)
			_, _, ok := station.PickReady(nil)
			Expect(ok).To(BeFalse(), "one operand still missing")

			station.Wakeup(41)
			_, op, ok := station.PickReady(nil)
			Expect(ok).To(BeTrue())
			Expect(op.Src1Ready).To(BeTrue())
			Expect(op.Src2Ready).To(BeTrue())
		})

		It("should wake every waiting slot on a broadcast", func() {
			station.Dispatch(waitingOp(0, 0, 40, false, 33, true))
			station.Dispatch(waitingOp(1, 1, 40, false, 34, true))

			station.Wakeup(40)

			slot, _, ok := station.PickReady(nil)
			Expect(ok).To(BeTrue())
			Expect(station.Take(slot, 0, 0)).To(BeTrue())
			slot, _, ok = station.PickReady(nil)
			Expect(ok).To(BeTrue())
			Expect(station.Take(slot, 1, 0)).To(BeTrue())
		})

		It("should not wake a slot on an unrelated tag", func() {
			station.Dispatch(waitingOp(0, 0, 40, false, 33, true))

			station.Wakeup(41)

			_, _, ok := station.PickReady(nil)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("select", func() {
		It("should pick the oldest ready op first", func() {
			station.Dispatch(waitingOp(5, 0, 32, true, 33, true))
			station.Dispatch(waitingOp(2, 1, 32, true, 33, true))

			_, op, ok := station.PickReady(nil)
			Expect(ok).To(BeTrue())
			Expect(op.Seq).To(Equal(uint64(2)))
		})

		It("should pick a younger ready op over an older waiting one", func() {
			station.Dispatch(waitingOp(2, 0, 40, false, 33, true))
			station.Dispatch(waitingOp(5, 1, 32, true, 33, true))

			_, op, ok := station.PickReady(nil)
			Expect(ok).To(BeTrue())
			Expect(op.Seq).To(Equal(uint64(5)))
		})

		It("should honor the eligibility predicate", func() {
			station.Dispatch(waitingOp(2, 0, 32, true, 33, true))
			station.Dispatch(waitingOp(5, 1, 32, true, 33, true))

			_, op, ok := station.PickReady(func(op *ooo.RenamedOp) bool {
				return op.Seq != 2
			})
			Expect(ok).To(BeTrue())
			Expect(op.Seq).To(Equal(uint64(5)))
		})
	})

	Describe("take", func() {
		It("should refuse a slot whose instance no longer matches", func() {
			station.Dispatch(waitingOp(0, 3, 32, true, 33, true))
			slot, op, ok := station.PickReady(nil)
			Expect(ok).To(BeTrue())

			// The slot gets squashed between select and issue.
			station.Squash(op.ROBIndex, op.Gen)

			Expect(station.Take(slot, op.ROBIndex, op.Gen)).To(BeFalse())
		})
	})

	Describe("squash", func() {
		It("should invalidate only the matching instance", func() {
			older := waitingOp(0, 0, 32, true, 33, true)
			younger := waitingOp(1, 1, 32, true, 33, true)
			younger.Gen = 2
			station.Dispatch(older)
			station.Dispatch(younger)

			station.Squash(1, 2)

			Expect(station.Occupancy()).To(Equal(1))
			_, op, ok := station.PickReady(nil)
			Expect(ok).To(BeTrue())
			Expect(op.Seq).To(Equal(uint64(0)))
		})

		It("should not invalidate a reused index from another generation", func() {
			op := waitingOp(0, 1, 32, true, 33, true)
			op.Gen = 3
			station.Dispatch(op)

			station.Squash(1, 2)

			Expect(station.Occupancy()).To(Equal(1))
		})
	})
})
