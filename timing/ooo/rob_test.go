package ooo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/o3sim/timing/ooo"
)

var _ = Describe("ROB", func() {
	var rob *ooo.ROB

	BeforeEach(func() {
		rob = ooo.NewROB(4)
	})

	alloc := func(entries ...ooo.ROBEntry) []int {
		indices := make([]int, 0, len(entries))
		for _, e := range entries {
			Expect(rob.CanAllocate()).To(BeTrue())
			indices = append(indices, rob.Allocate(e))
		}
		return indices
	}

	done := func(idx int) ooo.WritebackPacket {
		return ooo.WritebackPacket{ROBIndex: idx, Gen: rob.Entry(idx).Gen}
	}

	Describe("commit order", func() {
		It("should commit in allocation order regardless of writeback order", func() {
			indices := alloc(ooo.ROBEntry{Seq: 0}, ooo.ROBEntry{Seq: 1}, ooo.ROBEntry{Seq: 2})

			// Complete out of order: youngest first.
			Expect(rob.Writeback(done(indices[2]))).To(BeTrue())
			Expect(rob.Writeback(done(indices[0]))).To(BeTrue())
			Expect(rob.Writeback(done(indices[1]))).To(BeTrue())

			var committed []int
			for {
				_, idx, ok := rob.Commit()
				if !ok {
					break
				}
				committed = append(committed, idx)
			}
			Expect(committed).To(Equal(indices))
		})

		It("should not commit an incomplete head even when younger entries are done", func() {
			indices := alloc(ooo.ROBEntry{}, ooo.ROBEntry{})
			rob.Writeback(done(indices[1]))

			_, _, ok := rob.Commit()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("capacity", func() {
		It("should refuse allocation when full and accept after one commit", func() {
			indices := alloc(ooo.ROBEntry{}, ooo.ROBEntry{}, ooo.ROBEntry{}, ooo.ROBEntry{})
			Expect(rob.CanAllocate()).To(BeFalse())

			rob.Writeback(done(indices[0]))
			_, _, ok := rob.Commit()
			Expect(ok).To(BeTrue())
			Expect(rob.CanAllocate()).To(BeTrue())
		})
	})

	Describe("generation checking", func() {
		It("should drop a writeback with a stale generation", func() {
			indices := alloc(
				ooo.ROBEntry{IsBranch: true},
				ooo.ROBEntry{HasDest: true, ArchDest: 1, NewPhys: 40, OldPhys: 1},
			)

			// Mispredict the branch; the younger entry gets squashed and
			// its slot reallocated at the new generation.
			Expect(rob.Writeback(ooo.WritebackPacket{
				ROBIndex:   indices[0],
				Gen:        0,
				IsBranch:   true,
				Mispredict: true,
			})).To(BeTrue())

			_, ok := rob.RecoveryStep()
			Expect(ok).To(BeTrue())
			Expect(rob.InRecovery()).To(BeFalse())

			reused := rob.Allocate(ooo.ROBEntry{})
			Expect(reused).To(Equal(indices[1]))
			Expect(rob.Entry(reused).Gen).To(Equal(uint32(1)))

			// A late completion from the squashed instruction carries the
			// old generation and must have no effect.
			Expect(rob.Writeback(ooo.WritebackPacket{ROBIndex: reused, Gen: 0})).To(BeFalse())
			Expect(rob.Entry(reused).Done).To(BeFalse())
		})
	})

	Describe("recovery", func() {
		It("should walk back youngest-first and leave the branch untouched", func() {
			indices := alloc(
				ooo.ROBEntry{Seq: 0, IsBranch: true},
				ooo.ROBEntry{Seq: 1, HasDest: true, NewPhys: 32, OldPhys: 1},
				ooo.ROBEntry{Seq: 2, HasDest: true, NewPhys: 33, OldPhys: 2},
			)

			rob.Writeback(ooo.WritebackPacket{
				ROBIndex:   indices[0],
				Gen:        0,
				IsBranch:   true,
				Mispredict: true,
			})
			Expect(rob.InRecovery()).To(BeTrue())
			Expect(rob.CanAllocate()).To(BeFalse())

			first, ok := rob.RecoveryStep()
			Expect(ok).To(BeTrue())
			Expect(first.Seq).To(Equal(uint64(2)))
			Expect(first.NewPhys).To(Equal(ooo.PhysReg(33)))
			Expect(rob.InRecovery()).To(BeTrue())

			second, ok := rob.RecoveryStep()
			Expect(ok).To(BeTrue())
			Expect(second.Seq).To(Equal(uint64(1)))
			Expect(rob.InRecovery()).To(BeFalse())

			// The branch itself survives and commits normally.
			entry, idx, ok := rob.Commit()
			Expect(ok).To(BeTrue())
			Expect(idx).To(Equal(indices[0]))
			Expect(entry.IsBranch).To(BeTrue())
			Expect(rob.Count()).To(Equal(0))
		})

		It("should increment the generation once per recovery event", func() {
			indices := alloc(ooo.ROBEntry{IsBranch: true}, ooo.ROBEntry{})

			Expect(rob.Gen()).To(Equal(uint32(0)))
			rob.Writeback(ooo.WritebackPacket{
				ROBIndex:   indices[0],
				Gen:        0,
				IsBranch:   true,
				Mispredict: true,
			})
			Expect(rob.Gen()).To(Equal(uint32(1)))

			rob.RecoveryStep()
			Expect(rob.Gen()).To(Equal(uint32(1)))
		})

		It("should drop completions from entries doomed by an active walk", func() {
			indices := alloc(
				ooo.ROBEntry{Seq: 0, IsBranch: true},
				ooo.ROBEntry{Seq: 1, IsBranch: true},
				ooo.ROBEntry{Seq: 2, HasDest: true, NewPhys: 32, OldPhys: 1},
			)

			rob.Writeback(ooo.WritebackPacket{
				ROBIndex:   indices[0],
				Gen:        0,
				IsBranch:   true,
				Mispredict: true,
			})
			Expect(rob.InRecovery()).To(BeTrue())
			Expect(rob.Gen()).To(Equal(uint32(1)))

			// The younger branch is on the wrong path. Its resolution,
			// mispredicted or not, must not restart recovery at a younger
			// boundary.
			Expect(rob.Writeback(ooo.WritebackPacket{
				ROBIndex:   indices[1],
				Gen:        0,
				IsBranch:   true,
				Mispredict: true,
			})).To(BeFalse())
			Expect(rob.Entry(indices[1]).Done).To(BeFalse())
			Expect(rob.Gen()).To(Equal(uint32(1)))

			// The walk still unwinds everything younger than the older
			// branch, the younger branch included.
			first, ok := rob.RecoveryStep()
			Expect(ok).To(BeTrue())
			Expect(first.Seq).To(Equal(uint64(2)))

			second, ok := rob.RecoveryStep()
			Expect(ok).To(BeTrue())
			Expect(second.Seq).To(Equal(uint64(1)))
			Expect(rob.InRecovery()).To(BeFalse())

			entry, idx, ok := rob.Commit()
			Expect(ok).To(BeTrue())
			Expect(idx).To(Equal(indices[0]))
			Expect(entry.IsBranch).To(BeTrue())
		})

		It("should extend the walk when an older branch mispredicts mid-recovery", func() {
			indices := alloc(
				ooo.ROBEntry{Seq: 0, IsBranch: true},
				ooo.ROBEntry{Seq: 1, IsBranch: true},
				ooo.ROBEntry{Seq: 2, HasDest: true, NewPhys: 32, OldPhys: 1},
				ooo.ROBEntry{Seq: 3, HasDest: true, NewPhys: 33, OldPhys: 2},
			)

			rob.Writeback(ooo.WritebackPacket{
				ROBIndex:   indices[1],
				Gen:        0,
				IsBranch:   true,
				Mispredict: true,
			})
			first, _ := rob.RecoveryStep()
			Expect(first.Seq).To(Equal(uint64(3)))
			Expect(rob.InRecovery()).To(BeTrue())

			// An older branch resolving mispredicted widens the unwind to
			// its own boundary. This is a second recovery event.
			Expect(rob.Writeback(ooo.WritebackPacket{
				ROBIndex:   indices[0],
				Gen:        0,
				IsBranch:   true,
				Mispredict: true,
			})).To(BeTrue())
			Expect(rob.Gen()).To(Equal(uint32(2)))

			second, _ := rob.RecoveryStep()
			Expect(second.Seq).To(Equal(uint64(2)))
			third, _ := rob.RecoveryStep()
			Expect(third.Seq).To(Equal(uint64(1)))
			Expect(rob.InRecovery()).To(BeFalse())

			entry, idx, ok := rob.Commit()
			Expect(ok).To(BeTrue())
			Expect(idx).To(Equal(indices[0]))
			Expect(entry.IsBranch).To(BeTrue())
			Expect(rob.Count()).To(Equal(0))
		})

		It("should skip the walk when nothing is younger than the branch", func() {
			indices := alloc(ooo.ROBEntry{IsBranch: true})

			rob.Writeback(ooo.WritebackPacket{
				ROBIndex:   indices[0],
				Gen:        0,
				IsBranch:   true,
				Mispredict: true,
			})

			Expect(rob.InRecovery()).To(BeFalse())
			Expect(rob.Gen()).To(Equal(uint32(1)))
			Expect(rob.Count()).To(Equal(1))
		})
	})

	Describe("store barrier", func() {
		It("should hold a store at the head while any branch is unresolved", func() {
			indices := alloc(
				ooo.ROBEntry{IsStore: true},
				ooo.ROBEntry{IsBranch: true},
			)

			rob.Writeback(done(indices[0]))
			_, _, ok := rob.Commit()
			Expect(ok).To(BeFalse())

			rob.Writeback(ooo.WritebackPacket{
				ROBIndex: indices[1],
				Gen:      0,
				IsBranch: true,
				Taken:    false,
			})
			entry, _, ok := rob.Commit()
			Expect(ok).To(BeTrue())
			Expect(entry.IsStore).To(BeTrue())
		})

		It("should not block non-store commits on unresolved branches", func() {
			indices := alloc(
				ooo.ROBEntry{HasDest: true},
				ooo.ROBEntry{IsBranch: true},
			)

			rob.Writeback(done(indices[0]))
			_, _, ok := rob.Commit()
			Expect(ok).To(BeTrue())
		})
	})

	Describe("wraparound", func() {
		It("should keep FIFO order across index wraparound", func() {
			// Fill, drain two, refill: head/tail both wrap.
			indices := alloc(ooo.ROBEntry{}, ooo.ROBEntry{}, ooo.ROBEntry{}, ooo.ROBEntry{})
			rob.Writeback(done(indices[0]))
			rob.Writeback(done(indices[1]))
			_, first, _ := rob.Commit()
			_, second, _ := rob.Commit()
			Expect([]int{first, second}).To(Equal(indices[:2]))

			wrapped := alloc(ooo.ROBEntry{}, ooo.ROBEntry{})
			Expect(wrapped).To(Equal(indices[:2]))

			for _, idx := range append(indices[2:], wrapped...) {
				rob.Writeback(done(idx))
			}
			var order []int
			for {
				_, idx, ok := rob.Commit()
				if !ok {
					break
				}
				order = append(order, idx)
			}
			Expect(order).To(Equal([]int{indices[2], indices[3], wrapped[0], wrapped[1]}))
		})
	})
})
