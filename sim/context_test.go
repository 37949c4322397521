package sim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/sim"
)

var _ = Describe("Context", func() {
	It("should advance the clock only on Tick", func() {
		ctx := sim.NewContext(1)

		Expect(ctx.Now()).To(Equal(uint64(0)))
		Expect(ctx.Tick()).To(Equal(uint64(1)))
		Expect(ctx.Tick()).To(Equal(uint64(2)))
		Expect(ctx.Now()).To(Equal(uint64(2)))
	})

	It("should draw the same random numbers for the same seed", func() {
		a := sim.NewContext(42)
		b := sim.NewContext(42)

		for i := 0; i < 100; i++ {
			Expect(a.Intn(8)).To(Equal(b.Intn(8)))
		}
	})

	It("should replay the random stream after a reset", func() {
		ctx := sim.NewContext(7)
		first := []int{ctx.Intn(1000), ctx.Intn(1000), ctx.Intn(1000)}

		ctx.Tick()
		ctx.AdvanceFuture()
		ctx.Reset(7)

		Expect(ctx.Seed()).To(Equal(int64(7)))
		Expect(ctx.Now()).To(BeZero())
		Expect(ctx.FutureCursor()).To(BeZero())
		Expect([]int{ctx.Intn(1000), ctx.Intn(1000), ctx.Intn(1000)}).
			To(Equal(first))
	})

	It("should move the future cursor", func() {
		ctx := sim.NewContext(0)
		ctx.AdvanceFuture()
		ctx.AdvanceFuture()

		Expect(ctx.FutureCursor()).To(Equal(2))
	})
})
