package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/mem/dram"
	"github.com/sarchlab/memsim/sim"
)

func filledLine(mapping mem.AddressMapping, address uint64, b byte) mem.Line {
	line := mem.NewLine(int(mapping.LineWidth()))
	for i := range line.Bytes {
		line.Bytes[i] = b
	}

	line.Tag = mapping.Tag(address)
	line.Valid = true

	return line
}

var _ = Describe("Builder", func() {
	var store *dram.Store

	BeforeEach(func() {
		store = dram.NewStore("DRAM", 64*mem.KB, 64, 1)
	})

	It("should derive the geometry", func() {
		c := MakeBuilder().
			WithNextLevel(store).
			WithNumSets(16).
			WithTotalLines(256).
			Build("L2")

		Expect(c.Name()).To(Equal("L2"))
		Expect(c.NumSets()).To(Equal(16))
		Expect(c.NumWays()).To(Equal(16))
		Expect(c.NumSlots()).To(Equal(256))
		Expect(c.LineWidth()).To(Equal(64))
		Expect(c.TotalSize()).To(Equal(uint64(16 * mem.KB)))
		Expect(c.Policy()).To(Equal(LRU))
		Expect(c.NextLevel()).To(BeIdenticalTo(store))
	})

	It("should panic without a next level", func() {
		Expect(func() { MakeBuilder().Build("L1") }).To(Panic())
	})

	It("should panic if the set count is not a power of two", func() {
		Expect(func() {
			MakeBuilder().WithNextLevel(store).WithNumSets(12).Build("L1")
		}).To(Panic())
	})

	It("should panic if lines cannot be divided into sets", func() {
		Expect(func() {
			MakeBuilder().
				WithNextLevel(store).
				WithNumSets(16).
				WithTotalLines(40).
				Build("L1")
		}).To(Panic())
	})

	It("should panic if a set has no way", func() {
		Expect(func() {
			MakeBuilder().
				WithNextLevel(store).
				WithNumSets(16).
				WithTotalLines(0).
				Build("L1")
		}).To(Panic())
	})

	It("should panic if pseudo-LRU gets a non-power-of-two way count", func() {
		Expect(func() {
			MakeBuilder().
				WithNextLevel(store).
				WithNumSets(1).
				WithTotalLines(3).
				WithPolicy(PLRU).
				Build("L1")
		}).To(Panic())
	})
})

var _ = Describe("Cache", func() {
	var (
		ctx   *sim.Context
		store *dram.Store
		c     *Cache
	)

	build := func(numSets, totalLines int, policy Policy) *Cache {
		return MakeBuilder().
			WithContext(ctx).
			WithNextLevel(store).
			WithNumSets(numSets).
			WithTotalLines(totalLines).
			WithPolicy(policy).
			Build("L1")
	}

	BeforeEach(func() {
		ctx = sim.NewContext(1)
		store = dram.NewStore("DRAM", 64*mem.KB, 64, 1)
		c = build(2, 4, LRU)
	})

	It("should fetch a missing line from the next level", func() {
		store.Bytes()[130] = 9

		line := c.ReadLine(128)

		Expect(line.Bytes[2]).To(Equal(byte(9)))
		Expect(line.Tag).To(Equal(uint64(1)))
		Expect(line.Valid).To(BeTrue())
		Expect(c.Stats().Interval).To(Equal(mem.Counters{ReadMiss: 1, WriteMiss: 1}))
		Expect(store.Stats().Interval).To(Equal(mem.Counters{ReadHit: 1}))
	})

	It("should hit on the second read", func() {
		c.ReadLine(128)
		c.ReadLine(128)

		Expect(c.Stats().Interval).To(Equal(
			mem.Counters{ReadHit: 1, ReadMiss: 1, WriteMiss: 1}))
		Expect(store.Stats().Interval.Reads()).To(Equal(uint64(1)))
	})

	It("should return copies", func() {
		line := c.ReadLine(0)
		line.Bytes[0] = 1

		Expect(c.ReadLine(0).Bytes[0]).To(Equal(byte(0)))
	})

	It("should read back what was written", func() {
		for _, address := range []uint64{0, 64, 128, 192} {
			written := filledLine(c.Mapping(), address, byte(address/64+1))
			written.Dirty = true
			c.WriteLine(address, written)

			read := c.ReadLine(address)
			Expect(read.Bytes).To(Equal(written.Bytes))
		}
	})

	It("should count write hits and misses", func() {
		c.WriteLine(0, filledLine(c.Mapping(), 0, 1))
		c.WriteLine(0, filledLine(c.Mapping(), 0, 2))

		Expect(c.Stats().Interval).To(Equal(mem.Counters{WriteHit: 1, WriteMiss: 1}))
		Expect(store.Stats().Interval).To(Equal(mem.Counters{}))
	})

	It("should panic on an unaligned address", func() {
		Expect(func() { c.ReadLine(3) }).To(Panic())
		Expect(func() { c.WriteLine(65, filledLine(c.Mapping(), 64, 0)) }).
			To(Panic())
	})

	It("should panic on a tag mismatch", func() {
		Expect(func() { c.WriteLine(0, filledLine(c.Mapping(), 128, 0)) }).
			To(Panic())
	})

	It("should panic on a line of the wrong width", func() {
		line := mem.NewLine(32)
		Expect(func() { c.WriteLine(0, line) }).To(Panic())
	})

	It("should inspect slots without changing counters", func() {
		c.ReadLine(64)

		line := c.Inspect(2)

		Expect(line.Valid).To(BeTrue())
		Expect(line.Tag).To(Equal(uint64(0)))
		Expect(c.Inspect(0).Valid).To(BeFalse())
		Expect(c.Stats().Interval).To(Equal(mem.Counters{ReadMiss: 1, WriteMiss: 1}))
		Expect(func() { c.Inspect(-1) }).To(Panic())
		Expect(func() { c.Inspect(c.NumSlots()) }).To(Panic())
	})

	Context("with one way in each of two sets", func() {
		BeforeEach(func() {
			c = build(2, 2, LRU)
		})

		It("should only evict within a set", func() {
			for _, address := range []uint64{0, 64, 128} {
				c.WriteLine(address, filledLine(c.Mapping(), address, 1))
			}

			Expect(c.Inspect(0).Tag).To(Equal(uint64(1)))
			Expect(c.Inspect(1).Tag).To(Equal(uint64(0)))

			c.ReadLine(64)
			Expect(c.Stats().Interval.ReadHit).To(Equal(uint64(1)))

			c.ReadLine(0)
			Expect(c.Stats().Interval.ReadMiss).To(Equal(uint64(1)))
			Expect(store.Stats().Interval.ReadHit).To(Equal(uint64(1)))
		})
	})

	Context("with two ways in each of two sets", func() {
		It("should evict the least recently used line of the set", func() {
			for _, address := range []uint64{0, 64, 128, 256} {
				c.WriteLine(address, filledLine(c.Mapping(), address, 1))
			}

			c.ReadLine(64)
			c.ReadLine(128)
			c.ReadLine(0)

			Expect(c.Stats().Interval).To(Equal(mem.Counters{
				ReadHit:   2,
				ReadMiss:  1,
				WriteMiss: 5,
			}))
		})
	})

	Context("when evicting a dirty line", func() {
		var (
			mockCtrl  *gomock.Controller
			nextLevel *MockLevel
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			nextLevel = NewMockLevel(mockCtrl)
			nextLevel.EXPECT().
				Mapping().
				Return(mem.NewAddressMapping(64, 1)).
				AnyTimes()

			c = MakeBuilder().
				WithContext(ctx).
				WithNextLevel(nextLevel).
				WithNumSets(2).
				WithTotalLines(2).
				Build("L1")
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should write the line back exactly once", func() {
			dirty := filledLine(c.Mapping(), 192, 0xab)
			dirty.Dirty = true
			c.WriteLine(192, dirty)

			nextLevel.EXPECT().
				WriteLine(uint64(192), gomock.Any()).
				Do(func(address uint64, line mem.Line) {
					Expect(line.Bytes).To(Equal(dirty.Bytes))
					Expect(line.Tag).To(Equal(uint64(3)))
					Expect(line.Dirty).To(BeTrue())
				}).
				Times(1)

			c.WriteLine(64, filledLine(c.Mapping(), 64, 0x01))
		})

		It("should not write back a clean line", func() {
			c.WriteLine(192, filledLine(c.Mapping(), 192, 0xab))
			c.WriteLine(64, filledLine(c.Mapping(), 64, 0x01))

			Expect(c.Inspect(1).Tag).To(Equal(uint64(0)))
		})

		It("should fill a read miss from the next level", func() {
			fetched := filledLine(mem.NewAddressMapping(64, 1), 128, 7)
			nextLevel.EXPECT().ReadLine(uint64(128)).Return(fetched)

			line := c.ReadLine(128)

			Expect(line.Tag).To(Equal(uint64(1)))
			Expect(line.Bytes).To(Equal(fetched.Bytes))
		})
	})

	It("should write an evicted line back to its address in the store", func() {
		c = build(2, 2, LRU)

		dirty := filledLine(c.Mapping(), 64, 0x5a)
		dirty.Dirty = true
		c.WriteLine(64, dirty)
		c.WriteLine(192, filledLine(c.Mapping(), 192, 0))

		Expect(store.Bytes()[64:128]).To(Equal(dirty.Bytes))
		Expect(store.Stats().Interval).To(Equal(mem.Counters{WriteHit: 1}))
	})
})
