package mem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AddressMapping", func() {
	var m AddressMapping

	BeforeEach(func() {
		m = NewAddressMapping(64, 16)
	})

	It("should derive the field widths", func() {
		Expect(m.OffsetBits).To(Equal(uint(6)))
		Expect(m.SetBits).To(Equal(uint(4)))
		Expect(m.LineWidth()).To(Equal(uint64(64)))
		Expect(m.NumSets()).To(Equal(16))
	})

	It("should split an address", func() {
		address := uint64(0x12345)

		Expect(m.Offset(address)).To(Equal(uint64(0x05)))
		Expect(m.Set(address)).To(Equal(0xd))
		Expect(m.Tag(address)).To(Equal(uint64(0x48)))
		Expect(m.LineBase(address)).To(Equal(uint64(0x12340)))
	})

	It("should rebuild the line address from tag and set", func() {
		for _, address := range []uint64{0, 64, 0x12340, 0xfffc0, 1 << 40} {
			rebuilt := m.LineAddress(m.Tag(address), m.Set(address))
			Expect(rebuilt).To(Equal(m.LineBase(address)))
		}
	})

	It("should support a single set", func() {
		m = NewAddressMapping(64, 1)

		Expect(m.Set(0xfffc0)).To(Equal(0))
		Expect(m.Tag(0x80)).To(Equal(uint64(2)))
	})

	It("should check line alignment", func() {
		Expect(m.IsLineAligned(128)).To(BeTrue())
		Expect(m.IsLineAligned(130)).To(BeFalse())
		Expect(func() { m.MustBeLineAligned(130) }).To(Panic())
		Expect(func() { m.MustBeLineAligned(192) }).NotTo(Panic())
	})

	It("should panic if the geometry is not a power of two", func() {
		Expect(func() { NewAddressMapping(48, 16) }).To(Panic())
		Expect(func() { NewAddressMapping(64, 12) }).To(Panic())
		Expect(func() { NewAddressMapping(64, 0) }).To(Panic())
	})
})

var _ = Describe("Power of two helpers", func() {
	It("should detect powers of two", func() {
		Expect(IsPowerOfTwo(1)).To(BeTrue())
		Expect(IsPowerOfTwo(1024)).To(BeTrue())
		Expect(IsPowerOfTwo(0)).To(BeFalse())
		Expect(IsPowerOfTwo(-4)).To(BeFalse())
		Expect(IsPowerOfTwo(96)).To(BeFalse())
	})

	It("should take the logarithm", func() {
		Expect(Log2(1)).To(Equal(uint(0)))
		Expect(Log2(64)).To(Equal(uint(6)))
		Expect(Log2(1 << 20)).To(Equal(uint(20)))
	})
})
