package hierarchy

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Op", func() {
	DescribeTable("should parse trace names",
		func(name string, op Op) {
			parsed, err := ParseOp(name)

			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(op))
		},
		Entry("r", "r", OpReadUint),
		Entry("w", "W", OpWriteUint),
		Entry("rb", "rb", OpReadByte),
		Entry("wb", "wb", OpWriteByte),
		Entry("long name", "read_byte", OpReadByte),
	)

	It("should reject unknown operations", func() {
		_, err := ParseOp("x")
		Expect(err).To(HaveOccurred())
	})

	It("should classify operations", func() {
		Expect(OpWriteByte.IsWrite()).To(BeTrue())
		Expect(OpReadUint.IsWrite()).To(BeFalse())
		Expect(OpReadUint.IsWord()).To(BeTrue())
		Expect(OpWriteByte.IsWord()).To(BeFalse())
		Expect(Op(7).String()).To(Equal("Op(7)"))
	})

	It("should print accesses", func() {
		Expect(Access{Op: OpReadUint, Address: 0x40}.String()).
			To(Equal("read_uint 0x40"))
		Expect(Access{Op: OpWriteByte, Address: 0x41, Value: 3}.String()).
			To(Equal("write_byte 0x41 0x3"))
	})
})
