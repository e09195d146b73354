package geometry

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Geometry", func() {
	It("should derive the bit widths of a direct-mapped 1KB cache", func() {
		g, err := NewFromKB(1, 1, 64)

		Expect(err).NotTo(HaveOccurred())
		Expect(g.NumSets()).To(Equal(16))
		Expect(g.IndexBits()).To(Equal(4))
		Expect(g.OffsetBits()).To(Equal(6))
		Expect(g.TagBits()).To(Equal(22))
		Expect(g.CapacityBytes()).To(Equal(uint64(1024)))
	})

	DescribeTable("field widths always add up to the address width",
		func(ways, sizeKB, blockSize int) {
			g, err := NewFromKB(ways, sizeKB, blockSize)

			Expect(err).NotTo(HaveOccurred())
			Expect(g.TagBits() + g.IndexBits() + g.OffsetBits()).
				To(Equal(AddressWidth))
		},
		Entry("direct mapped", 1, 16, 32),
		Entry("4-way", 4, 32, 64),
		Entry("16-way", 16, 512, 128),
		Entry("fully associative", 16, 1, 64),
		Entry("single byte blocks", 2, 1, 1),
	)

	DescribeTable("should reject invalid inputs",
		func(ways int, capacity uint64, blockSize int, field string) {
			_, err := New(ways, capacity, blockSize)

			var configErr *ConfigurationError
			Expect(errors.As(err, &configErr)).To(BeTrue())
			Expect(configErr.Field).To(Equal(field))
		},
		Entry("zero ways", 0, uint64(1024), 64, "ways"),
		Entry("negative ways", -2, uint64(1024), 64, "ways"),
		Entry("zero capacity", 1, uint64(0), 64, "capacity"),
		Entry("zero block size", 1, uint64(1024), 0, "blockSize"),
		Entry("block size not a power of two", 1, uint64(1024), 48,
			"blockSize"),
		Entry("capacity not whole sets", 3, uint64(1024), 64, "capacity"),
		Entry("set count not a power of two", 1, uint64(3*1024), 64,
			"numSets"),
		Entry("index and offset wider than an address", 1, uint64(1)<<33, 1,
			"indexBits+offsetBits"),
		Entry("wide sets of wide blocks", 4, uint64(1)<<40, 64,
			"indexBits+offsetBits"),
	)

	It("should reject a non-positive size in KB", func() {
		_, err := NewFromKB(1, 0, 64)

		var configErr *ConfigurationError
		Expect(errors.As(err, &configErr)).To(BeTrue())
		Expect(configErr.Field).To(Equal("cacheSizeKB"))
		Expect(err.Error()).To(ContainSubstring("must be positive"))
	})
})

var _ = Describe("Address decoding", func() {
	var g Geometry

	BeforeEach(func() {
		var err error
		g, err = NewFromKB(1, 1, 64)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should split an address into tag, index and offset", func() {
		f := g.Decode(0x1fffff50)

		Expect(f.Offset).To(Equal(uint32(0x10)))
		Expect(f.Index).To(Equal(uint32(0xd)))
		Expect(f.Tag).To(Equal(uint32(0x1fffff50 >> 10)))
	})

	It("should map addresses in the same block to the same fields", func() {
		a := g.Decode(0x00001000)
		b := g.Decode(0x0000103f)

		Expect(a.Tag).To(Equal(b.Tag))
		Expect(a.Index).To(Equal(b.Index))
		Expect(a.Offset).NotTo(Equal(b.Offset))
	})

	It("should round-trip random addresses across geometries", func() {
		r := rand.New(rand.NewSource(1))
		geometries := []Geometry{g}
		for _, in := range [][3]int{{2, 8, 32}, {8, 64, 128}, {16, 1, 64}} {
			other, err := NewFromKB(in[0], in[1], in[2])
			Expect(err).NotTo(HaveOccurred())
			geometries = append(geometries, other)
		}

		for _, geo := range geometries {
			for i := 0; i < 1000; i++ {
				addr := r.Uint32()
				Expect(geo.Compose(geo.Decode(addr))).To(Equal(addr))
			}
		}
	})

	It("should handle a geometry without tag bits", func() {
		full, err := New(1, 1<<32, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(full.TagBits()).To(Equal(0))

		f := full.Decode(0xffffffff)
		Expect(f.Tag).To(BeZero())
		Expect(full.Compose(f)).To(Equal(uint32(0xffffffff)))
	})

	It("should put the whole address in the index at exactly 32 bits", func() {
		full, err := New(1, 1<<32, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(full.IndexBits()).To(Equal(AddressWidth))
		Expect(full.OffsetBits()).To(BeZero())
		Expect(full.TagBits()).To(BeZero())

		f := full.Decode(0x12345678)
		Expect(f.Tag).To(BeZero())
		Expect(f.Index).To(Equal(uint32(0x12345678)))
		Expect(f.Offset).To(BeZero())
		Expect(full.Compose(f)).To(Equal(uint32(0x12345678)))
	})
})
