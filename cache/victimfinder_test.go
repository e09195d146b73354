package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LRUVictimFinder", func() {
	var (
		tags         *TagArray
		victimFinder *LRUVictimFinder
	)

	BeforeEach(func() {
		victimFinder = NewLRUVictimFinder()
		tags = NewTagArray(mustGeometry(4, 1, 64), victimFinder)
	})

	It("should pick way 0 in a fresh set", func() {
		Expect(victimFinder.FindVictim(tags, 0)).To(Equal(0))
	})

	It("should pick the line with the largest recency", func() {
		tags.lines[tags.pos(0, 1)].Recency = 2
		tags.lines[tags.pos(1, 1)].Recency = 7
		tags.lines[tags.pos(2, 1)].Recency = 3
		tags.lines[tags.pos(3, 1)].Recency = 0

		Expect(victimFinder.FindVictim(tags, 1)).To(Equal(1))
	})

	It("should break ties toward the lowest way", func() {
		tags.lines[tags.pos(0, 2)].Recency = 1
		tags.lines[tags.pos(1, 2)].Recency = 5
		tags.lines[tags.pos(2, 2)].Recency = 5
		tags.lines[tags.pos(3, 2)].Recency = 5

		Expect(victimFinder.FindVictim(tags, 2)).To(Equal(1))
	})
})
