package simulation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/geometry"
	"github.com/sarchlab/cachesim/trace"
)

type mapOpener map[string]string

func (o mapOpener) Open(name string) (io.ReadCloser, error) {
	content, ok := o[name]
	if !ok {
		return nil, os.ErrNotExist
	}

	return io.NopCloser(strings.NewReader(content)), nil
}

type countingHook struct {
	sync.Mutex
	accesses int
}

func (h *countingHook) Func(ctx HookCtx) {
	if ctx.Pos != HookPosAccess {
		return
	}

	h.Lock()
	h.accesses++
	h.Unlock()
}

func records(addrs ...uint32) string {
	sb := strings.Builder{}
	for _, addr := range addrs {
		fmt.Fprintf(&sb, "l 0x%08x 1\n", addr)
	}

	return sb.String()
}

var _ = Describe("Builder", func() {
	It("should surface an invalid geometry before anything runs", func() {
		_, err := MakeBuilder().WithWays(3).Build()

		var configErr *geometry.ConfigurationError
		Expect(errors.As(err, &configErr)).To(BeTrue())
	})

	It("should build a simulation with a unique ID", func() {
		a, err := MakeBuilder().Build()
		Expect(err).NotTo(HaveOccurred())
		b, err := MakeBuilder().Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(a.ID()).NotTo(BeEmpty())
		Expect(a.ID()).NotTo(Equal(b.ID()))
		Expect(a.Geometry().NumSets()).To(Equal(16))
	})

	It("should not share hooks between builders derived from one base", func() {
		base := MakeBuilder().WithHook(&countingHook{})
		first := base.WithHook(&countingHook{})
		second := base.WithHook(&countingHook{})

		Expect(first.hooks).To(HaveLen(2))
		Expect(second.hooks).To(HaveLen(2))
		Expect(first.hooks[1]).NotTo(BeIdenticalTo(second.hooks[1]))
	})

	It("should give every engine its own victim finder", func() {
		created := 0
		s, err := MakeBuilder().
			WithVictimFinder(func() cache.VictimFinder {
				created++
				return cache.NewLRUVictimFinder()
			}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		s.NewEngine("a")
		s.NewEngine("b")

		Expect(created).To(Equal(2))
	})
})

var _ = Describe("Simulation", func() {
	var (
		opener mapOpener
	)

	BeforeEach(func() {
		opener = mapOpener{
			"repeat.trace": records(0x40, 0x40, 0x40),
			"stream.trace": records(0x0, 0x400, 0x800, 0xc00),
			"mixed.trace":  "bad\n" + records(0x1000),
		}
	})

	It("should replay traces in order with fresh state", func() {
		s, err := MakeBuilder().WithOpener(opener).Build()
		Expect(err).NotTo(HaveOccurred())

		results := s.Run([]string{"repeat.trace", "repeat.trace", "mixed.trace"})

		Expect(results).To(HaveLen(3))
		Expect(results[0].Trace).To(Equal("repeat.trace"))
		Expect(results[0].Stats.Hits).To(Equal(uint64(2)))
		Expect(results[0].Stats.Misses).To(Equal(uint64(1)))
		Expect(results[1].Stats).To(Equal(results[0].Stats))
		Expect(results[2].Stats.Misses).To(Equal(uint64(1)))
		Expect(results[2].Stats.Malformed).To(Equal(uint64(1)))
	})

	It("should skip a trace that cannot be opened and go on", func() {
		var seen []Result
		s, err := MakeBuilder().
			WithOpener(opener).
			WithResultHandler(func(r Result) { seen = append(seen, r) }).
			Build()
		Expect(err).NotTo(HaveOccurred())

		results := s.Run([]string{"missing.trace", "repeat.trace"})

		Expect(results[0].Skipped()).To(BeTrue())
		Expect(results[0].Unavailable()).To(BeTrue())
		Expect(errors.Is(results[0].Err, os.ErrNotExist)).To(BeTrue())
		Expect(results[1].Skipped()).To(BeFalse())
		Expect(results[1].Stats.Hits).To(Equal(uint64(2)))
		Expect(seen).To(HaveLen(2))
	})

	It("should produce the same results in parallel", func() {
		names := []string{}
		for i := 0; i < 20; i++ {
			names = append(names, "repeat.trace", "stream.trace", "mixed.trace")
		}

		serial, err := MakeBuilder().WithOpener(opener).Build()
		Expect(err).NotTo(HaveOccurred())
		hook := &countingHook{}
		parallel, err := MakeBuilder().
			WithOpener(opener).
			WithHook(hook).
			WithParallelism(4).
			Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(parallel.Run(names)).To(Equal(serial.Run(names)))
		Expect(hook.accesses).To(Equal(20 * (3 + 4 + 1)))
	})

	It("should use the configured record format", func() {
		s, err := MakeBuilder().
			WithOpener(mapOpener{"raw.trace": "00000040\n00000040\n"}).
			WithFormat(trace.Format{AddressOffset: 0, AddressWidth: 8}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		results := s.Run([]string{"raw.trace"})

		Expect(results[0].Stats.Hits).To(Equal(uint64(1)))
	})
})

var _ = Describe("Simulation wiring after build", func() {
	It("should use hooks and handlers attached after Build", func() {
		s, err := MakeBuilder().
			WithOpener(mapOpener{"a.trace": records(0x40, 0x80)}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		hook := &countingHook{}
		handled := 0
		s.AcceptHook(hook)
		s.AcceptResultHandler(func(Result) { handled++ })

		s.Run([]string{"a.trace"})

		Expect(hook.accesses).To(Equal(2))
		Expect(handled).To(Equal(1))
	})
})
