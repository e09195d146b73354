package geometry

// Fields are the three parts of an address.
type Fields struct {
	Tag    uint32
	Index  uint32
	Offset uint32
}

// Decode splits an address into its tag, index and offset.
func (g Geometry) Decode(addr uint32) Fields {
	return Fields{
		Tag:    uint32(uint64(addr) >> uint(g.indexBits+g.offsetBits)),
		Index:  (addr >> uint(g.offsetBits)) & mask(g.indexBits),
		Offset: addr & mask(g.offsetBits),
	}
}

// Compose reassembles an address from its fields. It is the inverse of Decode.
func (g Geometry) Compose(f Fields) uint32 {
	tag := uint64(f.Tag&mask(g.tagBits)) << uint(g.indexBits+g.offsetBits)
	index := (f.Index & mask(g.indexBits)) << uint(g.offsetBits)

	return uint32(tag) | index | f.Offset&mask(g.offsetBits)
}

func mask(width int) uint32 {
	return uint32(uint64(1)<<uint(width) - 1)
}
