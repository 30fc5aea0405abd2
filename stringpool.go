package apkparser

import (
	"fmt"
)

// StringPool is an interned, indexed block of UTF-8 or UTF-16LE strings, the
// backbone of both resources.arsc and binary XML: every name, key, and
// string-typed value is an index into one of these. Adapted from the
// teacher's stringTable, but reading from a BinReader-backed buffer instead
// of an io.Reader so ResourceTable can keep several pools (global,
// type-strings, key-strings) alive and randomly addressable at once.
type StringPool struct {
	isUTF8  bool
	offsets []uint32
	data    []byte
	base    *BinReader
	cache   map[uint32]string
}

// parseStringPool reads a StringPool chunk whose header starts at off within
// r. headerSize/chunkSize come from the chunk's own ChunkHeader.
func parseStringPool(r *BinReader, off uint32) (StringPool, error) {
	hdr := readChunkHeader(r, off)
	if hdr.typ != chunkStringPool {
		return StringPool{}, fmt.Errorf("string pool: unexpected chunk type 0x%04x", hdr.typ)
	}

	stringCount := r.U32LE(off + 8)
	flags := r.U32LE(off + 16)
	stringsStart := r.U32LE(off + 20)

	if stringCount >= 2*1024*1024 {
		return StringPool{}, fmt.Errorf("string pool: implausible string count %d", stringCount)
	}

	pool := StringPool{
		isUTF8: flags&0x100 != 0,
		base:   r,
		cache:  make(map[uint32]string, stringCount),
	}

	offsetsBase := off + uint32(hdr.headerSize)
	pool.offsets = make([]uint32, stringCount)
	for i := uint32(0); i < stringCount; i++ {
		pool.offsets[i] = r.U32LE(offsetsBase + 4*i)
	}

	dataOff := off + stringsStart
	if hdr.size < stringsStart {
		return StringPool{}, fmt.Errorf("string pool: strings_start %d beyond chunk_size %d", stringsStart, hdr.size)
	}
	pool.data = r.Bytes(dataOff, hdr.size-stringsStart)
	return pool, nil
}

// Get returns the string at idx, or "" for the sentinel index or an
// out-of-range one.
func (p *StringPool) Get(idx uint32) string {
	if idx == noString || idx >= uint32(len(p.offsets)) {
		return ""
	}
	if s, ok := p.cache[idx]; ok {
		return s
	}

	off := p.offsets[idx]
	if uint64(off) >= uint64(len(p.data)) {
		return ""
	}

	var s string
	if p.isUTF8 {
		s = p.decodeUTF8(off)
	} else {
		s = p.decodeUTF16(off)
	}
	p.cache[idx] = s
	return s
}

// decodeUTF8 implements the two-length-prefix UTF-8 entry form (spec.md
// §4.2): a character-count prefix, then a byte-count prefix, then that many
// bytes. Per §9's documented fidelity decision, the byte-count prefix (the
// second one) governs how many payload bytes are read, not the character
// count.
func (p *StringPool) decodeUTF8(off uint32) string {
	_, next := p.readLen7(off)
	byteLen, dataOff := p.readLen7(next)
	return sub(NewBinReader(p.data), dataOff, byteLen, false)
}

// decodeUTF16 implements the single-length-prefix UTF-16LE entry form: a
// code-unit count, then that many little-endian code units.
func (p *StringPool) decodeUTF16(off uint32) string {
	unitCount, dataOff := p.readLen15(off)
	return sub(NewBinReader(p.data), dataOff, unitCount*2, true)
}

func sub(r *BinReader, off, n uint32, utf16 bool) string {
	if utf16 {
		return r.StrUTF16LE(off, n)
	}
	return r.StrUTF8(off, n)
}

// readLen7 reads one of the two chained 7-bit-per-byte length prefixes used
// by the UTF-8 string form, returning the decoded length and the offset of
// whatever follows it.
func (p *StringPool) readLen7(off uint32) (uint32, uint32) {
	r := NewBinReader(p.data)
	hi := r.U8(off)
	if hi&0x80 == 0 {
		return uint32(hi), off + 1
	}
	lo := r.U8(off + 1)
	return (uint32(hi&0x7F) << 8) | uint32(lo), off + 2
}

// readLen15 reads the 15-bit-per-unit length prefix used by the UTF-16 form.
func (p *StringPool) readLen15(off uint32) (uint32, uint32) {
	r := NewBinReader(p.data)
	hi := r.U16LE(off)
	if hi&0x8000 == 0 {
		return uint32(hi), off + 2
	}
	lo := r.U16LE(off + 2)
	return (uint32(hi&0x7FFF) << 16) | uint32(lo), off + 4
}

// Len returns the number of interned strings.
func (p *StringPool) Len() int { return len(p.offsets) }

// All returns every string in the pool, in index order.
func (p *StringPool) All() []string {
	out := make([]string, len(p.offsets))
	for i := range out {
		out[i] = p.Get(uint32(i))
	}
	return out
}
