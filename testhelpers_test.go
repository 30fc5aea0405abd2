package apkparser

import (
	"encoding/binary"
	"unicode/utf16"
)

// byteBuf is a tiny little-endian byte builder used by the synthetic chunk
// fixtures below. No real .arsc/.bin samples shipped with the retrieved
// pack, so these tests hand-construct minimal chunks in the same layout
// crawshaw-apk's annotated binary_xml_test.go dumps document.
type byteBuf struct {
	b []byte
}

func (w *byteBuf) u8(v uint8)   { w.b = append(w.b, v) }
func (w *byteBuf) u16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *byteBuf) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }
func (w *byteBuf) raw(b []byte) { w.b = append(w.b, b...) }
func (w *byteBuf) pad(n int) {
	for i := 0; i < n; i++ {
		w.b = append(w.b, 0)
	}
}

// patchU32 overwrites a previously-written u32 placeholder at offset off.
func (w *byteBuf) patchU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(w.b[off:off+4], v)
}

func (w *byteBuf) len() int { return len(w.b) }

func (w *byteBuf) writeLen7(n int) {
	if n < 0x80 {
		w.u8(uint8(n))
		return
	}
	w.u8(uint8(0x80 | (n >> 8)))
	w.u8(uint8(n))
}

// utf8StringPool builds a string-pool chunk (spec.md §3/§4.2) over strs
// using the UTF-8 two-length-prefix form. Every test string here is short
// enough that only the single-byte length form is exercised.
func utf8StringPool(strs []string) []byte {
	var w byteBuf
	w.u16(chunkStringPool)
	headerSizePos := w.len()
	w.u16(0) // header_size placeholder
	chunkSizePos := w.len()
	w.u32(0) // chunk_size placeholder
	w.u32(uint32(len(strs)))
	w.u32(0) // style_count
	w.u32(0x100)
	stringsStartPos := w.len()
	w.u32(0) // strings_start placeholder
	w.u32(0) // styles_start

	headerSize := w.len()
	binary.LittleEndian.PutUint16(w.b[headerSizePos:headerSizePos+2], uint16(headerSize))

	offsetsPos := w.len()
	for range strs {
		w.u32(0) // offsets placeholder
	}

	dataStart := w.len()
	w.patchU32(stringsStartPos, uint32(dataStart))

	for i, s := range strs {
		off := w.len() - dataStart
		w.patchU32(offsetsPos+4*i, uint32(off))

		// char count, then byte count; equal here since fixtures are ASCII.
		w.writeLen7(len(s))
		w.writeLen7(len(s))
		w.raw([]byte(s))
		w.u8(0)
	}

	w.patchU32(chunkSizePos, uint32(w.len()))
	return w.b
}

// utf16StringPool builds a UTF-16LE-flavored string pool.
func utf16StringPool(strs []string) []byte {
	var w byteBuf
	w.u16(chunkStringPool)
	headerSizePos := w.len()
	w.u16(0)
	chunkSizePos := w.len()
	w.u32(0)
	w.u32(uint32(len(strs)))
	w.u32(0)
	w.u32(0) // flags: utf16
	stringsStartPos := w.len()
	w.u32(0)
	w.u32(0)

	headerSize := w.len()
	binary.LittleEndian.PutUint16(w.b[headerSizePos:headerSizePos+2], uint16(headerSize))

	offsetsPos := w.len()
	for range strs {
		w.u32(0)
	}

	dataStart := w.len()
	w.patchU32(stringsStartPos, uint32(dataStart))

	for i, s := range strs {
		off := w.len() - dataStart
		w.patchU32(offsetsPos+4*i, uint32(off))

		units := utf16.Encode([]rune(s))
		w.u16(uint16(len(units)))
		for _, u := range units {
			w.u16(u)
		}
		w.u16(0)
	}

	w.patchU32(chunkSizePos, uint32(w.len()))
	return w.b
}
