// Package apkparser decodes the Android binary resource table (resources.arsc)
// and the binary XML format used for AndroidManifest.xml and other compiled
// XML members of an APK, resolving typed/reference attribute values against
// the resource table.
package apkparser

// frameworks/base/libs/androidfw/include/androidfw/ResourceTypes.h
const (
	chunkNull          = 0x0000
	chunkStringPool    = 0x0001
	chunkTable         = 0x0002
	chunkXml           = 0x0003
	chunkTablePackage  = 0x0200
	chunkTableType     = 0x0201
	chunkTableTypeSpec = 0x0202

	chunkMaskXml     = 0x0100
	chunkXmlNsStart  = 0x0100
	chunkXmlNsEnd    = 0x0101
	chunkXmlTagStart = 0x0102
	chunkXmlTagEnd   = 0x0103
	chunkXmlText     = 0x0104
	chunkXmlResMap   = 0x0180

	chunkHeaderSize = 2 + 2 + 4 // type, headerSize, chunkSize
)

// dataType is the one-byte tag of a ResValue (spec.md §4.4).
type dataType uint8

const (
	typeNull         dataType = 0x00
	typeReference    dataType = 0x01
	typeAttribute    dataType = 0x02
	typeString       dataType = 0x03
	typeFloat        dataType = 0x04
	typeDimension    dataType = 0x05
	typeFraction     dataType = 0x06
	typeIntDec       dataType = 0x10
	typeIntHex       dataType = 0x11
	typeIntBool      dataType = 0x12
	typeIntColorA8   dataType = 0x1c
	typeIntColorRGB8 dataType = 0x1d
	typeIntColorA4   dataType = 0x1e
	typeIntColorRGB4 dataType = 0x1f
)

// chunkHeader is the common prefix of every chunk in both file formats.
type chunkHeader struct {
	typ        uint16
	headerSize uint16
	size       uint32
}

// readChunkHeader reads a chunkHeader at off. Matches the teacher's
// parseChunkHeader, but against a random-access buffer instead of a stream,
// since ResourceTable parsing needs to jump between sibling chunks.
func readChunkHeader(r *BinReader, off uint32) chunkHeader {
	return chunkHeader{
		typ:        r.U16LE(off),
		headerSize: r.U16LE(off + 2),
		size:       r.U32LE(off + 4),
	}
}

const noString = 0xFFFFFFFF
