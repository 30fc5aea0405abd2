package apkparser

import (
	"fmt"
	"strings"
)

// attrNameFromID is a fallback table from well-known android: attribute
// resource ids to their name, used when an obfuscated/minified APK has
// stripped the attribute name itself from the string pool and Android falls
// back to reading attributes purely by id (grounded on the teacher's
// getAttributteName comment block in binxml.go, and cross-checked against
// the versionCode id 0x0101021b seen in the crawshaw-apk test fixture).
var attrNameFromID = map[uint32]string{
	0x01010000: "theme",
	0x01010001: "label",
	0x01010002: "icon",
	0x01010003: "name",
	0x01010006: "permission",
	0x0101000f: "debuggable",
	0x01010010: "exported",
	0x0101001f: "configChanges",
	0x01010024: "value",
	0x01010025: "resource",
	0x0101020c: "minSdkVersion",
	0x01010270: "targetSdkVersion",
	0x0101021b: "versionCode",
	0x0101021c: "versionName",
}

const androidNS = "http://schemas.android.com/apk/res/android"

// xmlDecoder holds the per-call state for one binary XML decode: its own
// string pool and resource-id map, plus the scoped uri->prefix namespace
// table built up as START_NAMESPACE/END_NAMESPACE chunks are seen.
type xmlDecoder struct {
	r           *BinReader
	strings     StringPool
	resourceIds []uint32

	res     *ResourceTable
	resolve bool

	nsActive map[uint32]string // uri string -> prefix string, currently in scope
	nsOpened []nsDecl          // every namespace opened so far; the root declares the ones opened before it

	builder *treeBuilder
}

type nsDecl struct {
	prefix, uri string
}

// DecodeXml parses a binary XML chunk stream (spec.md §4.5) and returns both
// its serialized text and its retained element tree. res may be nil, in
// which case TYPE_REFERENCE attributes fall back to the `res:0x...` form
// since no table is available to resolve against. resolve requests
// that references be replaced by their resolved default value rather than
// rendered as `@type/key`. Internal panics on a truncated or hostile buffer
// are recovered and returned as a plain error.
func DecodeXml(buf []byte, res *ResourceTable, pretty, resolve bool) (text string, elements []*XmlElement, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, elements = "", nil
			err = fmt.Errorf("apkparser: panic while decoding binary xml: %v", rec)
		}
	}()

	if looksLikePlainXml(buf) {
		return "", nil, ErrPlainTextManifest
	}

	r := NewBinReader(buf)
	hdr := readChunkHeader(r, 0)
	if hdr.typ != chunkXml {
		return "", nil, ErrNotBinaryXml
	}

	d := &xmlDecoder{
		r:        r,
		res:      res,
		resolve:  resolve,
		nsActive: make(map[uint32]string),
		builder:  newTreeBuilder(),
	}

	off := uint32(hdr.headerSize)
	for off < hdr.size {
		childHdr := readChunkHeader(r, off)
		if childHdr.size == 0 {
			break
		}

		switch childHdr.typ {
		case chunkStringPool:
			sp, err := parseStringPool(r, off)
			if err != nil {
				return "", nil, fmt.Errorf("apkparser: xml string pool: %w", err)
			}
			d.strings = sp
		case chunkXmlResMap:
			d.parseResourceMap(off, childHdr)
		case chunkXmlNsStart:
			d.parseNsStart(off, childHdr)
		case chunkXmlNsEnd:
			d.parseNsEnd(off, childHdr)
		case chunkXmlTagStart:
			d.parseTagStart(off, childHdr)
		case chunkXmlTagEnd:
			d.parseTagEnd(off, childHdr)
		case chunkXmlText:
			d.parseText(off, childHdr)
		}

		off += childHdr.size
	}

	if d.builder.root == nil {
		return "", nil, fmt.Errorf("apkparser: binary xml had no root element")
	}

	elements = flattenElements(d.builder.root)
	text = serialize(d.builder.root, pretty)
	return text, elements, nil
}

func flattenElements(root *XmlElement) []*XmlElement {
	var out []*XmlElement
	var walk func(*XmlElement)
	walk = func(e *XmlElement) {
		out = append(out, e)
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

func (d *xmlDecoder) parseResourceMap(off uint32, hdr chunkHeader) {
	count := (hdr.size - uint32(hdr.headerSize)) / 4
	d.resourceIds = make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		d.resourceIds[i] = d.r.U32LE(off + uint32(hdr.headerSize) + 4*i)
	}
}

func (d *xmlDecoder) parseNsStart(off uint32, hdr chunkHeader) {
	body := off + uint32(hdr.headerSize)
	prefixIdx := d.r.U32LE(body)
	uriIdx := d.r.U32LE(body + 4)

	prefix := d.strings.Get(prefixIdx)
	uri := d.strings.Get(uriIdx)
	d.nsActive[uriIdx] = prefix
	d.nsOpened = append(d.nsOpened, nsDecl{prefix: prefix, uri: uri})
}

func (d *xmlDecoder) parseNsEnd(off uint32, hdr chunkHeader) {
	body := off + uint32(hdr.headerSize)
	uriIdx := d.r.U32LE(body + 4)
	delete(d.nsActive, uriIdx)
}

func (d *xmlDecoder) parseTagStart(off uint32, hdr chunkHeader) {
	body := off + uint32(hdr.headerSize)

	nsURIIdx := d.r.U32LE(body)
	nameIdx := d.r.U32LE(body + 4)
	attrStart := d.r.U16LE(body + 8)
	attrSize := d.r.U16LE(body + 10)
	attrCount := d.r.U16LE(body + 12)

	lineNum := d.r.U32LE(off + 8)
	commentIdx := d.r.U32LE(off + 12)

	el := &XmlElement{
		Line:            lineNum,
		Comment:         d.strings.Get(commentIdx),
		NamespacePrefix: d.nsActive[nsURIIdx],
		Name:            d.strings.Get(nameIdx),
	}

	attrBase := body + uint32(attrStart)
	for i := uint16(0); i < attrCount; i++ {
		aOff := attrBase + uint32(i)*uint32(attrSize)
		el.Attributes = append(el.Attributes, d.decodeAttribute(aOff, el.Name))
	}

	if el.IsRoot = len(d.builder.stack) == 0; el.IsRoot {
		for _, decl := range d.nsOpened {
			el.Attributes = append([]XmlAttribute{{
				NamespacePrefix: "xmlns",
				Name:            decl.prefix,
				Value:           decl.uri,
			}}, el.Attributes...)
		}
	}

	d.builder.startElement(el)
}

func (d *xmlDecoder) decodeAttribute(off uint32, elementName string) XmlAttribute {
	nsURIIdx := d.r.U32LE(off)
	nameIdx := d.r.U32LE(off + 4)
	rawValueIdx := d.r.U32LE(off + 8)
	dt := dataType(d.r.U8(off + 15))
	data := d.r.U32LE(off + 16)

	name := d.resolveAttrName(nameIdx, elementName)
	prefix := d.nsActive[nsURIIdx]
	if prefix == "" && nsURIIdx != noString {
		// A resource-id-backed attribute always belongs to the android:
		// namespace even if its ns_uri_idx wasn't declared via START_NAMESPACE
		// (common in obfuscated manifests); the teacher's binxml.go applies
		// the same fixup.
		prefix = "android"
	}

	return XmlAttribute{
		NamespacePrefix: prefix,
		Name:            name,
		Value:           d.resolveAttrValue(rawValueIdx, dt, data),
	}
}

// resolveAttrName implements the resource-id-keyed fallback: attrNameFromID
// supplies the name when the string pool slot for this attribute was
// stripped, except in the root manifest's own "package" and
// "platformBuildVersion*" meta attributes, which must always come from the
// string table (the teacher's binxml.go documents this exception in detail).
func (d *xmlDecoder) resolveAttrName(nameIdx uint32, elementName string) string {
	fromStrings := d.strings.Get(nameIdx)

	var fromID string
	if int(nameIdx) < len(d.resourceIds) {
		fromID = attrNameFromID[d.resourceIds[nameIdx]]
	}

	if fromID == "" {
		return fromStrings
	}
	if elementName == "manifest" && (fromStrings == "package" || strings.HasPrefix(fromStrings, "platformBuildVersion")) {
		return fromStrings
	}
	return fromID
}

// resolveAttrValue implements spec.md §4.5's rule ordering: raw string
// value first, then reference resolution, then (per §9's resolved open
// question) the typed decoder for any other constant.
func (d *xmlDecoder) resolveAttrValue(rawValueIdx uint32, dt dataType, data uint32) string {
	if rawValueIdx != noString {
		return d.strings.Get(rawValueIdx)
	}

	if dt == typeReference {
		if d.res != nil {
			if d.resolve {
				if entry, ok := d.res.resolveReference(data); ok {
					return entry.Value(&d.res.GlobalStrings)
				}
			}
			if key, ok := d.res.KeyFor(data, true); ok {
				return key
			}
		}
		return fmt.Sprintf("res:0x%x", data)
	}

	return decodeTypedValue(dt, data, &d.strings)
}

func (d *xmlDecoder) parseTagEnd(off uint32, hdr chunkHeader) {
	d.builder.endElement()
}

func (d *xmlDecoder) parseText(off uint32, hdr chunkHeader) {
	body := off + uint32(hdr.headerSize)
	idx := d.r.U32LE(body)
	d.builder.text(d.strings.Get(idx))
}

// serialize renders the element tree as well-formed XML text per spec.md
// §4.5's serialization contract: pretty mode indents nested elements and
// their attributes, CDATA is split one block per non-empty trimmed line of
// decoded text, and only the root element declares namespaces.
func serialize(root *XmlElement, pretty bool) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	writeElement(&b, root, 0, pretty)
	return b.String()
}

func writeElement(b *strings.Builder, el *XmlElement, depth int, pretty bool) {
	indent := ""
	if pretty {
		indent = "\n" + strings.Repeat("  ", depth)
	}
	b.WriteString(indent)
	b.WriteString("<")
	b.WriteString(qualifiedName(el.NamespacePrefix, el.Name))

	for _, a := range el.Attributes {
		if pretty {
			b.WriteString("\n" + strings.Repeat("  ", depth+1))
		} else {
			b.WriteString(" ")
		}
		if a.NamespacePrefix == "xmlns" {
			b.WriteString("xmlns:")
			b.WriteString(a.Name)
		} else {
			b.WriteString(qualifiedName(a.NamespacePrefix, a.Name))
		}
		b.WriteString(`="`)
		b.WriteString(escapeXml(a.Value))
		b.WriteString(`"`)
	}

	if len(el.Children) == 0 && len(el.Text) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")

	for _, line := range el.Text {
		for _, l := range strings.Split(line, "\n") {
			l = strings.TrimSpace(l)
			if l == "" {
				continue
			}
			if pretty {
				b.WriteString("\n" + strings.Repeat("  ", depth+1))
			}
			b.WriteString("<![CDATA[")
			b.WriteString(l)
			b.WriteString("]]>")
		}
	}

	for _, c := range el.Children {
		writeElement(b, c, depth+1, pretty)
	}

	b.WriteString(indent)
	b.WriteString("</")
	b.WriteString(qualifiedName(el.NamespacePrefix, el.Name))
	b.WriteString(">")
}

func qualifiedName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

func escapeXml(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
