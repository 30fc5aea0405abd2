package apkparser

import (
	"fmt"
	"log"
)

// Entry is one configuration-specific variant of a resource: its key name
// (from the owning package's key-strings pool) and its typed value.
type Entry struct {
	Flags    uint16
	Key      string
	DataType uint8
	Data     uint32
}

// IsComplex reports whether this entry is an aggregate resource (a style,
// array, or plural). Complex entries are a non-goal here: the table still
// records the slot so lookups don't silently miss, but the value is never
// expanded, per spec.md §1/§8.
func (e Entry) IsComplex() bool { return e.Flags&0x0001 != 0 }

// IsPublic reports whether the public-resource flag is set.
func (e Entry) IsPublic() bool { return e.Flags&0x0002 != 0 }

// Value renders the entry's data through TypedValueDecoder, resolving
// TYPE_STRING against globalStrings. Complex entries degrade to the raw
// decimal data per spec.md §7's "unsupported" error kind.
func (e Entry) Value(globalStrings *StringPool) string {
	if e.IsComplex() {
		log.Printf("apkparser: complex resource entry %q not decoded, returning raw data", e.Key)
		return fmt.Sprintf("%d", e.Data)
	}
	return decodeTypedValue(dataType(e.DataType), e.Data, globalStrings)
}

// TypeChunk holds, for one type_id, every entry slot seen across every
// TypeChunk of that type across every configuration. entries[i] is nil for a
// slot with no variant in any configuration.
type TypeChunk struct {
	TypeID      uint8
	EntryCount  uint32
	entries     []map[ConfigKey]Entry
}

// TypeSpec is the ordered-list element spec.md §3 describes: the
// entry-count/flags header for a type, plus the single merged TypeChunk
// that accumulates every configuration's entries.
type TypeSpec struct {
	TypeID     uint8
	EntryFlags []uint32
	Type       *TypeChunk
}

// Package is one `<package id="0x7f" ...>` block of resources.arsc: its own
// type-name/key-name string pools and the ordered type specs defined under
// it.
type Package struct {
	ID          uint8
	Name        string
	TypeStrings StringPool
	KeyStrings  StringPool

	specs   []*TypeSpec
	specIdx map[uint8]*TypeSpec
}

// TypeSpecs returns the package's type specs in declaration order.
func (p *Package) TypeSpecs() []*TypeSpec { return p.specs }

// ResourceTable is the parsed form of resources.arsc: a global string pool
// shared by every resource's STRING-typed values, and the set of packages
// keyed by their 8-bit package id.
type ResourceTable struct {
	GlobalStrings StringPool
	Packages      map[uint8]*Package
}

// ParseResourceTable parses a complete resources.arsc buffer. Internal
// panics from out-of-bounds access on a truncated or hostile buffer are
// recovered and returned as a plain error, matching the teacher's
// parseResources.
func ParseResourceTable(buf []byte) (table *ResourceTable, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			table = nil
			err = fmt.Errorf("apkparser: panic while parsing resource table: %v", rec)
		}
	}()

	r := NewBinReader(buf)
	hdr := readChunkHeader(r, 0)
	if hdr.typ != chunkTable {
		return nil, ErrNotResourceTable
	}

	packageCount := r.U32LE(8)

	table = &ResourceTable{Packages: make(map[uint8]*Package, packageCount)}

	globalPool, err := parseStringPool(r, uint32(hdr.headerSize))
	if err != nil {
		return nil, fmt.Errorf("apkparser: global string pool: %w", err)
	}
	table.GlobalStrings = globalPool

	off := uint32(hdr.headerSize) + readChunkHeader(r, uint32(hdr.headerSize)).size
	for i := uint32(0); i < packageCount && off < hdr.size; i++ {
		pkg, consumed, perr := parsePackage(r, off)
		if perr != nil {
			return nil, fmt.Errorf("apkparser: package %d: %w", i, perr)
		}
		table.Packages[pkg.ID] = pkg
		off += consumed
	}

	return table, nil
}

// parsePackage reads one package chunk starting at off and returns it along
// with the number of bytes it spans (its chunk_size).
func parsePackage(r *BinReader, off uint32) (*Package, uint32, error) {
	hdr := readChunkHeader(r, off)
	if hdr.typ != chunkTablePackage {
		return nil, 0, fmt.Errorf("unexpected chunk type 0x%04x, want package", hdr.typ)
	}

	pkg := &Package{
		ID:      uint8(r.U32LE(off + 8)),
		Name:    r.StrUTF16LE(off+12, 256),
		specIdx: make(map[uint8]*TypeSpec),
	}

	typeStringsOff := r.U32LE(off + 12 + 256)
	keyStringsOff := r.U32LE(off + 12 + 256 + 4 + 4)

	var err error
	pkg.TypeStrings, err = parseStringPool(r, off+typeStringsOff)
	if err != nil {
		return nil, 0, fmt.Errorf("type string pool: %w", err)
	}
	pkg.KeyStrings, err = parseStringPool(r, off+keyStringsOff)
	if err != nil {
		return nil, 0, fmt.Errorf("key string pool: %w", err)
	}

	body := off + uint32(hdr.headerSize)
	end := off + hdr.size
	for body < end {
		childHdr := readChunkHeader(r, body)
		if childHdr.size == 0 {
			break
		}
		if childHdr.typ == chunkTablePackage {
			break
		}

		switch childHdr.typ {
		case chunkTableTypeSpec:
			spec := parseTypeSpec(r, body)
			pkg.specs = append(pkg.specs, spec)
			pkg.specIdx[spec.TypeID] = spec
		case chunkTableType:
			parseTypeChunk(r, body, pkg)
		}

		body += childHdr.size
	}

	return pkg, hdr.size, nil
}

func parseTypeSpec(r *BinReader, off uint32) *TypeSpec {
	typeID := r.U8(off + 8)
	entryCount := r.U32LE(off + 12)

	flags := make([]uint32, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		flags[i] = r.U32LE(off + 16 + 4*i)
	}

	return &TypeSpec{TypeID: typeID, EntryFlags: flags}
}

// parseTypeChunk reads a RES_TABLE_TYPE_TYPE chunk and merges its entries
// into the owning TypeSpec's TypeChunk, creating it on first sight. Per
// spec.md §9's "Spec-to-type association" note, a spec may be followed by
// several TypeChunks (one per configuration); each one's entries land in the
// same per-slot ConfigKey map rather than overwriting the previous chunk.
func parseTypeChunk(r *BinReader, off uint32, pkg *Package) {
	typeID := r.U8(off + 8)
	entryCount := r.U32LE(off + 12)
	entriesStart := r.U32LE(off + 16)
	config, configSize := readConfigKey(r, off+20)
	offsetTableBase := off + 20 + configSize

	spec := pkg.specIdx[typeID]
	if spec == nil {
		// A type chunk with no preceding spec chunk is malformed but not
		// fatal; synthesize an empty spec so entries still land somewhere.
		spec = &TypeSpec{TypeID: typeID}
		pkg.specs = append(pkg.specs, spec)
		pkg.specIdx[typeID] = spec
	}

	if spec.Type == nil {
		spec.Type = &TypeChunk{
			TypeID:     typeID,
			EntryCount: entryCount,
			entries:    make([]map[ConfigKey]Entry, entryCount),
		}
	} else if entryCount > spec.Type.EntryCount {
		grown := make([]map[ConfigKey]Entry, entryCount)
		copy(grown, spec.Type.entries)
		spec.Type.entries = grown
		spec.Type.EntryCount = entryCount
	}

	entriesBase := off + entriesStart
	for i := uint32(0); i < entryCount; i++ {
		entryOff := r.U32LE(offsetTableBase + 4*i)
		if entryOff == noString {
			continue
		}

		absOff := entriesBase + entryOff
		entrySize := r.U16LE(absOff)
		entryFlags := r.U16LE(absOff + 2)
		keyIdx := r.U32LE(absOff + 4)

		entry := Entry{
			Flags: entryFlags,
			Key:   pkg.KeyStrings.Get(keyIdx),
		}

		if entryFlags&0x0001 == 0 {
			valOff := absOff + uint32(entrySize)
			entry.DataType = r.U8(valOff + 3)
			entry.Data = r.U32LE(valOff + 4)
		}

		if spec.Type.entries[i] == nil {
			spec.Type.entries[i] = make(map[ConfigKey]Entry, 1)
		}
		spec.Type.entries[i][config] = entry
	}
}

// splitResID splits a 32-bit resource id into its PPTTIIII components.
func splitResID(id uint32) (pkg uint8, typeIdx uint8, entryIdx uint16) {
	return uint8(id >> 24), uint8(id >> 16), uint16(id)
}

// KeyFor implements spec.md §4.3's key_for: "@type/key" in XML form, or
// "R.type.key" otherwise. Returns "", false on any lookup miss.
func (t *ResourceTable) KeyFor(id uint32, xmlForm bool) (string, bool) {
	pkgID, typeIdx, entryIdx := splitResID(id)
	pkg := t.Packages[pkgID]
	if pkg == nil || typeIdx == 0 || int(typeIdx) > len(pkg.specs) {
		return "", false
	}
	spec := pkg.specs[typeIdx-1]
	if spec.Type == nil || int(entryIdx) >= len(spec.Type.entries) {
		return "", false
	}
	variants := spec.Type.entries[entryIdx]
	if len(variants) == 0 {
		return "", false
	}

	var any Entry
	for _, e := range variants {
		any = e
		break
	}

	typeName := pkg.TypeStrings.Get(uint32(typeIdx) - 1)
	if xmlForm {
		return fmt.Sprintf("@%s/%s", typeName, any.Key), true
	}
	return fmt.Sprintf("R.%s.%s", typeName, any.Key), true
}

// DefaultValue implements default_value: the entry.Type variant for id,
// if any.
func (t *ResourceTable) DefaultValue(id uint32) (Entry, bool) {
	variants, ok := t.AllValues(id)
	if !ok {
		return Entry{}, false
	}
	e, ok := variants[DefaultConfig]
	return e, ok
}

// AllValues implements all_values: the full ConfigKey → Entry map for id.
func (t *ResourceTable) AllValues(id uint32) (map[ConfigKey]Entry, bool) {
	pkgID, typeIdx, entryIdx := splitResID(id)
	pkg := t.Packages[pkgID]
	if pkg == nil || typeIdx == 0 || int(typeIdx) > len(pkg.specs) {
		return nil, false
	}
	spec := pkg.specs[typeIdx-1]
	if spec.Type == nil || int(entryIdx) >= len(spec.Type.entries) {
		return nil, false
	}
	variants := spec.Type.entries[entryIdx]
	if variants == nil {
		return nil, false
	}
	return variants, true
}

// AllKeys implements all_keys: every resource key, grouped by package id.
func (t *ResourceTable) AllKeys() map[uint8][]string {
	out := make(map[uint8][]string, len(t.Packages))
	for pkgID, pkg := range t.Packages {
		var keys []string
		for _, spec := range pkg.specs {
			if spec.Type == nil {
				continue
			}
			for _, variants := range spec.Type.entries {
				for _, e := range variants {
					keys = append(keys, e.Key)
					break
				}
			}
		}
		out[pkgID] = keys
	}
	return out
}

// AllStrings implements all_strings: the global string pool's contents.
func (t *ResourceTable) AllStrings() []string {
	return t.GlobalStrings.All()
}

// AllTypes implements all_types: every package's type-name pool contents.
func (t *ResourceTable) AllTypes() map[uint8][]string {
	out := make(map[uint8][]string, len(t.Packages))
	for pkgID, pkg := range t.Packages {
		out[pkgID] = pkg.TypeStrings.All()
	}
	return out
}

// resolveReference follows a chain of TYPE_REFERENCE entries down to a
// non-reference value, capped at a fixed depth to bound worst-case
// recursion on a malformed, cyclic resource table (spec.md §9).
const maxReferenceDepth = 5

func (t *ResourceTable) resolveReference(id uint32) (Entry, bool) {
	for depth := 0; depth < maxReferenceDepth; depth++ {
		entry, ok := t.DefaultValue(id)
		if !ok {
			return Entry{}, false
		}
		if dataType(entry.DataType) != typeReference || entry.Data == 0 {
			return entry, true
		}
		id = entry.Data
	}
	return Entry{}, false
}
