package apkparser

import (
	"fmt"
)

const resourcesArscEntry = "resources.arsc"

// maxArscSize and maxXmlSize bound how much of a single ZIP entry this
// module will decompress into memory. Both formats are always fully
// buffered (spec.md §5: "streaming is not required and not supported"), so
// a limit here is what stands between a crafted APK and an unbounded
// allocation.
const (
	maxArscSize = 256 << 20
	maxXmlSize  = 64 << 20
)

// Handle is the facade spec.md §4.6 describes: an opened APK with its
// resource table eagerly parsed. It is safe to share across goroutines,
// since ResourceTable is immutable once built; do not share a Handle's
// underlying ZipReader across concurrent parse_xml calls without
// synchronizing opens.
type Handle struct {
	zip       *ZipReader
	Resources *ResourceTable
}

// Open loads apkPath and eagerly parses resources.arsc. A missing
// resources.arsc is not an error: some APKs (rare, test fixtures) have none,
// and resource-less operations (KeyFor/DefaultValue/etc.) simply answer
// "not found" in that case, same as the teacher's apkparser.parseResources
// tolerating a missing resource table.
func Open(apkPath string) (h *Handle, err error) {
	zr, err := OpenZip(apkPath)
	if err != nil {
		return nil, fmt.Errorf("apkparser: open %q: %w", apkPath, err)
	}

	h = &Handle{zip: zr}
	if !zr.Has(resourcesArscEntry) {
		return h, nil
	}

	if err := h.parseResources(); err != nil {
		zr.Close()
		return nil, err
	}
	return h, nil
}

func (h *Handle) parseResources() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("apkparser: panic parsing %s: %v", resourcesArscEntry, rec)
		}
	}()

	buf, err := h.zip.ReadAll(resourcesArscEntry, maxArscSize)
	if err != nil {
		return fmt.Errorf("apkparser: reading %s: %w", resourcesArscEntry, err)
	}

	table, err := ParseResourceTable(buf)
	if err != nil {
		return fmt.Errorf("apkparser: parsing %s: %w", resourcesArscEntry, err)
	}
	h.Resources = table
	return nil
}

// Close releases the underlying archive.
func (h *Handle) Close() error {
	return h.zip.Close()
}

// KeyFor implements resource_key: the `@type/key` or `R.type.key` name for
// id, or ("", false) on any lookup miss.
func (h *Handle) KeyFor(id uint32, xmlForm bool) (string, bool) {
	if h.Resources == nil {
		return "", false
	}
	return h.Resources.KeyFor(id, xmlForm)
}

// DefaultValue implements resource_default.
func (h *Handle) DefaultValue(id uint32) (Entry, bool) {
	if h.Resources == nil {
		return Entry{}, false
	}
	return h.Resources.DefaultValue(id)
}

// AllValues implements resource_all.
func (h *Handle) AllValues(id uint32) (map[ConfigKey]Entry, bool) {
	if h.Resources == nil {
		return nil, false
	}
	return h.Resources.AllValues(id)
}

// AllKeys implements all_keys.
func (h *Handle) AllKeys() map[uint8][]string {
	if h.Resources == nil {
		return nil
	}
	return h.Resources.AllKeys()
}

// AllStrings implements all_strings.
func (h *Handle) AllStrings() []string {
	if h.Resources == nil {
		return nil
	}
	return h.Resources.AllStrings()
}

// AllTypes implements all_types.
func (h *Handle) AllTypes() map[uint8][]string {
	if h.Resources == nil {
		return nil
	}
	return h.Resources.AllTypes()
}

// ParseXmlResult is what ParseXml returns: the serialized text and the
// retained element tree from one decode pass.
type ParseXmlResult struct {
	Text     string
	Elements []*XmlElement
}

// ParseXml implements parse_xml: locates member by name in the archive,
// decodes it as binary XML, and resolves attribute references against the
// handle's resource table (resolve requests fully materialized default
// values rather than `@type/key` names).
func (h *Handle) ParseXml(member string, pretty, resolve bool) (*ParseXmlResult, error) {
	buf, err := h.zip.ReadAll(member, maxXmlSize)
	if err != nil {
		return nil, fmt.Errorf("apkparser: reading %q: %w", member, err)
	}

	text, elements, err := DecodeXml(buf, h.Resources, pretty, resolve)
	if err != nil {
		return nil, fmt.Errorf("apkparser: parsing %q: %w", member, err)
	}
	return &ParseXmlResult{Text: text, Elements: elements}, nil
}

// density qualifier values for ScreenType's high 16 bits, highest first;
// Handle.Icon prefers the first one a variant exists for (grounded on
// zapstore-zsp's extractIcon density loop and ResTableConfig's density
// field from mario-hall-androidbinary).
var iconDensityPreference = [...]uint16{640, 480, 320, 240, 160}

// Icon resolves a drawable resource id to the Entry of its highest-density
// variant among the densities in iconDensityPreference, falling back to the
// default configuration and then to an arbitrary variant if none of those
// densities is present. It returns the table entry only (a file path entry
// is the common case for icons inside an APK); it does not read that path
// out of the archive or decode any image.
func (h *Handle) Icon(id uint32) (Entry, bool) {
	if h.Resources == nil {
		return Entry{}, false
	}
	variants, ok := h.Resources.AllValues(id)
	if !ok {
		return Entry{}, false
	}

	for _, want := range iconDensityPreference {
		for cfg, e := range variants {
			if cfg.density() == want {
				return e, true
			}
		}
	}

	if e, ok := variants[DefaultConfig]; ok {
		return e, true
	}
	for _, e := range variants {
		return e, true
	}
	return Entry{}, false
}
