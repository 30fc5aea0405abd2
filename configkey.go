package apkparser

// ConfigKey is the multi-axis device-configuration qualifier that selects
// among variants of a resource: imsi (mcc/mnc), locale, screen type, input
// method, screen size, platform version, screen layout, and screen size in
// dp. It is plain value data so it can be used directly as a map key; two
// ConfigKeys compare equal iff every field does.
//
// The on-disk struct has grown fields across Android releases (tracked by
// its own leading size field); this decoder understands the 8-field layout
// below and projects anything newer down to it, per the teacher's approach
// of reading only the fields it knows about from a self-describing struct.
type ConfigKey struct {
	Imsi         uint32
	Locale       uint32
	ScreenType   uint32
	Input        uint32
	ScreenSize   uint32
	Version      uint32
	ScreenConfig uint32
	ScreenSizeDp uint32
}

// DefaultConfig is the all-zero ConfigKey: no qualifiers, matches any device.
var DefaultConfig = ConfigKey{}

// density extracts the density qualifier packed into the high
// 16 bits of ScreenType (Android's ResTable_config.density field), used by
// Handle.Icon to prefer the highest-density variant of a drawable resource.
func (c ConfigKey) density() uint16 {
	return uint16(c.ScreenType >> 16)
}

// readConfigKey reads a self-describing ConfigKey starting at off: a u32
// size, followed by as many of the eight known fields as that size allows.
// It returns the key and the total byte span (the size field's value),
// matching spec.md §4.3's "begins with size, eight fields follow" layout.
func readConfigKey(r *BinReader, off uint32) (ConfigKey, uint32) {
	size := r.U32LE(off)
	if size < 4 {
		return ConfigKey{}, size
	}

	var fields [8]uint32
	avail := size - 4
	for i := range fields {
		fieldOff := uint32(4 * i)
		if fieldOff+4 > avail {
			break
		}
		fields[i] = r.U32LE(off + 4 + fieldOff)
	}

	return ConfigKey{
		Imsi:         fields[0],
		Locale:       fields[1],
		ScreenType:   fields[2],
		Input:        fields[3],
		ScreenSize:   fields[4],
		Version:      fields[5],
		ScreenConfig: fields[6],
		ScreenSizeDp: fields[7],
	}, size
}
