package apkparser

import (
	"fmt"
	"math"
	"strconv"
)

// decodeTypedValue renders a (data_type, data) pair from a resource table
// entry or an XML attribute as text, per spec.md §4.4. strings is the pool
// a TYPE_STRING payload indexes into (the resource table's global pool, or
// an XML document's own string pool).
func decodeTypedValue(dt dataType, data uint32, strings *StringPool) string {
	switch dt {
	case typeNull:
		return ""
	case typeReference, typeAttribute:
		return fmt.Sprintf("0x%x", data)
	case typeString:
		if strings != nil {
			return strings.Get(data)
		}
		return ""
	case typeFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(data)), 'g', -1, 32)
	case typeDimension:
		return formatComplex(data, dimensionUnits[:])
	case typeFraction:
		return formatFraction(data)
	case typeIntDec:
		return strconv.FormatUint(uint64(data), 10)
	case typeIntHex:
		return fmt.Sprintf("0x%x", data)
	case typeIntBool:
		switch data {
		case 0xFFFFFFFF:
			return "true"
		case 0:
			return "false"
		default:
			return "undefined"
		}
	case typeIntColorA8:
		return fmt.Sprintf("#%08x", data)
	case typeIntColorRGB8:
		return fmt.Sprintf("#%06x", data&0xFFFFFF)
	case typeIntColorA4:
		return fmt.Sprintf("#%04x", data&0xFFFF)
	case typeIntColorRGB4:
		return fmt.Sprintf("#%03x", data&0xFFF)
	default:
		return strconv.FormatUint(uint64(data), 10)
	}
}

var dimensionUnits = [...]string{"px", "dp", "sp", "pt", "in", "mm"}

// complexMultipliers is (1/256) times 1, 2^-7, 2^-15 and 2^-23 for radix 0
// through 3, i.e. the four possible mantissa scales for the 32-bit fixed-point "complex" value
// used by dimensions and fractions (spec.md §4.4).
var complexMultipliers = [4]float64{
	1.0 / 256,
	1.0 / (256 * 128),
	1.0 / (256 * 32768),
	1.0 / (256 * 8388608),
}

// complexToFloat decodes the complex fixed-point encoding, rounding to four
// decimal places as spec.md §8's round-trip property requires.
func complexToFloat(data uint32) float64 {
	mantissa := float64(int32(data & 0xFFFFFF00))
	radix := (data >> 4) & 0x3
	v := mantissa * complexMultipliers[radix]
	return math.Round(v*10000) / 10000
}

func formatComplex(data uint32, units []string) string {
	v := complexToFloat(data)
	idx := data & 0xF
	unit := "?"
	if int(idx) < len(units) {
		unit = units[idx]
	}
	return formatDecimal(v) + unit
}

var fractionUnits = [...]string{"%", "%p"}

func formatFraction(data uint32) string {
	v := complexToFloat(data) * 100
	idx := data & 0xF
	suffix := "%"
	if int(idx) < len(fractionUnits) {
		suffix = fractionUnits[idx]
	}
	return formatDecimal(v) + suffix
}

// formatDecimal renders v with at least one fractional digit, matching the
// "16.0dp" / "100.0%" textual form Android's own toString produces for these
// values instead of strconv's bare-integer shorthand.
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s
		}
	}
	return s + ".0"
}
