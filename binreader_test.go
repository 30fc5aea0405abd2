package apkparser

import "testing"

func TestBinReaderLittleEndian(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := NewBinReader(buf)

	if got := r.U8(2); got != 0x03 {
		t.Errorf("U8(2) = 0x%x, want 0x03", got)
	}
	if got := r.U16LE(0); got != 0x0201 {
		t.Errorf("U16LE(0) = 0x%x, want 0x0201", got)
	}
	if got := r.U32LE(4); got != 0x08070605 {
		t.Errorf("U32LE(4) = 0x%x, want 0x08070605", got)
	}
}

func TestBinReaderOutOfRangeIsZero(t *testing.T) {
	r := NewBinReader([]byte{0x01, 0x02})
	if got := r.U8(10); got != 0 {
		t.Errorf("U8 out of range = %d, want 0", got)
	}
	if got := r.U16LE(1); got != 0 {
		t.Errorf("U16LE straddling end = %d, want 0", got)
	}
	if got := r.U32LE(0); got != 0 {
		t.Errorf("U32LE past end = %d, want 0", got)
	}
	if got := r.StrUTF8(5, 3); got != "" {
		t.Errorf("StrUTF8 out of range = %q, want \"\"", got)
	}
}

func TestBinReaderStrings(t *testing.T) {
	r := NewBinReader([]byte("hello\x00"))
	if got := r.StrUTF8(0, 6); got != "hello" {
		t.Errorf("StrUTF8 = %q, want %q", got, "hello")
	}

	// "hi" as UTF-16LE plus a trailing NUL code unit.
	buf := []byte{'h', 0, 'i', 0, 0, 0}
	r2 := NewBinReader(buf)
	if got := r2.StrUTF16LE(0, 6); got != "hi" {
		t.Errorf("StrUTF16LE = %q, want %q", got, "hi")
	}
}
