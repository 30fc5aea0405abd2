package apkparser

import (
	"archive/zip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/klauspost/compress/flate"
)

// ZipReader extracts named members from an APK. It mirrors archive/zip's
// Reader for the common case, but falls back to a raw local-header scan for
// archives Android's own runtime tolerates and archive/zip rejects —
// oversized or ambiguous central-directory records are not unheard of in the
// wild, since Android never validates them as strictly as the stdlib does.
type ZipReader struct {
	entries map[string]*zipEntry
	owned   *os.File
}

type zipSubEntry struct {
	offset int64
	method uint16
}

// zipEntry represents one member name in the archive. On the archive/zip
// path it holds the first central-directory record with that name; on the
// raw local-header scan path a crafted ZIP can list the same name more than
// once, and subEntries keeps every copy found.
type zipEntry struct {
	name string

	backing  io.ReaderAt
	zipEntry *zip.File

	subEntries []zipSubEntry
}

// open returns a reader for one copy of this entry: the archive/zip record
// if there is one, otherwise subEntries[0], which is the last physical copy
// found by the raw scan. Other copies are never opened.
func (e *zipEntry) open() (io.ReadCloser, error) {
	if e.zipEntry != nil {
		return e.zipEntry.Open()
	}
	if len(e.subEntries) == 0 {
		return nil, fmt.Errorf("apkparser: %q has no readable entry", e.name)
	}
	sub := e.subEntries[0]

	sr := io.NewSectionReader(e.backing, sub.offset, 1<<62)
	if sub.method == zip.Store {
		return io.NopCloser(sr), nil
	}
	return flate.NewReader(sr), nil
}

// ReadAll reads a named entry's full (decompressed) contents, up to limit
// bytes.
func (zr *ZipReader) ReadAll(name string, limit int64) ([]byte, error) {
	e := zr.entries[path.Clean(name)]
	if e == nil {
		return nil, fmt.Errorf("apkparser: entry %q not found", name)
	}
	rc, err := e.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, limit))
}

// Has reports whether a named entry exists.
func (zr *ZipReader) Has(name string) bool {
	_, ok := zr.entries[path.Clean(name)]
	return ok
}

// Close releases the archive's underlying file, if ZipReader opened it.
func (zr *ZipReader) Close() error {
	if zr.owned == nil {
		return nil
	}
	err := zr.owned.Close()
	zr.owned = nil
	return err
}

type readAtSeeker struct {
	io.ReadSeeker
}

func (s *readAtSeeker) ReadAt(b []byte, off int64) (int, error) {
	if ra, ok := s.ReadSeeker.(io.ReaderAt); ok {
		return ra.ReadAt(b, off)
	}
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := s.Read(b)
	if _, serr := s.Seek(cur, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	return n, err
}

// OpenZip opens path as an APK/ZIP archive.
func OpenZip(path string) (*ZipReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := OpenZipReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	zr.owned = f
	return zr, nil
}

// OpenZipReader opens an already-open archive. It may seek r to arbitrary
// positions.
func OpenZipReader(r io.ReadSeeker) (*ZipReader, error) {
	zr := &ZipReader{entries: make(map[string]*zipEntry)}
	backing := &readAtSeeker{r}

	if zinfo, err := tryStdlibZip(backing); err == nil {
		for _, zf := range zinfo.File {
			// Android treats any method other than Store as Deflate, with
			// one carve-out: an unknown method on resources.arsc or
			// AndroidManifest.xml is treated as Store. A Store or Deflate
			// method byte is kept as it is.
			if zf.Method != zip.Store && zf.Method != zip.Deflate {
				switch zf.Name {
				case "AndroidManifest.xml", "resources.arsc":
					zf.Method = zip.Store
					zf.CompressedSize64 = zf.UncompressedSize64
				default:
					zf.Method = zip.Deflate
				}
			}

			cl := path.Clean(zf.Name)
			if zr.entries[cl] == nil {
				zr.entries[cl] = &zipEntry{name: cl, zipEntry: zf}
			}
		}
		return zr, nil
	}

	if _, err := backing.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if err := scanRawLocalHeaders(backing, zr); err != nil {
		return nil, err
	}
	return zr, nil
}

func tryStdlibZip(f *readAtSeeker) (r *zip.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
			r = nil
		}
	}()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	r, err = zip.NewReader(f, size)
	if err != nil {
		return nil, err
	}
	r.RegisterDecompressor(zip.Deflate, newPooledFlateReader)
	return r, nil
}

// scanRawLocalHeaders walks the file byte-by-byte looking for ZIP local file
// header magic, reconstructing entries from that instead of the (possibly
// corrupt) central directory. Entries are prepended per name so that, as in
// a real ZIP reader, the last physical copy of a duplicated name wins.
func scanRawLocalHeaders(f io.ReadSeeker, zr *ZipReader) error {
	backing := &readAtSeeker{f}

	for {
		off, err := findLocalHeaderMagic(f)
		if err != nil {
			return err
		}
		if off == -1 {
			return nil
		}

		var method, nameLen, extraLen uint16
		if _, err := f.Seek(off+8, io.SeekStart); err != nil {
			return err
		}
		if err := binary.Read(f, binary.LittleEndian, &method); err != nil {
			return err
		}
		if _, err := f.Seek(off+26, io.SeekStart); err != nil {
			return err
		}
		if err := binary.Read(f, binary.LittleEndian, &nameLen); err != nil {
			return err
		}
		if err := binary.Read(f, binary.LittleEndian, &extraLen); err != nil {
			return err
		}

		nameBuf := make([]byte, nameLen)
		if _, err := backing.ReadAt(nameBuf, off+30); err != nil {
			return err
		}

		name := path.Clean(string(nameBuf))
		dataOff := off + 30 + int64(nameLen) + int64(extraLen)

		e := zr.entries[name]
		if e == nil {
			e = &zipEntry{name: name, backing: backing}
			zr.entries[name] = e
		}
		e.subEntries = append([]zipSubEntry{{offset: dataOff, method: method}}, e.subEntries...)

		if _, err := f.Seek(off+4, io.SeekStart); err != nil {
			return err
		}
	}
}

func findLocalHeaderMagic(f io.ReadSeeker) (int64, error) {
	start, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1, err
	}

	magic := [4]byte{0x50, 0x4B, 0x03, 0x04}
	buf := make([]byte, 64*1024)
	matched := 0
	offset := start

	for {
		n, rerr := f.Read(buf)
		if rerr != nil && rerr != io.EOF {
			return -1, rerr
		}
		if n == 0 {
			return -1, nil
		}

		for i := 0; i < n; i++ {
			if buf[i] == magic[matched] {
				matched++
				if matched == len(magic) {
					found := offset + int64(i) - int64(len(magic)-1)
					if _, err := f.Seek(found, io.SeekStart); err != nil {
						return -1, err
					}
					return found, nil
				}
			} else {
				matched = 0
			}
		}
		offset += int64(n)
	}
}

// flateReaderPool recycles flate.Reader state across entries, matching the
// teacher's zipreader.go: every deflated member opened through the
// archive/zip path exercises it. The raw local-header scan path opens an
// unpooled flate reader instead.
var flateReaderPool sync.Pool

func newPooledFlateReader(r io.Reader) io.ReadCloser {
	if fr, ok := flateReaderPool.Get().(io.ReadCloser); ok {
		fr.(flate.Resetter).Reset(r, nil)
		return &pooledFlateReader{fr: fr}
	}
	return &pooledFlateReader{fr: flate.NewReader(r)}
}

type pooledFlateReader struct {
	mu sync.Mutex
	fr io.ReadCloser
}

func (r *pooledFlateReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fr == nil {
		return 0, errors.New("apkparser: read after close")
	}
	return r.fr.Read(p)
}

func (r *pooledFlateReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fr == nil {
		return nil
	}
	err := r.fr.Close()
	flateReaderPool.Put(r.fr)
	r.fr = nil
	return err
}
