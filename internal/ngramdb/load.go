package ngramdb

import (
	"encoding/binary"
	"fmt"
	"os"

	mmap "github.com/blevesearch/mmap-go"
	"github.com/golang/snappy"

	"github.com/rafael/stride/internal/ngram"
)

// mmapBackend backs the digest and total arrays directly by the mapped
// file pages (spec §5: "the implementer should mmap the database
// arrays to share pages across workers"). typ/counts are decoded once
// into ordinary heap slices since they are small relative to hsh/total
// and only ever touched after a successful lookup.
type mmapBackend struct {
	f   *os.File
	mm  mmap.MMap
	n   int
	k   int
	hsh []byte // n*12, a view into mm
	tot []byte // n*4, a view into mm

	types  []uint32 // n*k, row-major, decompressed
	counts []uint32 // n*k, row-major, decompressed
}

func (b *mmapBackend) len() int { return b.n }

func (b *mmapBackend) digestAt(i int) ngram.Digest {
	var d ngram.Digest
	copy(d[:], b.hsh[i*ngram.DigestSize:(i+1)*ngram.DigestSize])
	return d
}

func (b *mmapBackend) totalAt(i int) uint32 {
	return binary.LittleEndian.Uint32(b.tot[i*4:])
}

func (b *mmapBackend) typesAt(i int) []uint32 {
	return b.types[i*b.k : (i+1)*b.k]
}

func (b *mmapBackend) countsAt(i int) []uint32 {
	return b.counts[i*b.k : (i+1)*b.k]
}

func (b *mmapBackend) Close() error {
	if b.mm != nil {
		if err := b.mm.Unmap(); err != nil {
			return fmt.Errorf("ngramdb: unmap: %w", err)
		}
	}
	return b.f.Close()
}

// Load opens a database previously written by Save, mmap-backing the
// hsh and total arrays read-only.
func Load(path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ngramdb: open %s: %w", path, err)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ngramdb: mmap %s: %w", path, err)
	}

	db, err := parse(path, mm, f)
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, err
	}
	// Mmap-backed databases repeat page touches on hot digests across an
	// eval run; an in-process LRU absorbs that where a Build()-constructed
	// in-memory DB wouldn't need it.
	db.EnableCache(0)
	return db, nil
}

func parse(path string, mm mmap.MMap, f *os.File) (*DB, error) {
	if len(mm) < headerLen || string(mm[:len(magic)]) != magic {
		return nil, fmt.Errorf("ngramdb: %s: not a STRNGDB1 file", path)
	}
	off := len(magic)
	vers := mm[off]
	off++
	flags := mm[off]
	off++
	size := int(binary.LittleEndian.Uint32(mm[off:]))
	off += 4
	k := int(binary.LittleEndian.Uint32(mm[off:]))
	off += 4
	n := int(binary.LittleEndian.Uint32(mm[off:]))
	off += 4

	if vers != formatVers {
		return nil, fmt.Errorf("ngramdb: %s: unsupported format version %d", path, vers)
	}

	hshEnd := off + n*ngram.DigestSize
	hsh := []byte(mm[off:hshEnd])

	totEnd := hshEnd + n*4
	tot := []byte(mm[hshEnd:totEnd])

	compressed := flags&flagCompressed != 0

	typFlat, next, err := readBlock(mm, totEnd, n*k*4, compressed)
	if err != nil {
		return nil, fmt.Errorf("ngramdb: %s: typ block: %w", path, err)
	}
	countsFlat, _, err := readBlock(mm, next, n*k*4, compressed)
	if err != nil {
		return nil, fmt.Errorf("ngramdb: %s: counts block: %w", path, err)
	}

	b := &mmapBackend{
		f: f, mm: mm, n: n, k: k,
		hsh: hsh, tot: tot,
		types:  decodeU32(typFlat),
		counts: decodeU32(countsFlat),
	}
	return &DB{Size: size, K: k, b: b}, nil
}

func readBlock(mm mmap.MMap, off, decodedLen int, compressed bool) ([]byte, int, error) {
	blockLen := int(binary.LittleEndian.Uint32(mm[off:]))
	off += 4
	payload := mm[off : off+blockLen]
	off += blockLen

	if !compressed {
		return payload, off, nil
	}
	raw, err := snappy.Decode(make([]byte, 0, decodedLen), payload)
	if err != nil {
		return nil, 0, err
	}
	return raw, off, nil
}

func decodeU32(flat []byte) []uint32 {
	out := make([]uint32, len(flat)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(flat[i*4:])
	}
	return out
}
