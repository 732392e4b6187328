package ngramdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/golang/snappy"
)

// Save writes the database in the STRNGDB1 container format: a fixed
// header followed by the hsh, total, typ, and counts arrays. hsh/total
// are stored raw so Load can mmap them directly for binary search;
// typ/counts are optionally snappy-compressed since binary search never
// reads them, and Load decodes them once into memory.
func (db *DB) Save(path string, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ngramdb: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	n := db.Len()

	var flags byte
	if compress {
		flags |= flagCompressed
	}

	if _, err := w.WriteString(magic); err != nil {
		return fmt.Errorf("ngramdb: write header: %w", err)
	}
	header := make([]byte, headerLen-len(magic))
	header[0] = formatVers
	header[1] = flags
	binary.LittleEndian.PutUint32(header[2:6], uint32(db.Size))
	binary.LittleEndian.PutUint32(header[6:10], uint32(db.K))
	binary.LittleEndian.PutUint32(header[10:14], uint32(n))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("ngramdb: write header: %w", err)
	}

	for i := 0; i < n; i++ {
		d := db.b.digestAt(i)
		if _, err := w.Write(d[:]); err != nil {
			return fmt.Errorf("ngramdb: write hsh: %w", err)
		}
	}

	totalBuf := make([]byte, 4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(totalBuf, db.b.totalAt(i))
		if _, err := w.Write(totalBuf); err != nil {
			return fmt.Errorf("ngramdb: write total: %w", err)
		}
	}

	typFlat := make([]byte, n*db.K*4)
	countsFlat := make([]byte, n*db.K*4)
	for i := 0; i < n; i++ {
		writeRow(typFlat, i, db.K, db.b.typesAt(i))
		writeRow(countsFlat, i, db.K, db.b.countsAt(i))
	}

	if err := writeBlock(w, typFlat, compress); err != nil {
		return fmt.Errorf("ngramdb: write typ: %w", err)
	}
	if err := writeBlock(w, countsFlat, compress); err != nil {
		return fmt.Errorf("ngramdb: write counts: %w", err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("ngramdb: flush %s: %w", path, err)
	}
	return nil
}

func writeRow(flat []byte, i, k int, row []uint32) {
	for j := 0; j < k; j++ {
		var v uint32
		if j < len(row) {
			v = row[j]
		}
		binary.LittleEndian.PutUint32(flat[(i*k+j)*4:], v)
	}
}

func writeBlock(w *bufio.Writer, raw []byte, compress bool) error {
	payload := raw
	if compress {
		payload = snappy.Encode(nil, raw)
	}
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(payload)))
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
