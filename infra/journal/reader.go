package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"io"
	"os"
)

// Reader iterates a journal file from the start, in append order.
// A torn or corrupt tail ends the iteration cleanly; it is the crash
// remnant of a write that never completed, not committed data.
type Reader struct {
	file *os.File
	r    *bufio.Reader
	rec  *Record
	err  error
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, r: bufio.NewReader(f)}, nil
}

func (r *Reader) Next() bool {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return false
	}

	payloadLen := binary.LittleEndian.Uint32(header[:4])
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return false
	}
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(header[4:8]) {
		return false
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		r.err = err
		return false
	}
	r.rec = &rec
	return true
}

func (r *Reader) Record() *Record {
	return r.rec
}

// Err reports a decode failure on a frame whose CRC checked out. That is
// real corruption, not a torn tail, and recovery must treat it as fatal.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Close() error {
	return r.file.Close()
}
