package pqueue

import (
	"github.com/tailored-agentic-units/spillq/storage"
)

// runWriter streams sorted records into a fresh extent one block at a time.
type runWriter struct {
	q       *Queue
	ext     *storage.Extent
	buf     []byte
	n       int
	records uint64
}

func (q *Queue) newRunWriter() (*runWriter, error) {
	ext, err := q.storage.CreateExtent("pq-" + q.id)
	if err != nil {
		return nil, err
	}
	return &runWriter{q: q, ext: ext, buf: make([]byte, q.block)}, nil
}

func (w *runWriter) write(priority float64, payload []byte) error {
	w.q.codec.Encode(w.buf[w.n:], priority, payload)
	return w.advance()
}

func (w *runWriter) writeRecord(rec []byte) error {
	copy(w.buf[w.n:], rec)
	return w.advance()
}

func (w *runWriter) advance() error {
	w.n += w.q.codec.RecordSize()
	w.records++
	if w.n == len(w.buf) {
		return w.flush()
	}
	return nil
}

func (w *runWriter) flush() error {
	if w.n == 0 {
		return nil
	}
	if _, err := w.ext.Append(w.buf[:w.n]); err != nil {
		return err
	}
	w.n = 0
	return nil
}

// finish flushes the tail and loads the first block of the new run.
func (w *runWriter) finish() (*run, error) {
	if err := w.flush(); err != nil {
		w.abort()
		return nil, err
	}

	buf := make([]byte, w.q.block)
	n, err := readBlock(w.ext, buf, 0)
	if err != nil {
		w.abort()
		return nil, err
	}

	return &run{
		ext:       w.ext,
		next:      int64(n),
		buf:       buf[:n],
		remaining: w.records,
	}, nil
}

func (w *runWriter) abort() {
	w.ext.Remove()
}
