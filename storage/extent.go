package storage

import (
	"errors"
	"fmt"
	"os"
)

// Extent is an append-only spill file owned by exactly one store.
// An Extent is not safe for concurrent use; its owner serializes access.
type Extent struct {
	manager *Manager
	file    *os.File
	path    string
	size    int64
}

// Path returns the location of the backing file.
func (e *Extent) Path() string {
	return e.path
}

// Size returns the number of bytes written to the extent.
func (e *Extent) Size() int64 {
	return e.size
}

// Append writes p at the end of the extent and returns the offset it was
// written at. A failed write leaves the extent at its previous size.
func (e *Extent) Append(p []byte) (int64, error) {
	if e.file == nil {
		return 0, fmt.Errorf("%w: append to removed extent", ErrStorage)
	}

	off := e.size
	n, err := e.file.WriteAt(p, off)
	if err != nil {
		err = fmt.Errorf("%w: append %s: %v", ErrStorage, e.path, err)
		if n > 0 {
			if terr := e.file.Truncate(off); terr != nil {
				err = errors.Join(err, fmt.Errorf("%w: roll back %s to %d bytes: %v", ErrStorage, e.path, off, terr))
			}
		}
		return 0, err
	}

	e.size += int64(n)
	e.manager.spilled.Add(int64(n))
	return off, nil
}

// ReadAt fills p from offset off. Reading past the written size fails.
func (e *Extent) ReadAt(p []byte, off int64) error {
	if e.file == nil {
		return fmt.Errorf("%w: read from removed extent", ErrStorage)
	}
	if off < 0 || off+int64(len(p)) > e.size {
		return fmt.Errorf("%w: read %s: range [%d, %d) outside extent of %d bytes",
			ErrStorage, e.path, off, off+int64(len(p)), e.size)
	}

	if _, err := e.file.ReadAt(p, off); err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrStorage, e.path, err)
	}
	return nil
}

// Reset discards the extent's contents, keeping the file for reuse.
func (e *Extent) Reset() error {
	if e.file == nil {
		return fmt.Errorf("%w: reset removed extent", ErrStorage)
	}
	if err := e.file.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncate %s: %v", ErrStorage, e.path, err)
	}

	e.manager.spilled.Add(-e.size)
	e.size = 0
	return nil
}

// Remove closes and deletes the backing file. Removing twice is a no-op.
func (e *Extent) Remove() error {
	if e.file == nil {
		return nil
	}

	closeErr := e.file.Close()
	removeErr := os.Remove(e.path)

	e.file = nil
	e.manager.spilled.Add(-e.size)
	e.size = 0
	e.manager.forget(e)

	if closeErr != nil {
		return fmt.Errorf("%w: close %s: %v", ErrStorage, e.path, closeErr)
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("%w: remove %s: %v", ErrStorage, e.path, removeErr)
	}
	return nil
}
