// Package memfd implements the shared-memory data carrier (C1): an
// anonymous, file-descriptor-backed memory segment used to pass large
// pixel and metadata payloads between host and helper without copying
// them through the bus itself. A segment is writable while the producer
// fills it, then sealed read-only before its FD is handed to the
// consumer, who maps it copy-on-write.
//
// Grounded on the reference implementation's BinaryData/BinaryDataRef
// (glycin-utils/src/dbus_types.rs), translated from memfd+memmap crate
// calls to the equivalent golang.org/x/sys/unix primitives — no library
// in the retrieved example pack wraps memfd_create/seal/mmap, so this is
// the one place C1 reaches past the teacher's own dependency set and
// promotes x/sys/unix (already present, indirectly, in the teacher's
// module graph) to a direct dependency.
package memfd

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/glycin-project/glycin/internal/glyerr"
)

// Segment is an owning handle to a memfd-backed memory region. Segment
// itself carries only the FD and whether it has been sealed; mapping is
// done on demand by MapWritable/MapReadOnly.
type Segment struct {
	fd     int
	size   int64
	sealed bool
}

// Create allocates a new, writable memfd-backed segment of the given
// size with sealing support enabled.
func Create(name string, size int64) (*Segment, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, glyerr.New(glyerr.KindMemfdError, fmt.Errorf("memfd_create: %w", err))
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return nil, glyerr.New(glyerr.KindMemfdError, fmt.Errorf("ftruncate to %d: %w", size, err))
	}
	return &Segment{fd: fd, size: size}, nil
}

// FromFD wraps an already-open FD (typically received over the bus via
// SCM_RIGHTS) as a Segment. The caller asserts the FD was produced by
// this package's Create+Seal on the sending side.
func FromFD(fd int) (*Segment, error) {
	st := unix.Stat_t{}
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, glyerr.New(glyerr.KindMemfdError, fmt.Errorf("fstat fd %d: %w", fd, err))
	}
	return &Segment{fd: fd, size: st.Size, sealed: true}, nil
}

// FD returns the raw file descriptor, for passing over the bus.
func (s *Segment) FD() int { return s.fd }

// Size returns the segment's byte length.
func (s *Segment) Size() int64 { return s.size }

// WriteRef is a writable mapping of a not-yet-sealed segment.
type WriteRef struct {
	data []byte
}

// Bytes exposes the writable mapping.
func (r *WriteRef) Bytes() []byte { return r.data }

// Close unmaps the writable view.
func (r *WriteRef) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// MapWritable maps the segment read-write for the producer to fill.
// Calling this after Seal is a usage error: no BinaryData may be
// constructed from an FD still writable by others, and a sealed segment
// cannot be mapped writable by definition.
func (s *Segment) MapWritable() (*WriteRef, error) {
	if s.sealed {
		return nil, glyerr.New(glyerr.KindMemfdError, fmt.Errorf("memfd: cannot map a sealed segment writable"))
	}
	data, err := unix.Mmap(s.fd, 0, int(s.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, glyerr.New(glyerr.KindMemfdError, fmt.Errorf("mmap writable: %w", err))
	}
	return &WriteRef{data: data}, nil
}

// Seal marks the segment immutable: no further writes, growth, or
// shrinkage are possible after this call returns successfully. This is
// the point at which the segment becomes safe to hand to another,
// untrusted process.
func (s *Segment) Seal() error {
	_, err := unix.FcntlInt(uintptr(s.fd), unix.F_ADD_SEALS,
		unix.F_SEAL_SEAL|unix.F_SEAL_WRITE|unix.F_SEAL_GROW|unix.F_SEAL_SHRINK)
	if err != nil {
		return glyerr.New(glyerr.KindMemfdError, fmt.Errorf("add seals: %w", err))
	}
	s.sealed = true
	return nil
}

// ReadRef is a read-only, copy-on-write mapping of a sealed segment.
type ReadRef struct {
	data []byte
}

// Bytes exposes the read-only mapping.
func (r *ReadRef) Bytes() []byte { return r.data }

// Close unmaps the read-only view.
func (r *ReadRef) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// MapReadOnly maps the segment read-only, copy-on-write. This is the
// only mapping mode a consumer should ever request: the segment may be
// sealed by a process the caller does not trust, and PROT_WRITE would
// either fail (seals enforced by the kernel) or, absent a seal bug,
// corrupt a region another process believes is immutable.
func (s *Segment) MapReadOnly() (*ReadRef, error) {
	data, err := unix.Mmap(s.fd, 0, int(s.size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, glyerr.New(glyerr.KindMemfdError, fmt.Errorf("mmap read-only: %w", err))
	}
	return &ReadRef{data: data}, nil
}

// Close releases the underlying file descriptor. It does not unmap any
// outstanding WriteRef/ReadRef — those must be closed independently.
func (s *Segment) Close() error {
	return unix.Close(s.fd)
}
