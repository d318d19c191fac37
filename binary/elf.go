package binary

import (
	"debug/elf"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/riscv-trace/etrace/insn"
)

// ELF is an Oracle backed by the PT_LOAD|PF_X segments of a memory-mapped
// ELF image, decoding instructions on demand via insn.Decode. It caches
// the most recently used segment, since instruction fetch exhibits strong
// address locality.
type ELF struct {
	f        *os.File
	mapping  mmap.MMap
	segments []elfSegment
	lastSeg  int
}

type elfSegment struct {
	vaddr uint64
	data  []byte
}

// OpenELF memory-maps path and indexes its executable segments.
func OpenELF(path string) (*ELF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	ef, err := elf.NewFile(newReaderAt(m))
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	defer ef.Close()

	e := &ELF{f: f, mapping: m}
	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD || prog.Flags&elf.PF_X == 0 {
			continue
		}
		if prog.Off+prog.Filesz > uint64(len(m)) {
			continue
		}
		e.segments = append(e.segments, elfSegment{
			vaddr: prog.Vaddr,
			data:  m[prog.Off : prog.Off+prog.Filesz],
		})
	}
	return e, nil
}

// Close releases the underlying mapping and file handle.
func (e *ELF) Close() error {
	if err := e.mapping.Unmap(); err != nil {
		e.f.Close()
		return err
	}
	return e.f.Close()
}

// GetInsn implements Oracle.
func (e *ELF) GetInsn(addr uint64) (insn.Instruction, error) {
	if len(e.segments) == 0 {
		return insn.Instruction{}, ErrMiss
	}
	if seg, ok := e.tryDecode(e.lastSeg, addr); ok {
		return seg()
	}
	for i := range e.segments {
		if i == e.lastSeg {
			continue
		}
		if seg, ok := e.tryDecode(i, addr); ok {
			e.lastSeg = i
			return seg()
		}
	}
	return insn.Instruction{}, ErrMiss
}

func (e *ELF) tryDecode(idx int, addr uint64) (func() (insn.Instruction, error), bool) {
	seg := e.segments[idx]
	if addr < seg.vaddr || addr >= seg.vaddr+uint64(len(seg.data)) {
		return nil, false
	}
	off := addr - seg.vaddr
	return func() (insn.Instruction, error) {
		ins, err := insn.Decode(seg.data[off:])
		if err != nil {
			return insn.Instruction{}, &NoInstructionError{Addr: addr}
		}
		return ins, nil
	}, true
}

// readerAt adapts a byte slice to io.ReaderAt for elf.NewFile.
type readerAt struct {
	b []byte
}

func newReaderAt(b []byte) *readerAt { return &readerAt{b: b} }

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.b)) {
		return 0, os.ErrInvalid
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
