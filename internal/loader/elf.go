// Package loader loads an x86 (32-bit) ELF binary into the shape the rest
// of funcid needs: a base address, a symbol table, and the segments the
// probe maps into its emulator. Adapted from the teacher's ARM64 ELF
// loader (internal/emulator/elf.go in the source repo this was grounded
// on) — same overall shape (LoadELF/LoadELFAt, PT_LOAD segment mapping,
// PLT stub recovery, relocation application, symbol lookup helpers) —
// retargeted to the x86 relocation types and PLT layout, and with the
// single-privileged-entry-point heuristics (FindEntryPoint's Cocos2d-x
// JNI_OnLoad search) dropped: funcid identifies every non-syscall routine
// in the binary, not one designated entry point, so the loader's job ends
// at "here is the image and its symbols," not "here is where to start."
package loader

import (
	"debug/elf"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/archscan/funcid/internal/probe"
)

// LoadBase is used for ET_DYN (PIE/shared-object) images, which carry no
// absolute load address of their own.
const LoadBase = 0x08040000

// Segment is one PT_LOAD mapping.
type Segment struct {
	VAddr uint64
	Size  uint64
	MemSz uint64
	Flags elf.ProgFlag
	Data  []byte
}

func (s Segment) IsExecutable() bool { return s.Flags&elf.PF_X != 0 }
func (s Segment) IsWritable() bool   { return s.Flags&elf.PF_W != 0 }
func (s Segment) IsReadable() bool   { return s.Flags&elf.PF_R != 0 }

// Symbol is one recovered symbol, address already relocated to this
// image's base.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
	Info  elf.SymType
}

// Image is the loaded binary: base address, symbol table, and segments,
// ready for both CFG recovery (elsewhere) and probing (internal/probe).
type Image struct {
	Path     string
	Machine  elf.Machine
	Entry    uint64
	Base     uint64
	End      uint64
	Symbols  []Symbol
	Imports  map[string]uint64 // imported symbol name -> PLT stub address
	Segments []Segment
}

// Load reads path and produces an Image, rebasing a PIE/shared-object
// image at LoadBase.
func Load(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	if f.Machine != elf.EM_386 {
		return nil, fmt.Errorf("loader: %s: unsupported machine %s (want EM_386)", path, f.Machine)
	}

	base := uint64(0)
	if f.Type == elf.ET_DYN {
		base = LoadBase
	}

	img := &Image{
		Path:    path,
		Machine: f.Machine,
		Entry:   uint64(f.Entry) + base,
		Base:    base,
		Imports: make(map[string]uint64),
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil && prog.Filesz > 0 {
			return nil, fmt.Errorf("loader: read segment at 0x%x: %w", prog.Vaddr, err)
		}
		seg := Segment{
			VAddr: prog.Vaddr + base,
			Size:  prog.Filesz,
			MemSz: prog.Memsz,
			Flags: prog.Flags,
			Data:  data,
		}
		if seg.MemSz > seg.Size {
			// .bss tail: zero-fill out to MemSz so reads past the file
			// image see zero instead of whatever LoadImage would leave
			// unmapped.
			seg.Data = append(seg.Data, make([]byte, seg.MemSz-seg.Size)...)
		}
		img.Segments = append(img.Segments, seg)

		end := seg.VAddr + seg.MemSz
		if end > img.End {
			img.End = end
		}
	}

	if err := img.loadSymbols(f, base); err != nil {
		return nil, err
	}
	if err := img.applyRelocations(f, base); err != nil {
		return nil, err
	}
	img.loadPLT(f, base)

	sort.Slice(img.Symbols, func(i, j int) bool { return img.Symbols[i].Value < img.Symbols[j].Value })
	return img, nil
}

func (img *Image) loadSymbols(f *elf.File, base uint64) error {
	add := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Name == "" || elf.ST_TYPE(s.Info) != elf.STT_FUNC {
				continue
			}
			name := s.Name
			if i := strings.IndexByte(name, '@'); i >= 0 {
				name = name[:i] // strip symbol-versioning suffix (name@GLIBC_2.0)
			}
			img.Symbols = append(img.Symbols, Symbol{
				Name:  name,
				Value: s.Value + base,
				Size:  s.Size,
				Info:  elf.ST_TYPE(s.Info),
			})
		}
	}
	if syms, err := f.Symbols(); err == nil {
		add(syms)
	}
	if syms, err := f.DynamicSymbols(); err == nil {
		add(syms)
	}
	return nil
}

// applyRelocations resolves the x86 relocation types a PIE image needs at
// load time (RELATIVE, GLOB_DAT, JMP_SLOT, 32) — the ARM64 loader's AARCH64_RELATIVE
// /GLOB_DAT/JUMP_SLOT/ABS64 handling, carried over under the x86 numbering.
func (img *Image) applyRelocations(f *elf.File, base uint64) error {
	if base == 0 {
		return nil // not a PIE image; no rebasing relocations to apply
	}
	dynSyms, _ := f.DynamicSymbols()

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_REL {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}
		const relEntSize = 8 // Elf32_Rel: r_offset, r_info
		for off := 0; off+relEntSize <= len(data); off += relEntSize {
			rOffset := leUint32(data[off:])
			rInfo := leUint32(data[off+4:])
			rType := rInfo & 0xff
			symIdx := rInfo >> 8

			addr := uint64(rOffset) + base
			switch elf.R_386(rType) {
			case elf.R_386_RELATIVE:
				orig := img.readWord(addr)
				img.writeWord(addr, orig+uint32(base))
			case elf.R_386_32, elf.R_386_GLOB_DAT, elf.R_386_JMP_SLOT:
				if int(symIdx) >= len(dynSyms) {
					continue
				}
				target := uint32(dynSyms[symIdx].Value) + uint32(base)
				img.writeWord(addr, target)
			}
		}
	}
	return nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (img *Image) readWord(addr uint64) uint32 {
	for i := range img.Segments {
		s := &img.Segments[i]
		if addr >= s.VAddr && addr+4 <= s.VAddr+uint64(len(s.Data)) {
			off := addr - s.VAddr
			return leUint32(s.Data[off:])
		}
	}
	return 0
}

func (img *Image) writeWord(addr uint64, v uint32) {
	for i := range img.Segments {
		s := &img.Segments[i]
		if addr >= s.VAddr && addr+4 <= s.VAddr+uint64(len(s.Data)) {
			off := addr - s.VAddr
			s.Data[off] = byte(v)
			s.Data[off+1] = byte(v >> 8)
			s.Data[off+2] = byte(v >> 16)
			s.Data[off+3] = byte(v >> 24)
			return
		}
	}
}

// loadPLT recovers the symbol-name -> import-stub-address mapping from
// .rel.plt, the x86 analogue of the ARM64 loader's addPLTSymbols. The
// standard ia32 ABI .plt layout is a 16-byte header (PLT0) followed by one
// 16-byte entry per imported function, in the same order as .rel.plt.
func (img *Image) loadPLT(f *elf.File, base uint64) {
	pltSec := f.Section(".plt")
	relPLT := f.Section(".rel.plt")
	if pltSec == nil || relPLT == nil {
		return
	}
	dynSyms, err := f.DynamicSymbols()
	if err != nil {
		return
	}
	data, err := relPLT.Data()
	if err != nil {
		return
	}

	const pltHeaderSize = 16
	const pltEntrySize = 16
	const relEntSize = 8

	n := len(data) / relEntSize
	for i := 0; i < n; i++ {
		off := i * relEntSize
		rInfo := leUint32(data[off+4:])
		symIdx := rInfo >> 8
		if int(symIdx) >= len(dynSyms) {
			continue
		}
		stubAddr := pltSec.Addr + base + uint64(pltHeaderSize+i*pltEntrySize)
		img.Imports[dynSyms[symIdx].Name] = stubAddr
	}
}

// FindSymbol returns the first symbol with the given name, if any.
func (img *Image) FindSymbol(name string) (Symbol, bool) {
	for _, s := range img.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// FindSymbolsBySubstring returns every symbol whose name contains substr.
func (img *Image) FindSymbolsBySubstring(substr string) []Symbol {
	var out []Symbol
	for _, s := range img.Symbols {
		if strings.Contains(s.Name, substr) {
			out = append(out, s)
		}
	}
	return out
}

// ProbeSegments converts the loaded image into the shape
// internal/probe.Emulator.LoadImage expects.
func (img *Image) ProbeSegments() []probe.ImageSegment {
	segs := make([]probe.ImageSegment, len(img.Segments))
	for i, s := range img.Segments {
		segs[i] = probe.ImageSegment{Addr: s.VAddr, Data: s.Data}
	}
	return segs
}

// ReadFile is a convenience check a caller can run to fail fast with a
// clear message before handing a path to Load; it only stats the path.
func ReadFile(path string) error {
	_, err := os.Stat(path)
	return err
}
