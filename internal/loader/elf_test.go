package loader

import (
	"debug/elf"
	"testing"
)

func TestSegmentFlagHelpers(t *testing.T) {
	s := Segment{Flags: elf.PF_X | elf.PF_R}
	if !s.IsExecutable() || !s.IsReadable() || s.IsWritable() {
		t.Fatalf("Segment flag helpers disagree with PF_X|PF_R: exec=%v read=%v write=%v",
			s.IsExecutable(), s.IsReadable(), s.IsWritable())
	}
	w := Segment{Flags: elf.PF_W | elf.PF_R}
	if w.IsExecutable() || !w.IsWritable() || !w.IsReadable() {
		t.Fatalf("Segment flag helpers disagree with PF_W|PF_R")
	}
}

func TestLeUint32(t *testing.T) {
	b := []byte{0x04, 0x03, 0x02, 0x01}
	if got := leUint32(b); got != 0x01020304 {
		t.Fatalf("leUint32() = %#x, want 0x01020304", got)
	}
}

func synthImage() *Image {
	return &Image{
		Base: 0x08040000,
		Segments: []Segment{
			{VAddr: 0x08040000, Size: 16, Data: make([]byte, 16)},
		},
		Symbols: []Symbol{
			{Name: "main", Value: 0x08040100},
			{Name: "strlen", Value: 0x08040200},
			{Name: "__strlen_sse2", Value: 0x08040300},
		},
		Imports: map[string]uint64{},
	}
}

func TestReadWriteWordRoundtrip(t *testing.T) {
	img := synthImage()
	addr := img.Segments[0].VAddr + 4
	img.writeWord(addr, 0xdeadbeef)
	if got := img.readWord(addr); got != 0xdeadbeef {
		t.Fatalf("readWord() = %#x, want 0xdeadbeef", got)
	}
}

func TestReadWordOutOfRange(t *testing.T) {
	img := synthImage()
	if got := img.readWord(0xffffffff); got != 0 {
		t.Fatalf("readWord() out of any segment = %#x, want 0", got)
	}
}

func TestFindSymbol(t *testing.T) {
	img := synthImage()
	sym, ok := img.FindSymbol("strlen")
	if !ok || sym.Value != 0x08040200 {
		t.Fatalf("FindSymbol(strlen) = (%+v,%v), want value 0x08040200", sym, ok)
	}
	if _, ok := img.FindSymbol("nonexistent"); ok {
		t.Fatalf("FindSymbol() found a symbol that was never registered")
	}
}

func TestFindSymbolsBySubstring(t *testing.T) {
	img := synthImage()
	got := img.FindSymbolsBySubstring("strlen")
	if len(got) != 2 {
		t.Fatalf("FindSymbolsBySubstring(strlen) = %v, want 2 matches", got)
	}
}

func TestProbeSegments(t *testing.T) {
	img := synthImage()
	segs := img.ProbeSegments()
	if len(segs) != 1 || segs[0].Addr != img.Segments[0].VAddr {
		t.Fatalf("ProbeSegments() = %+v, want one segment at %#x", segs, img.Segments[0].VAddr)
	}
}
