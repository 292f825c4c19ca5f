package trace

import "testing"

func TestTagsHasAndAdd(t *testing.T) {
	var tags Tags
	if tags.Has(Match) {
		t.Fatalf("empty Tags reports Has(Match) = true")
	}
	tags.Add(Match)
	tags.Add(Match) // duplicate, must not append twice
	tags.Add(Special)
	if len(tags) != 2 {
		t.Fatalf("Tags = %v, want [match special]", tags)
	}
	if !tags.Has(Match) || !tags.Has(Special) {
		t.Fatalf("Tags.Has() missed an added tag: %v", tags)
	}
}

func TestTagsStringsAndRaw(t *testing.T) {
	tags := Tags{Match, Special}
	strs := tags.Strings()
	if strs[0] != "#match" || strs[1] != "#special" {
		t.Fatalf("Strings() = %v, want [#match #special]", strs)
	}
	raw := tags.Raw()
	if raw[0] != "match" || raw[1] != "special" {
		t.Fatalf("Raw() = %v, want [match special]", raw)
	}
}

func TestTagsPrimary(t *testing.T) {
	if got := (Tags{}).Primary(); got != "" {
		t.Fatalf("Primary() on empty Tags = %q, want empty", got)
	}
	if got := (Tags{NoMatch, Match}).Primary(); got != NoMatch {
		t.Fatalf("Primary() = %q, want %q", got, NoMatch)
	}
}

func TestAnnotations(t *testing.T) {
	a := make(Annotations)
	if a.Has("candidate") {
		t.Fatalf("empty Annotations reports Has() = true")
	}
	a.Set("candidate", "strlen")
	if !a.Has("candidate") || a.Get("candidate") != "strlen" {
		t.Fatalf("Annotations roundtrip failed: %v", a)
	}
}

func TestEventAddTagAndAnnotate(t *testing.T) {
	e := NewEvent(0x1000, string(Reconstruct), "strlen", "frame_size=16")
	if e.PrimaryTag() != "#reconstruct" {
		t.Fatalf("PrimaryTag() = %q, want #reconstruct", e.PrimaryTag())
	}
	e.AddTag(Preamble)
	if !e.Tags.Has(Preamble) {
		t.Fatalf("AddTag() did not add the preamble tag")
	}
	e.Annotate("frame_size", "16")
	if e.Annotations.Get("frame_size") != "16" {
		t.Fatalf("Annotate() did not set the annotation")
	}
}

func TestDefaultEnricherTagsSpecialMatches(t *testing.T) {
	e := NewEvent(0x1000, string(Match), "free", "candidate=free")
	DefaultEnricher(e)
	if !e.Tags.Has(Special) {
		t.Fatalf("DefaultEnricher did not tag a free match as #special")
	}

	e2 := NewEvent(0x1000, string(Match), "strlen", "candidate=strlen")
	DefaultEnricher(e2)
	if e2.Tags.Has(Special) {
		t.Fatalf("DefaultEnricher tagged a non-special match as #special")
	}
}

func TestDefaultEnricherTagsMultistateAndPreamble(t *testing.T) {
	probeEvt := NewEvent(0x1000, string(Probe), "strlen", "multistate")
	DefaultEnricher(probeEvt)
	if !probeEvt.Tags.Has(Multistate) {
		t.Fatalf("DefaultEnricher did not tag a multistate probe event")
	}

	reconEvt := NewEvent(0x1000, string(Reconstruct), "strlen", "preamble_not_found")
	DefaultEnricher(reconEvt)
	if !reconEvt.Tags.Has(Preamble) {
		t.Fatalf("DefaultEnricher did not tag a preamble-failure reconstruct event")
	}
}

func TestDefaultEnricherNoOpOnEmptyTags(t *testing.T) {
	e := &Event{}
	DefaultEnricher(e) // must not panic on an event with no tags
	if len(e.Tags) != 0 {
		t.Fatalf("DefaultEnricher added tags to an event that started with none: %v", e.Tags)
	}
}
