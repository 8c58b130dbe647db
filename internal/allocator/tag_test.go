package allocator

import "testing"

func TestNewTagDefaultsToIntentFrame(t *testing.T) {
	tag := NewTag("physics")

	if tag.Name() != "physics" {
		t.Fatalf("Name() = %q, want physics", tag.Name())
	}

	if tag.Intent() != IntentFrame {
		t.Fatalf("Intent() = %v, want IntentFrame", tag.Intent())
	}
}

func TestNewTagWithIntent(t *testing.T) {
	tag := NewTagWithIntent("assets", IntentHeap)

	if tag.Intent() != IntentHeap {
		t.Fatalf("Intent() = %v, want IntentHeap", tag.Intent())
	}
}

func TestPredefinedTags(t *testing.T) {
	cases := []struct {
		tag  AllocationTag
		want string
	}{
		{TagRendering, "rendering"},
		{TagPhysics, "physics"},
		{TagAudio, "audio"},
		{TagScripting, "scripting"},
		{TagAssets, "assets"},
		{TagUI, "ui"},
		{TagNetworking, "networking"},
		{TagGeneral, "general"},
	}

	for _, c := range cases {
		if c.tag.Name() != c.want {
			t.Errorf("Name() = %q, want %q", c.tag.Name(), c.want)
		}
	}
}

func TestTagStackPushPopCurrent(t *testing.T) {
	s := newTagStack()

	if _, ok := s.Current(); ok {
		t.Fatal("expected Current() to report ok=false on an empty stack")
	}

	if s.CurrentName() != "" {
		t.Fatalf("CurrentName() on empty stack = %q, want empty string", s.CurrentName())
	}

	s.Push(TagRendering)
	s.Push(TagPhysics)

	if s.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", s.Depth())
	}

	top, ok := s.Current()
	if !ok || top.Name() != "physics" {
		t.Fatalf("Current() = %q, %v, want physics, true", top.Name(), ok)
	}

	if s.CurrentName() != "physics" {
		t.Fatalf("CurrentName() = %q, want physics", s.CurrentName())
	}

	s.Pop()

	top, ok = s.Current()
	if !ok || top.Name() != "rendering" {
		t.Fatalf("Current() after Pop = %q, %v, want rendering, true", top.Name(), ok)
	}
}

func TestTagStackPopEmptyIsNoop(t *testing.T) {
	s := newTagStack()

	s.Pop()

	if s.Depth() != 0 {
		t.Fatalf("Depth() = %d, want 0 after popping an empty stack", s.Depth())
	}
}

func TestTagScopePushesAndCloses(t *testing.T) {
	s := newTagStack()

	scope := NewTagScope(s, TagUI)
	if s.Depth() != 1 {
		t.Fatalf("Depth() after NewTagScope = %d, want 1", s.Depth())
	}

	scope.Close()

	if s.Depth() != 0 {
		t.Fatalf("Depth() after Close = %d, want 0", s.Depth())
	}
}
