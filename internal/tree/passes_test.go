package tree

import (
	"errors"
	"testing"
)

func heading(depth int, text string) *Node {
	n := New(TypeHeading)
	n.Depth = depth
	n.Value = text
	return n
}

func para(text string) *Node {
	n := New(TypeParagraph)
	n.Value = text
	return n
}

func textNode(value string) *Node {
	n := New(TypeText)
	n.Value = value
	return n
}

func yamlNode(raw string) *Node {
	n := New(TypeYAML)
	n.Value = raw
	return n
}

func decodeStub(raw string) (map[string]any, error) {
	if raw == "bad" {
		return nil, errors.New("not a mapping")
	}
	return map[string]any{"raw": raw}, nil
}

func TestFrontMatter_RemovesLeadingBlock(t *testing.T) {
	root := New(TypeRoot, yamlNode("type: post"), para("a"), para("b"))
	var got map[string]any
	out, err := Run(root, FrontMatter(decodeStub, func(m map[string]any) { got = m }))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Children) != 2 || out.Children[0].Value != "a" {
		t.Fatalf("children = %+v, want [a b]", out.Children)
	}
	if got["raw"] != "type: post" {
		t.Errorf("decoded = %v", got)
	}
}

func TestFrontMatter_UndecodableBlockUntouched(t *testing.T) {
	root := New(TypeRoot, yamlNode("bad"), para("a"))
	called := false
	out, err := Run(root, FrontMatter(decodeStub, func(map[string]any) { called = true }))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("sink should not be called for an undecodable block")
	}
	if len(out.Children) != 2 || out.Children[0].Type != TypeYAML {
		t.Errorf("tree changed: %+v", out.Children)
	}
}

func TestFrontMatter_SkippedWithoutBlock(t *testing.T) {
	root := New(TypeRoot, para("a"), yamlNode("x: 1"))
	out, err := Run(root, FrontMatter(decodeStub, func(map[string]any) { t.Error("sink called") }))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Children) != 2 {
		t.Errorf("len = %d, want 2", len(out.Children))
	}
}

func TestHeadingAdjacency_GroupsUnderNearestHeading(t *testing.T) {
	h1, p1, p2, h2, p3 := heading(1, "One"), para("p1"), para("p2"), heading(2, "Two"), para("p3")
	root := New(TypeRoot, h1, p1, p2, h2, p3)
	if _, err := Run(root, Structure(), HeadingAdjacency()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h1.HeadingIndex != 0 || h2.HeadingIndex != 1 {
		t.Fatalf("heading indexes = %d, %d", h1.HeadingIndex, h2.HeadingIndex)
	}
	if p1.ParentHeading != 0 || p2.ParentHeading != 0 {
		t.Errorf("p1/p2 owner = %d/%d, want 0", p1.ParentHeading, p2.ParentHeading)
	}
	if p3.ParentHeading != 1 {
		t.Errorf("p3 owner = %d, want 1", p3.ParentHeading)
	}
}

func TestHeadingAdjacency_NoLeadingHeading(t *testing.T) {
	p0 := para("intro")
	p1 := para("body")
	root := New(TypeRoot, p0, heading(1, "H"), p1)
	if _, err := Run(root, Structure(), HeadingAdjacency()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p0.HasParentHeading() {
		t.Errorf("intro owner = %d, want none", p0.ParentHeading)
	}
	if p1.ParentHeading != 0 {
		t.Errorf("body owner = %d, want 0", p1.ParentHeading)
	}
}

func TestNormalizeHeadings_DemotesMultipleTitles(t *testing.T) {
	a, b, c := heading(1, "a"), heading(1, "b"), heading(6, "c")
	root := New(TypeRoot, a, b, c)
	if _, err := Run(root, NormalizeHeadings()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Depth != 2 || b.Depth != 2 || c.Depth != 6 {
		t.Errorf("depths = %d %d %d, want 2 2 6", a.Depth, b.Depth, c.Depth)
	}
}

func TestNormalizeHeadings_SingleTitleUnchanged(t *testing.T) {
	a, b := heading(1, "a"), heading(2, "b")
	if _, err := Run(New(TypeRoot, a, b), NormalizeHeadings()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Depth != 1 || b.Depth != 2 {
		t.Errorf("depths = %d %d, want 1 2", a.Depth, b.Depth)
	}
}

func TestSqueezeParagraphs(t *testing.T) {
	root := New(TypeRoot, para("keep"), para("  "), heading(1, "h"))
	out, err := Run(root, SqueezeParagraphs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Children) != 2 {
		t.Errorf("len = %d, want 2", len(out.Children))
	}
}

func TestSqueezeParagraphs_KeepsInlineContent(t *testing.T) {
	image := para("")
	image.Children = []*Node{New("image")}
	blank := para("")
	blank.Children = []*Node{textNode(" "), textNode("\n")}
	mixed := para("")
	mixed.Children = []*Node{textNode(" "), New("html")}

	out, err := Run(New(TypeRoot, image, blank, mixed), SqueezeParagraphs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Children) != 2 || out.Children[0] != image || out.Children[1] != mixed {
		t.Errorf("children = %+v, want image and mixed paragraphs", out.Children)
	}
}

func TestWrap_SingleRootIdempotent(t *testing.T) {
	root := New(TypeRoot, para("a"), para("b"))
	out, err := Run(root, Wrap(""), Wrap(""))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !IsWrapped(out) {
		t.Fatalf("root not wrapped: %+v", out.Children)
	}
	w := out.Children[0]
	if w.Data.HTMLName != "div" || w.Data.HTMLAttributes["class"] != DefaultWrapperClass {
		t.Errorf("wrapper data = %+v", w.Data)
	}
	if len(w.Children) != 2 {
		t.Errorf("wrapped children = %d, want 2", len(w.Children))
	}
}
