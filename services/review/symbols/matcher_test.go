// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	"reflect"
	"testing"
)

// sym builds a hierarchical test symbol spanning the given lines.
func sym(name string, kind Kind, startLine, endLine int, children ...*Symbol) *Symbol {
	return &Symbol{
		Name:           name,
		Kind:           kind,
		Shape:          ShapeHierarchical,
		Range:          Range{Start: Position{Line: startLine}, End: Position{Line: endLine, Col: 80}},
		SelectionRange: Range{Start: Position{Line: startLine}, End: Position{Line: startLine, Col: 80}},
		Children:       children,
	}
}

func TestParseNamePath(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"MyClass/method", []string{"MyClass", "method"}},
		{"/MyClass/method", []string{"MyClass", "method"}},
		{"MyClass.method", []string{"MyClass", "method"}},
		{".method", []string{"method"}},
		{"MyClass/file.spec", []string{"MyClass", "file.spec"}},
		{"a/b/c", []string{"a", "b", "c"}},
		{"solo", []string{"solo"}},
		{"a//b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got, err := ParseNamePath(tt.input)
		if err != nil {
			t.Fatalf("ParseNamePath(%q) error: %v", tt.input, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseNamePath(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseNamePath_Empty(t *testing.T) {
	for _, input := range []string{"", "   ", "/", ".", "//", ". ."} {
		if _, err := ParseNamePath(input); err == nil {
			t.Errorf("ParseNamePath(%q) accepted, want error", input)
		}
	}
}

func TestParseNamePath_SeparatorPrecedence(t *testing.T) {
	// Identical resolution for dot and slash forms when no literal dots.
	dotted, _ := ParseNamePath("MyClass.method")
	slashed, _ := ParseNamePath("MyClass/method")
	if !reflect.DeepEqual(dotted, slashed) {
		t.Errorf("dot form %v != slash form %v", dotted, slashed)
	}

	// Slash presence preserves dots inside a segment.
	got, _ := ParseNamePath("MyClass/file.spec")
	if got[1] != "file.spec" {
		t.Errorf("leaf = %q, want dotted leaf preserved", got[1])
	}
}

func TestFindInTree_SingleSegment(t *testing.T) {
	tree := []*Symbol{
		sym("MyClass", KindClass, 1, 10,
			sym("method", KindMethod, 2, 4),
			sym("other", KindMethod, 5, 7),
		),
	}

	segments, _ := ParseNamePath("method")
	matches := FindInTree(tree, segments, "src/a.ts")
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].NamePath != "MyClass/method" {
		t.Errorf("NamePath = %q, want %q", matches[0].NamePath, "MyClass/method")
	}
	if matches[0].FilePath != "src/a.ts" {
		t.Errorf("FilePath = %q", matches[0].FilePath)
	}
}

func TestFindInTree_MultiSegmentContiguous(t *testing.T) {
	tree := []*Symbol{
		sym("Outer", KindClass, 1, 30,
			sym("Inner", KindClass, 2, 20,
				sym("run", KindMethod, 3, 5),
			),
		),
	}

	for _, input := range []string{"Inner/run", "Outer/Inner/run", "/Outer/Inner/run"} {
		segments, _ := ParseNamePath(input)
		matches := FindInTree(tree, segments, "x.py")
		if len(matches) != 1 {
			t.Fatalf("%q: got %d matches, want 1", input, len(matches))
		}
		if matches[0].NamePath != "Outer/Inner/run" {
			t.Errorf("%q: NamePath = %q", input, matches[0].NamePath)
		}
	}

	// Non-contiguous segments must not match.
	segments, _ := ParseNamePath("Outer/run")
	if got := FindInTree(tree, segments, "x.py"); len(got) != 0 {
		t.Errorf("non-contiguous path matched: %v", got)
	}
}

func TestFindInTree_LeadingSeparatorNoOp(t *testing.T) {
	tree := []*Symbol{
		sym("MyClass", KindClass, 1, 10, sym("method", KindMethod, 2, 4)),
	}
	a, _ := ParseNamePath("/MyClass/method")
	b, _ := ParseNamePath("MyClass/method")
	ma := FindInTree(tree, a, "f.ts")
	mb := FindInTree(tree, b, "f.ts")
	if len(ma) != 1 || len(mb) != 1 || ma[0].NamePath != mb[0].NamePath {
		t.Errorf("leading separator changed resolution: %v vs %v", ma, mb)
	}
}

func TestFindInTree_AmbiguityAllReturned(t *testing.T) {
	tree := []*Symbol{
		sym("test", KindFunction, 1, 3),
		sym("test", KindClass, 5, 9),
	}
	segments, _ := ParseNamePath("test")
	matches := FindInTree(tree, segments, "dup.js")
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want both test symbols", len(matches))
	}
	if matches[0].Symbol.Kind != KindFunction || matches[1].Symbol.Kind != KindClass {
		t.Errorf("kinds = %v, %v; want function then class",
			matches[0].Symbol.Kind, matches[1].Symbol.Kind)
	}
}

func TestFindInTree_DetailPromotionTopLevelOnly(t *testing.T) {
	// Flat C++-style listing: render defined outside the class body, the
	// class name only in detail.
	render := sym("render", KindMethod, 20, 28)
	render.Detail = "Widget"

	// A deeper symbol with a detail must NOT gain an inferred parent.
	deep := sym("helper", KindFunction, 3, 5)
	deep.Detail = "Widget"
	holder := sym("Holder", KindClass, 1, 10, deep)

	tree := []*Symbol{render, holder}

	segments, _ := ParseNamePath("Widget/render")
	matches := FindInTree(tree, segments, "widget.cpp")
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].NamePath != "Widget/render" {
		t.Errorf("NamePath = %q", matches[0].NamePath)
	}

	segments, _ = ParseNamePath("Widget/helper")
	if got := FindInTree(tree, segments, "widget.cpp"); len(got) != 0 {
		t.Errorf("detail promoted below top level: %v", got)
	}
}

func TestFindInTree_DeclarationDetailNotPromoted(t *testing.T) {
	proto := sym("render", KindMethod, 4, 4)
	proto.Detail = "declaration"
	tree := []*Symbol{proto}

	segments, _ := ParseNamePath("declaration/render")
	if got := FindInTree(tree, segments, "widget.h"); len(got) != 0 {
		t.Errorf("placeholder detail was promoted: %v", got)
	}

	// The symbol is still reachable by its own name.
	segments, _ = ParseNamePath("render")
	if got := FindInTree(tree, segments, "widget.h"); len(got) != 1 {
		t.Errorf("symbol with placeholder detail unmatchable: %v", got)
	}
}

func TestFindInTree_QualifiedScopeSplit(t *testing.T) {
	m := sym("process", KindMethod, 10, 14)
	m.Detail = "ns::Engine"
	tree := []*Symbol{m}

	segments, _ := ParseNamePath("Engine/process")
	matches := FindInTree(tree, segments, "engine.cpp")
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].NamePath != "ns/Engine/process" {
		t.Errorf("NamePath = %q, want scope segments split", matches[0].NamePath)
	}
}

func TestMatchesFlatCandidate(t *testing.T) {
	tests := []struct {
		name      string
		leaf      string
		container string
		path      string
		want      bool
	}{
		{"leaf only", "method", "MyClass", "method", true},
		{"container match", "method", "MyClass", "MyClass/method", true},
		{"dotted container", "run", "Outer.Inner", "Inner/run", true},
		{"full dotted container", "run", "Outer.Inner", "Outer/Inner/run", true},
		{"wrong container", "run", "Outer.Inner", "Other/run", false},
		{"wrong leaf", "Method", "MyClass", "MyClass/method", false}, // case-sensitive
		{"out of order", "run", "Outer.Inner", "Inner/Outer/run", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := &Symbol{Name: tt.leaf, Shape: ShapeFlat, ContainerName: tt.container}
			segments, err := ParseNamePath(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if got := MatchesFlatCandidate(candidate, segments); got != tt.want {
				t.Errorf("MatchesFlatCandidate(%q in %q, %q) = %v, want %v",
					tt.leaf, tt.container, tt.path, got, tt.want)
			}
		})
	}
}

func TestEnclosingBodyRange_MostSpecificWins(t *testing.T) {
	tree := []*Symbol{
		sym("Outer", KindClass, 1, 100,
			sym("mid", KindMethod, 10, 40,
				sym("inner", KindFunction, 20, 25),
			),
		),
	}

	r, ok := EnclosingBodyRange(tree, Position{Line: 22, Col: 4})
	if !ok {
		t.Fatal("no enclosing range found")
	}
	if r.Start.Line != 20 || r.End.Line != 25 {
		t.Errorf("range = %d..%d, want innermost 20..25", r.Start.Line, r.End.Line)
	}

	r, ok = EnclosingBodyRange(tree, Position{Line: 50})
	if !ok || r.Start.Line != 1 {
		t.Errorf("position outside children should fall back to ancestor, got %v ok=%v", r, ok)
	}

	if _, ok := EnclosingBodyRange(tree, Position{Line: 200}); ok {
		t.Error("position outside every symbol must report no range")
	}
}

func TestBodyRange_Discrimination(t *testing.T) {
	h := sym("f", KindFunction, 1, 9)
	if r, full := h.BodyRange(); !full || r.End.Line != 9 {
		t.Errorf("hierarchical BodyRange = %v full=%v", r, full)
	}

	f := &Symbol{
		Name:           "f",
		Shape:          ShapeFlat,
		SelectionRange: Range{Start: Position{Line: 3}, End: Position{Line: 3, Col: 10}},
	}
	if r, full := f.BodyRange(); full || r.Start.Line != 3 {
		t.Errorf("flat BodyRange = %v full=%v, want selection-only", r, full)
	}
}

func TestFlatten(t *testing.T) {
	tree := []*Symbol{
		sym("Outer", KindClass, 1, 30,
			sym("Inner", KindClass, 2, 20,
				sym("run", KindMethod, 3, 5),
			),
		),
	}
	flat := Flatten(tree)
	if len(flat) != 3 {
		t.Fatalf("got %d flat symbols, want 3", len(flat))
	}
	byName := map[string]*Symbol{}
	for _, s := range flat {
		if s.Shape != ShapeFlat {
			t.Errorf("%s: shape = %v, want flat", s.Name, s.Shape)
		}
		byName[s.Name] = s
	}
	if byName["run"].ContainerName != "Outer.Inner" {
		t.Errorf("run container = %q, want %q", byName["run"].ContainerName, "Outer.Inner")
	}
	if byName["Outer"].ContainerName != "" {
		t.Errorf("top-level container = %q, want empty", byName["Outer"].ContainerName)
	}
}

func TestInferContainer(t *testing.T) {
	tests := []struct {
		detail string
		depth  int
		want   string
	}{
		{"Widget", 0, "Widget"},
		{"Widget", 1, ""},
		{"declaration", 0, ""},
		{"Declaration", 0, ""},
		{"struct", 0, ""},
		{"interface", 0, ""},
		{"class", 0, ""},
		{"enum", 0, ""},
		{"", 0, ""},
		{"  ", 0, ""},
		{"Widget::", 0, "Widget"},
		{"void render(int)", 0, ""},
		{"ns::Engine", 0, "ns::Engine"},
	}
	for _, tt := range tests {
		if got := InferContainer(tt.detail, tt.depth); got != tt.want {
			t.Errorf("InferContainer(%q, %d) = %q, want %q", tt.detail, tt.depth, got, tt.want)
		}
	}
}
