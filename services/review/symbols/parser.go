// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// DefaultMaxFileSize is the largest source file a parser will accept.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var (
	// ErrFileTooLarge indicates the source exceeds the parser's size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the source is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// Parser extracts a hierarchical symbol tree from one source file.
//
// Description:
//
//	The document-symbol capability of the pipeline. Implementations are
//	tree-sitter based, create a fresh sitter parser per call, and are
//	error tolerant: syntactically broken source yields partial symbols,
//	not an error.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Parser interface {
	// Language returns the canonical language name ("python", "cpp", ...).
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot.
	Extensions() []string

	// DocumentSymbols parses content and returns the hierarchical symbol
	// tree in source order.
	DocumentSymbols(ctx context.Context, content []byte, filePath string) ([]*Symbol, error)
}

// registeredParsers lists every supported language, in lookup order.
var registeredParsers = []Parser{
	NewGoParser(),
	NewPythonParser(),
	NewTypeScriptParser(),
	NewJavaScriptParser(),
	NewCppParser(),
}

// RegisterParser adds a language to the lookup table. Later registrations
// win over built-in parsers for overlapping extensions. Call during
// initialization only; the table is read without locking afterwards.
func RegisterParser(p Parser) {
	registeredParsers = append([]Parser{p}, registeredParsers...)
}

// ParserForPath selects the parser responsible for a file, by extension.
//
// Outputs:
//   - Parser: The matching parser.
//   - bool: False when the extension belongs to no supported language.
func ParserForPath(path string) (Parser, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, p := range registeredParsers {
		for _, e := range p.Extensions() {
			if e == ext {
				return p, true
			}
		}
	}
	return nil, false
}

// SupportedExtensions returns the union of every registered parser's
// extensions. Used by tools that restrict searches to code files.
func SupportedExtensions() map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range registeredParsers {
		for _, e := range p.Extensions() {
			out[e] = struct{}{}
		}
	}
	return out
}

// validateSource applies the shared pre-parse checks.
func validateSource(ctx context.Context, content []byte, maxSize int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), maxSize)
	}
	if !utf8.Valid(content) {
		return fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}
	return nil
}

// parseTree runs tree-sitter with a per-call parser instance.
func parseTree(ctx context.Context, lang *sitter.Language, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	return tree, nil
}

// nodeRange converts tree-sitter points (0-based rows) to a Range with
// 1-based lines.
func nodeRange(n *sitter.Node) Range {
	return Range{
		Start: Position{Line: int(n.StartPoint().Row) + 1, Col: int(n.StartPoint().Column)},
		End:   Position{Line: int(n.EndPoint().Row) + 1, Col: int(n.EndPoint().Column)},
	}
}

// newHierarchical builds a hierarchical symbol from a body node and the
// node carrying its name.
func newHierarchical(body, nameNode *sitter.Node, content []byte, kind Kind, detail string) *Symbol {
	sym := &Symbol{
		Kind:   kind,
		Detail: detail,
		Shape:  ShapeHierarchical,
		Range:  nodeRange(body),
	}
	if nameNode != nil {
		sym.Name = nameNode.Content(content)
		sym.SelectionRange = nodeRange(nameNode)
	} else {
		sym.SelectionRange = sym.Range
	}
	return sym
}
