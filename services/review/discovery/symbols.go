// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package discovery

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loupedev/loupe/services/review/symbols"
	"github.com/loupedev/loupe/services/review/timeout"
)

// Default budgets for symbol extraction.
const (
	DefaultPerFileTimeout = 5 * time.Second
	DefaultSymbolTimeout  = 60 * time.Second
	DefaultMaxSymbolFiles = 200
	DefaultCandidateCap   = 50
	DefaultParseWorkers   = 4
)

// SymbolOptions configures directory and workspace symbol extraction.
type SymbolOptions struct {
	// PerFileTimeout bounds a single file's parse (0 = DefaultPerFileTimeout).
	PerFileTimeout time.Duration

	// OverallTimeout bounds the whole operation (0 = DefaultSymbolTimeout).
	OverallTimeout time.Duration

	// MaxFiles caps how many files are processed (0 = DefaultMaxSymbolFiles).
	MaxFiles int
}

func (o SymbolOptions) perFile() time.Duration {
	if o.PerFileTimeout > 0 {
		return o.PerFileTimeout
	}
	return DefaultPerFileTimeout
}

func (o SymbolOptions) overall() time.Duration {
	if o.OverallTimeout > 0 {
		return o.OverallTimeout
	}
	return DefaultSymbolTimeout
}

func (o SymbolOptions) maxFiles() int {
	if o.MaxFiles > 0 {
		return o.MaxFiles
	}
	return DefaultMaxSymbolFiles
}

// FileSymbolResult pairs one file with its top-level symbol tree.
type FileSymbolResult struct {
	Path    string
	Symbols []*symbols.Symbol
}

// DirectorySymbolsResult aggregates symbol trees across a directory.
//
// Invariant: Truncated is true whenever TimedOutFiles > 0 or the file cap
// or overall budget stopped processing early.
type DirectorySymbolsResult struct {
	Results       []FileSymbolResult
	Truncated     bool
	TimedOutFiles int
}

// FileSymbols parses one file into its symbol tree.
//
// Description:
//
//	A file in an unsupported language, an unreadable file, or invalid
//	content yields an empty tree and no error: absence of symbol data is
//	not a failure. Only timeout and cancellation are raised, because the
//	caller must distinguish "nothing there" from "gave up".
//
// Inputs:
//   - ctx: Session context.
//   - relPath: Root-relative file path, already sanitized.
//   - perFile: Parse budget (0 = DefaultPerFileTimeout).
//
// Outputs:
//   - []*symbols.Symbol: Top-level symbols, possibly empty.
//   - error: Timeout or cancellation only.
func (w *Walker) FileSymbols(ctx context.Context, relPath string, perFile time.Duration) ([]*symbols.Symbol, error) {
	parser, ok := symbols.ParserForPath(relPath)
	if !ok {
		return nil, nil
	}
	content, err := w.ReadFileRel(relPath)
	if err != nil {
		w.logger.Debug("file unreadable for symbols",
			slog.String("path", relPath),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	if perFile <= 0 {
		perFile = DefaultPerFileTimeout
	}

	var syms []*symbols.Symbol
	err = timeout.Do(ctx, perFile, "parse "+relPath, w.logger, func(ctx context.Context) error {
		var parseErr error
		syms, parseErr = parser.DocumentSymbols(ctx, content, relPath)
		return parseErr
	})
	if err != nil {
		if timeout.IsTimeout(err) || timeout.IsCanceled(err) || ctx.Err() != nil {
			return nil, err
		}
		w.logger.Debug("symbol parse failed",
			slog.String("path", relPath),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return syms, nil
}

// DirectorySymbols extracts symbol trees for every supported file under a
// directory.
//
// Description:
//
//	Files are discovered first, then parsed sequentially inside the
//	overall budget. A file that exceeds its own parse budget is counted
//	in TimedOutFiles and skipped; the operation keeps going until the
//	overall budget or the file cap is hit. Results preserve the sorted
//	discovery order.
func (w *Walker) DirectorySymbols(ctx context.Context, relPath string, opts SymbolOptions) (*DirectorySymbolsResult, error) {
	list, err := w.DiscoverFiles(ctx, Options{
		SearchPath:    relPath,
		RespectIgnore: true,
		MaxResults:    opts.maxFiles(),
		Timeout:       opts.overall(),
	})
	if err != nil {
		return nil, err
	}

	result := &DirectorySymbolsResult{Truncated: list.Truncated}
	deadline := time.Now().Add(opts.overall())

	for _, path := range list.Files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if time.Now().After(deadline) {
			result.Truncated = true
			break
		}
		if _, ok := symbols.ParserForPath(path); !ok {
			continue
		}

		syms, fileErr := w.FileSymbols(ctx, path, opts.perFile())
		if fileErr != nil {
			if timeout.IsTimeout(fileErr) {
				result.TimedOutFiles++
				result.Truncated = true
				continue
			}
			return nil, fileErr
		}
		if len(syms) == 0 {
			continue
		}
		result.Results = append(result.Results, FileSymbolResult{Path: path, Symbols: syms})
	}
	return result, nil
}

// WorkspaceCandidate is one flat symbol hit from a workspace-wide search.
type WorkspaceCandidate struct {
	Symbol   *symbols.Symbol
	FilePath string
}

// WorkspaceSymbols finds symbols named leaf anywhere in the workspace.
//
// Description:
//
//	Candidate files are pre-filtered with a plain substring scan for the
//	leaf name before any parsing happens, which prunes the vast majority
//	of the tree cheaply. At most candidateCap surviving files are parsed,
//	concurrently but bounded, each within its own time box; a candidate
//	that times out is dropped rather than failing the search. Matches are
//	flattened (so nested symbols carry dot-joined container names) and
//	returned in path order regardless of parse completion order.
//
// Inputs:
//   - ctx: Session context.
//   - leaf: Case-sensitive symbol name to look for (the final name-path
//     segment).
//   - opts: Budgets; MaxFiles acts as the candidate cap here
//     (0 = DefaultCandidateCap).
//
// Outputs:
//   - []WorkspaceCandidate: Flat matches sorted by file path, then by
//     position within the file.
//   - truncated: True when the candidate cap cut the search short or any
//     candidate timed out.
//   - error: Cancellation only.
func (w *Walker) WorkspaceSymbols(ctx context.Context, leaf string, opts SymbolOptions) ([]WorkspaceCandidate, bool, error) {
	candidateCap := opts.MaxFiles
	if candidateCap <= 0 {
		candidateCap = DefaultCandidateCap
	}

	list, err := w.DiscoverFiles(ctx, Options{
		SearchPath:    ".",
		RespectIgnore: true,
		Timeout:       opts.overall(),
	})
	if err != nil {
		return nil, false, err
	}
	truncated := list.Truncated

	needle := []byte(leaf)
	var candidates []string
	for _, path := range list.Files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		if _, ok := symbols.ParserForPath(path); !ok {
			continue
		}
		content, readErr := w.ReadFileRel(path)
		if readErr != nil || !bytes.Contains(content, needle) {
			continue
		}
		candidates = append(candidates, path)
		if len(candidates) >= candidateCap {
			truncated = true
			break
		}
	}

	var (
		mu      sync.Mutex
		matches []WorkspaceCandidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultParseWorkers)

	for _, path := range candidates {
		g.Go(func() error {
			syms, fileErr := w.FileSymbols(gctx, path, opts.perFile())
			if fileErr != nil {
				if timeout.IsTimeout(fileErr) {
					mu.Lock()
					truncated = true
					mu.Unlock()
					return nil
				}
				return fileErr
			}
			var hits []WorkspaceCandidate
			for _, flat := range symbols.Flatten(syms) {
				if flat.Name == leaf {
					hits = append(hits, WorkspaceCandidate{Symbol: flat, FilePath: path})
				}
			}
			if len(hits) > 0 {
				mu.Lock()
				matches = append(matches, hits...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].FilePath != matches[j].FilePath {
			return matches[i].FilePath < matches[j].FilePath
		}
		return matches[i].Symbol.Range.Start.Line < matches[j].Symbol.Range.Start.Line
	})
	return matches, truncated, nil
}
