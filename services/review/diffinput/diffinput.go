// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package diffinput converts a unified diff into the opening review request.
package diffinput

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ChangedFile summarizes one file's changes in a parsed diff.
type ChangedFile struct {
	// Path is the post-change path, with the diff tool's a/ b/ prefixes
	// stripped. For deleted files it falls back to the pre-change path.
	Path string

	// Status is "added", "deleted", or "modified".
	Status string

	// Hunks describes each hunk as "lines X-Y" against the new file.
	Hunks []string
}

// Review is the parsed review request handed to the agent.
type Review struct {
	// Files lists the changed files in diff order.
	Files []ChangedFile

	// Patch is the raw unified diff text.
	Patch string
}

const devNull = "/dev/null"

// Parse reads a unified diff and extracts the changed-file summary.
//
// Description:
//
//	Accepts standard git and plain unified diffs, multi-file. A diff
//	that parses to zero files, or fails to parse at all, is rejected
//	with a descriptive error so the caller can surface it directly.
//
// Inputs:
//   - patch: The raw unified diff text.
//
// Outputs:
//   - *Review: Per-file summaries plus the original patch.
//   - error: Malformed or empty diff.
func Parse(patch string) (*Review, error) {
	if strings.TrimSpace(patch) == "" {
		return nil, fmt.Errorf("diff input is empty")
	}

	fileDiffs, err := diff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return nil, fmt.Errorf("malformed unified diff: %w", err)
	}
	if len(fileDiffs) == 0 {
		return nil, fmt.Errorf("diff contains no file changes")
	}

	review := &Review{Patch: patch}
	for _, fd := range fileDiffs {
		review.Files = append(review.Files, summarizeFile(fd))
	}
	return review, nil
}

func summarizeFile(fd *diff.FileDiff) ChangedFile {
	orig := stripDiffPrefix(fd.OrigName)
	next := stripDiffPrefix(fd.NewName)

	cf := ChangedFile{Path: next, Status: "modified"}
	switch {
	case fd.OrigName == devNull:
		cf.Status = "added"
	case fd.NewName == devNull:
		cf.Status = "deleted"
		cf.Path = orig
	}

	for _, h := range fd.Hunks {
		start, count := h.NewStartLine, h.NewLines
		if cf.Status == "deleted" {
			start, count = h.OrigStartLine, h.OrigLines
		}
		end := start
		if count > 0 {
			end = start + count - 1
		}
		cf.Hunks = append(cf.Hunks, fmt.Sprintf("lines %d-%d", start, end))
	}
	return cf
}

// stripDiffPrefix removes the conventional a/ or b/ prefix git puts on
// diff paths.
func stripDiffPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// UserMessage renders the review request as the opening user message for
// the model: a changed-file listing with hunk summaries, then the patch.
func (r *Review) UserMessage() string {
	var sb strings.Builder
	sb.WriteString("Please review the following change.\n\nChanged files:\n")
	for _, f := range r.Files {
		sb.WriteString(fmt.Sprintf("- %s (%s", f.Path, f.Status))
		if len(f.Hunks) > 0 {
			sb.WriteString("; " + strings.Join(f.Hunks, ", "))
		}
		sb.WriteString(")\n")
	}
	sb.WriteString("\nPatch:\n```diff\n")
	sb.WriteString(strings.TrimRight(r.Patch, "\n"))
	sb.WriteString("\n```\n")
	return sb.String()
}

// DirectoryMessage is the opening user message when no diff is supplied:
// a plain request to review the workspace at the given path.
func DirectoryMessage(path string) string {
	return fmt.Sprintf(
		"Please review the code under %q. Explore it with the available tools, then give your findings.",
		path)
}
