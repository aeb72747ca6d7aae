package harness

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/humanbeeng/codelocbench/internal/astindex"
	"github.com/humanbeeng/codelocbench/internal/llmclient"
)

const (
	maxViewLines   = 2000
	maxGrepMatches = 200
	maxListEntries = 500
	maxLineDisplay = 500
)

// fsTools is the lexical channel's tool set: view, list, grep — a
// deliberately narrow surface, adapted from the teacher's
// read_partial_file / list_directory tools but rebuilt around plain
// text search instead of the teacher's apply_patch/code-graph tools,
// neither of which this read-only benchmark needs.
type fsTools struct {
	root string
}

func newFSTools(reg *Registry, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("harness: resolve repo root: %w", err)
	}
	t := &fsTools{root: abs}

	if err := reg.Add(t.viewFileDef(), t.handleViewFile); err != nil {
		return err
	}
	if err := reg.Add(t.listDirectoryDef(), t.handleListDirectory); err != nil {
		return err
	}
	if err := reg.Add(t.grepDef(), t.handleGrep); err != nil {
		return err
	}
	return nil
}

func (t *fsTools) resolve(p string) (string, error) {
	if p == "" {
		p = "."
	}
	var full string
	if filepath.IsAbs(p) {
		full = p
	} else {
		full = filepath.Join(t.root, p)
	}
	rel, err := filepath.Rel(t.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("harness: path %q escapes repo root", p)
	}
	return full, nil
}

func (t *fsTools) viewFileDef() llmclient.ToolDef {
	return llmclient.ToolDef{
		Name:        "view_file",
		Description: "Read a window of lines from a file under the repository root, with 1-indexed line numbers.",
		Strict:      true,
		Parameters:  llmclient.SchemaFrom(viewFileArgs{}),
	}
}

type viewFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Path relative to the repository root."`
	Offset   int    `json:"offset" jsonschema:"required,minimum=1,description=1-indexed line to start from (default 1)."`
	Limit    int    `json:"limit" jsonschema:"required,minimum=1,maximum=2000,description=Maximum lines to return (default 200)."`
}

func (t *fsTools) handleViewFile(_ context.Context, raw json.RawMessage) (string, error) {
	var args viewFileArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	path, err := t.resolve(args.FilePath)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", args.FilePath, err)
	}
	defer f.Close()

	offset := args.Offset
	if offset <= 0 {
		offset = 1
	}
	limit := args.Limit
	if limit <= 0 || limit > maxViewLines {
		limit = 200
	}

	var out strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	shown := 0
	for scanner.Scan() && shown < limit {
		lineNo++
		if lineNo < offset {
			continue
		}
		line := scanner.Text()
		if len(line) > maxLineDisplay {
			line = line[:maxLineDisplay] + "...(truncated)"
		}
		fmt.Fprintf(&out, "L%d: %s\n", lineNo, line)
		shown++
	}
	if shown == 0 {
		return "", fmt.Errorf("offset %d is beyond the end of %s", offset, args.FilePath)
	}
	return out.String(), nil
}

func (t *fsTools) listDirectoryDef() llmclient.ToolDef {
	return llmclient.ToolDef{
		Name:        "list_directory",
		Description: "List files under a directory relative to the repository root, recursively.",
		Strict:      true,
		Parameters:  llmclient.SchemaFrom(listDirectoryArgs{}),
	}
}

type listDirectoryArgs struct {
	DirPath string `json:"dir_path" jsonschema:"required,description=Path relative to the repository root (default \".\")."`
}

func (t *fsTools) handleListDirectory(_ context.Context, raw json.RawMessage) (string, error) {
	var args listDirectoryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	root, err := t.resolve(args.DirPath)
	if err != nil {
		return "", err
	}

	var entries []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(t.root, p)
		if relErr != nil {
			return relErr
		}
		entries = append(entries, filepath.ToSlash(rel))
		if len(entries) >= maxListEntries {
			return fmt.Errorf("stop")
		}
		return nil
	})
	if err != nil && len(entries) < maxListEntries {
		return "", fmt.Errorf("list %s: %w", args.DirPath, err)
	}
	sort.Strings(entries)
	return strings.Join(entries, "\n"), nil
}

func (t *fsTools) grepDef() llmclient.ToolDef {
	return llmclient.ToolDef{
		Name:        "grep",
		Description: "Search file contents for a regular expression across the repository.",
		Strict:      true,
		Parameters:  llmclient.SchemaFrom(grepArgs{}),
	}
}

type grepArgs struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Regular expression to search for."`
}

func (t *fsTools) handleGrep(_ context.Context, raw json.RawMessage) (string, error) {
	var args grepArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	var out strings.Builder
	matches := 0
	err = filepath.WalkDir(t.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if matches >= maxGrepMatches {
			return nil
		}
		f, openErr := os.Open(p)
		if openErr != nil {
			return nil
		}
		defer f.Close()

		rel, _ := filepath.Rel(t.root, p)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() && matches < maxGrepMatches {
			lineNo++
			if re.MatchString(scanner.Text()) {
				fmt.Fprintf(&out, "%s:%d: %s\n", filepath.ToSlash(rel), lineNo, strings.TrimSpace(scanner.Text()))
				matches++
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("grep: %w", err)
	}
	if matches == 0 {
		return "no matches", nil
	}
	return out.String(), nil
}

// symbolTools is the semantic channel's tool set: symbol/type lookups
// backed by an astindex.Index, disjoint from the lexical channel's
// view/list/grep tools per the dual-channel contract.
type symbolTools struct {
	idx  *astindex.Index
	root string
}

func newSymbolTools(reg *Registry, idx *astindex.Index, root string) error {
	t := &symbolTools{idx: idx, root: root}
	return reg.Add(t.findSymbolDef(), t.handleFindSymbol)
}

func (t *symbolTools) findSymbolDef() llmclient.ToolDef {
	return llmclient.ToolDef{
		Name:        "find_symbol",
		Description: "Find function, method, and type definitions by name across the indexed repository.",
		Strict:      true,
		Parameters:  llmclient.SchemaFrom(findSymbolArgs{}),
	}
}

type findSymbolArgs struct {
	Name string `json:"name" jsonschema:"required,description=Exact definition name to search for."`
}

func (t *symbolTools) handleFindSymbol(_ context.Context, raw json.RawMessage) (string, error) {
	var args findSymbolArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}

	var out strings.Builder
	found := 0
	for _, path := range t.idx.Files() {
		for _, def := range t.idx.AllDefinitions(path) {
			if def.Name != args.Name {
				continue
			}
			fmt.Fprintf(&out, "%s:%d-%d %s %s\n", path, def.StartLine, def.EndLine, def.Kind, def.Signature)
			found++
		}
	}
	if found == 0 {
		return "no symbol found", nil
	}
	return out.String(), nil
}
