package harness

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/humanbeeng/codelocbench/internal/astindex"
)

func TestFSToolsViewFileReturnsLineNumberedWindow(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	reg := NewRegistry()
	if err := newFSTools(reg, root); err != nil {
		t.Fatalf("newFSTools failed: %v", err)
	}

	args, _ := json.Marshal(viewFileArgs{FilePath: "main.go", Offset: 1, Limit: 10})
	out, err := reg.Handle(context.Background(), "view_file", args)
	if err != nil {
		t.Fatalf("handle view_file: %v", err)
	}
	if !strings.Contains(out, "L1: package main") {
		t.Fatalf("expected line-numbered output, got: %s", out)
	}
}

func TestFSToolsResolveRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	tools := &fsTools{root: root}
	if _, err := tools.resolve("../etc/passwd"); err == nil {
		t.Fatal("expected path escaping repo root to be rejected")
	}
}

func TestFSToolsGrepFindsMatches(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "widget.go", "package widget\n\nfunc NeedleFunc() {}\n")
	writeRepoFile(t, root, "other.go", "package widget\n")

	reg := NewRegistry()
	if err := newFSTools(reg, root); err != nil {
		t.Fatalf("newFSTools failed: %v", err)
	}

	args, _ := json.Marshal(grepArgs{Pattern: "NeedleFunc"})
	out, err := reg.Handle(context.Background(), "grep", args)
	if err != nil {
		t.Fatalf("handle grep: %v", err)
	}
	if !strings.Contains(out, "widget.go:3:") {
		t.Fatalf("expected match in widget.go, got: %s", out)
	}
	if strings.Contains(out, "other.go") {
		t.Fatalf("expected no match in other.go, got: %s", out)
	}
}

func TestFSToolsListDirectoryListsFiles(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "a.go", "package a\n")
	writeRepoFile(t, root, "sub/b.go", "package sub\n")

	reg := NewRegistry()
	if err := newFSTools(reg, root); err != nil {
		t.Fatalf("newFSTools failed: %v", err)
	}

	args, _ := json.Marshal(listDirectoryArgs{DirPath: "."})
	out, err := reg.Handle(context.Background(), "list_directory", args)
	if err != nil {
		t.Fatalf("handle list_directory: %v", err)
	}
	if !strings.Contains(out, "a.go") || !strings.Contains(out, "sub/b.go") {
		t.Fatalf("expected both files listed, got: %s", out)
	}
}

func TestSymbolToolsFindSymbolLocatesDefinition(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "widget.go", "package widget\n\nfunc NeedleFunc() {}\n")

	idx, err := astindex.Build(root)
	if err != nil {
		t.Fatalf("astindex.Build failed: %v", err)
	}

	reg := NewRegistry()
	if err := newSymbolTools(reg, idx, root); err != nil {
		t.Fatalf("newSymbolTools failed: %v", err)
	}

	args, _ := json.Marshal(findSymbolArgs{Name: "NeedleFunc"})
	out, err := reg.Handle(context.Background(), "find_symbol", args)
	if err != nil {
		t.Fatalf("handle find_symbol: %v", err)
	}
	if !strings.Contains(out, "NeedleFunc") {
		t.Fatalf("expected symbol found, got: %s", out)
	}
}
