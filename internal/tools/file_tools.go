package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/vinayprograms/taskagent/internal/sandbox"
)

// fileNotFound is the shape the agent loop's missing-file guard watches
// for. Keep "file" and "not found" in the text.
func fileNotFound(path, dir string) error {
	return fmt.Errorf("file '%s' not found in %s", path, dir)
}

// regularFileNames lists non-hidden regular files in dir, sorted.
func regularFileNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a half-written file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// splitLines mirrors line counting where a trailing newline does not
// produce a phantom empty line.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// --- list_dir ---

type listDirTool struct {
	res *sandbox.Resolver
}

type listDirArgs struct {
	Path string `json:"path"`
}

func (t *listDirTool) Name() string { return "list_dir" }

func (t *listDirTool) Description() string {
	return "List the entries of a directory inside the working directory. Directories are shown with a trailing slash."
}

func (t *listDirTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory path relative to the working directory. Defaults to the working directory itself.",
			},
		},
		"required": []string{},
	}
}

func (t *listDirTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a listDirArgs
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	display := a.Path
	if display == "" {
		display = "."
	}

	abs, err := t.res.Resolve(display)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("directory '%s' not found", display)
		}
		return "", fmt.Errorf("could not list '%s': %v", display, err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return fmt.Sprintf("No entries found in '%s'.", display), nil
	}
	return fmt.Sprintf("Entries in '%s':\n%s", display, strings.Join(names, "\n")), nil
}

// --- read_file ---

type readFileTool struct {
	res *sandbox.Resolver
}

type readFileArgs struct {
	Path string `json:"path"`
}

func (t *readFileTool) Name() string { return "read_file" }

func (t *readFileTool) Description() string {
	return "Read the full content of a text file in the working directory."
}

func (t *readFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File path relative to the working directory (e.g., 'notes.txt' or 'sub/notes.txt').",
			},
		},
		"required": []string{"path"},
	}
}

func (t *readFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a readFileArgs
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "path", Reason: "is required"}
	}

	abs, err := t.res.Resolve(a.Path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			dir := filepath.Dir(abs)
			available := regularFileNames(dir)
			availableStr := "no files available"
			if len(available) > 0 {
				availableStr = strings.Join(available, ", ")
			}
			return "", fmt.Errorf("file '%s' not found in %s. Available files: %s.", a.Path, dir, availableStr)
		}
		return "", fmt.Errorf("could not read file '%s': %v", a.Path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file '%s' does not appear to be readable text", a.Path)
	}
	return string(data), nil
}

// --- write_file ---

type writeFileTool struct {
	res *sandbox.Resolver
}

type writeFileArgs struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Overwrite bool   `json:"overwrite"`
}

func (t *writeFileTool) Name() string { return "write_file" }

func (t *writeFileTool) Description() string {
	return "Create or overwrite a text file in the working directory. Parent directories are created as needed."
}

func (t *writeFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File path relative to the working directory (e.g., 'new.txt').",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to save.",
			},
			"overwrite": map[string]interface{}{
				"type":        "boolean",
				"description": "If true, overwrite if the file already exists.",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *writeFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a writeFileArgs
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "path", Reason: "is required"}
	}
	if _, ok := args["content"]; !ok {
		return "", &ArgumentError{Tool: t.Name(), Param: "content", Reason: "is required"}
	}

	abs, err := t.res.Resolve(a.Path)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(abs)
	if _, statErr := os.Lstat(abs); statErr == nil && !a.Overwrite {
		return "", fmt.Errorf("file '%s' already exists in %s. Set overwrite=true to replace it.", a.Path, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create directories for '%s': %v", a.Path, err)
	}
	if err := atomicWrite(abs, []byte(a.Content)); err != nil {
		return "", fmt.Errorf("could not write file '%s': %v", a.Path, err)
	}
	return fmt.Sprintf("File '%s' saved successfully in %s.", a.Path, dir), nil
}

// --- append_to_file ---

type appendFileTool struct {
	res *sandbox.Resolver
}

type appendFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *appendFileTool) Name() string { return "append_to_file" }

func (t *appendFileTool) Description() string {
	return "Append content to the end of a text file. The file is created if it does not exist."
}

func (t *appendFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File path relative to the working directory.",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Text to append.",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *appendFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a appendFileArgs
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "path", Reason: "is required"}
	}
	if _, ok := args["content"]; !ok {
		return "", &ArgumentError{Tool: t.Name(), Param: "content", Reason: "is required"}
	}

	abs, err := t.res.Resolve(a.Path)
	if err != nil {
		return "", err
	}

	info, statErr := os.Stat(abs)
	if statErr == nil && info.IsDir() {
		return "", fmt.Errorf("'%s' is a directory, not a file", a.Path)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("could not create directories for '%s': %v", a.Path, err)
	}

	payload := a.Content
	if statErr == nil && info.Size() > 0 {
		payload = "\n" + a.Content
	}

	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("could not open file '%s': %v", a.Path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(payload); err != nil {
		return "", fmt.Errorf("could not append to file '%s': %v", a.Path, err)
	}
	return fmt.Sprintf("Content appended to file '%s'.", a.Path), nil
}

// --- delete_file ---

type deleteFileTool struct {
	res *sandbox.Resolver
}

type deleteFileArgs struct {
	Path string `json:"path"`
}

func (t *deleteFileTool) Name() string { return "delete_file" }

func (t *deleteFileTool) Description() string {
	return "Remove a file from the working directory. Directories cannot be removed."
}

func (t *deleteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path of the file to remove.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *deleteFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a deleteFileArgs
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "path", Reason: "is required"}
	}

	abs, err := t.res.Resolve(a.Path)
	if err != nil {
		return "", err
	}

	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fileNotFound(a.Path, filepath.Dir(abs))
		}
		return "", fmt.Errorf("could not access '%s': %v", a.Path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("'%s' is a directory, not a file", a.Path)
	}

	if err := os.Remove(abs); err != nil {
		return "", fmt.Errorf("could not remove file '%s': %v", a.Path, err)
	}
	return fmt.Sprintf("File '%s' removed from %s.", a.Path, filepath.Dir(abs)), nil
}

// --- rename_file ---

type renameFileTool struct {
	res *sandbox.Resolver
}

type renameFileArgs struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

func (t *renameFileTool) Name() string { return "rename_file" }

func (t *renameFileTool) Description() string {
	return "Rename or move a file within the working directory."
}

func (t *renameFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"old_path": map[string]interface{}{
				"type":        "string",
				"description": "Current file path.",
			},
			"new_path": map[string]interface{}{
				"type":        "string",
				"description": "New file path.",
			},
		},
		"required": []string{"old_path", "new_path"},
	}
}

func (t *renameFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a renameFileArgs
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	if a.OldPath == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "old_path", Reason: "is required"}
	}
	if a.NewPath == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "new_path", Reason: "is required"}
	}

	oldAbs, err := t.res.Resolve(a.OldPath)
	if err != nil {
		return "", err
	}
	newAbs, err := t.res.Resolve(a.NewPath)
	if err != nil {
		return "", err
	}

	if _, err := os.Lstat(oldAbs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fileNotFound(a.OldPath, filepath.Dir(oldAbs))
		}
		return "", fmt.Errorf("could not access '%s': %v", a.OldPath, err)
	}
	if _, err := os.Lstat(newAbs); err == nil {
		return "", fmt.Errorf("a file named '%s' already exists in %s", a.NewPath, filepath.Dir(newAbs))
	}

	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return "", fmt.Errorf("could not create directories for '%s': %v", a.NewPath, err)
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		return "", fmt.Errorf("could not rename '%s': %v", a.OldPath, err)
	}
	return fmt.Sprintf("File renamed from '%s' to '%s'.", a.OldPath, a.NewPath), nil
}

// --- search_in_files ---

type searchFilesTool struct {
	res *sandbox.Resolver
}

type searchFilesArgs struct {
	Term string `json:"term"`
}

func (t *searchFilesTool) Name() string { return "search_in_files" }

func (t *searchFilesTool) Description() string {
	return "Search for a term in all text files under the working directory (case-insensitive)."
}

func (t *searchFilesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"term": map[string]interface{}{
				"type":        "string",
				"description": "Term to search for (case-insensitive).",
			},
		},
		"required": []string{"term"},
	}
}

func (t *searchFilesTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a searchFilesArgs
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	term := strings.TrimSpace(a.Term)
	if term == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "term", Reason: "is required"}
	}

	root := t.res.Root()
	needle := strings.ToLower(term)
	var results []string
	scanned := 0

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil || !utf8.Valid(data) {
			return nil
		}
		scanned++
		content := string(data)
		if !strings.Contains(strings.ToLower(content), needle) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = name
		}
		results = append(results, matchSnippets(rel, content, needle))
		return nil
	})

	if scanned == 0 {
		return fmt.Sprintf("No files found in '%s'.", root), nil
	}
	if len(results) == 0 {
		return fmt.Sprintf("No occurrences of '%s' found in the files in '%s'.", term, root), nil
	}
	return fmt.Sprintf("Results for '%s':\n\n%s", term, strings.Join(results, "\n\n====================\n\n")), nil
}

// matchSnippets renders up to 3 matching lines of a file, each with one
// line of surrounding context.
func matchSnippets(name, content, needle string) string {
	lines := splitLines(content)
	var snippets []string
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		start := i - 1
		if start < 0 {
			start = 0
		}
		end := i + 2
		if end > len(lines) {
			end = len(lines)
		}
		snippet := strings.Join(lines[start:end], "\n")
		snippets = append(snippets, fmt.Sprintf("(Line %d)\n%s", i+1, snippet))
		if len(snippets) >= 3 {
			break
		}
	}
	return fmt.Sprintf("File: %s\n%s", name, strings.Join(snippets, "\n---\n"))
}

// --- count_words ---

type countWordsTool struct {
	res *sandbox.Resolver
}

type countWordsArgs struct {
	Path string `json:"path"`
}

func (t *countWordsTool) Name() string { return "count_words" }

func (t *countWordsTool) Description() string {
	return "Count lines, words, and characters in a text file."
}

func (t *countWordsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File path relative to the working directory.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *countWordsTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a countWordsArgs
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "path", Reason: "is required"}
	}

	abs, err := t.res.Resolve(a.Path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fileNotFound(a.Path, filepath.Dir(abs))
		}
		return "", fmt.Errorf("could not read file '%s': %v", a.Path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file '%s' does not appear to be readable text", a.Path)
	}

	content := string(data)
	lines := splitLines(content)
	words := strings.Fields(content)
	chars := utf8.RuneCountInString(content)

	return fmt.Sprintf("Stats for '%s':\n- Lines: %d\n- Words: %d\n- Characters: %d",
		a.Path, len(lines), len(words), chars), nil
}

// --- read_file_chunk ---

type readChunkTool struct {
	res *sandbox.Resolver
}

type readChunkArgs struct {
	Path      string `json:"path"`
	StartLine *int   `json:"start_line"`
	NumLines  *int   `json:"num_lines"`
}

func (t *readChunkTool) Name() string { return "read_file_chunk" }

func (t *readChunkTool) Description() string {
	return "Read only a portion (lines) of a text file."
}

func (t *readChunkTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File path relative to the working directory.",
			},
			"start_line": map[string]interface{}{
				"type":        "integer",
				"description": "Starting line (1-based). Defaults to 1.",
			},
			"num_lines": map[string]interface{}{
				"type":        "integer",
				"description": "Number of lines to read. Defaults to 50.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *readChunkTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var a readChunkArgs
	if err := decodeArgs(t.Name(), args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", &ArgumentError{Tool: t.Name(), Param: "path", Reason: "is required"}
	}

	start := 1
	if a.StartLine != nil {
		start = *a.StartLine
	}
	if start < 1 {
		start = 1
	}
	count := 50
	if a.NumLines != nil {
		count = *a.NumLines
	}
	if count <= 0 {
		return "", &ArgumentError{Tool: t.Name(), Param: "num_lines", Reason: "must be greater than zero"}
	}

	abs, err := t.res.Resolve(a.Path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fileNotFound(a.Path, filepath.Dir(abs))
		}
		return "", fmt.Errorf("could not read file '%s': %v", a.Path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file '%s' does not appear to be readable text", a.Path)
	}

	lines := splitLines(string(data))
	startIdx := start - 1
	if startIdx >= len(lines) {
		return fmt.Sprintf("No content in lines %d-%d.", start, start+count-1), nil
	}
	endIdx := startIdx + count
	if endIdx > len(lines) {
		endIdx = len(lines)
	}
	chunk := lines[startIdx:endIdx]

	return fmt.Sprintf("Lines %d-%d of '%s':\n%s",
		start, start+len(chunk)-1, a.Path, strings.Join(chunk, "\n")), nil
}
