package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sotaru/tasuke/internal/llm"
)

// WebWorker gathers information from the web. Real search integration is a
// followup; until then it returns deterministic placeholder results so plans
// that depend on search output still flow end to end.
type WebWorker struct{}

// NewWebWorker returns a web search worker.
func NewWebWorker() *WebWorker {
	return &WebWorker{}
}

// Execute returns placeholder search results for the task description.
func (w *WebWorker) Execute(ctx context.Context, input Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", input.Description)
	fmt.Fprintf(&b, "1. Result: %s - https://example.com/search1\n", input.Description)
	fmt.Fprintf(&b, "2. Result: %s - https://example.com/search2\n", input.Description)
	return b.String(), nil
}

// LLMWorker executes a task through a completion model. It backs the coder
// and casual agent types, differing only in system prompt. When no completer
// is configured it falls back to a canned response so offline runs and tests
// still complete.
type LLMWorker struct {
	completer    llm.Completer
	systemPrompt string
	fallback     string
}

const coderSystemPrompt = `You are a coding assistant. Carry out the given task by writing the
necessary code and reporting the result. Respond with the code and a short
explanation of its output.`

const casualSystemPrompt = `You are a general-purpose writing assistant. Carry out the given task,
such as drafting a report or summarizing material. Respond with the finished
text only.`

// NewCoderWorker returns a code-task worker. completer may be nil.
func NewCoderWorker(completer llm.Completer) *LLMWorker {
	return &LLMWorker{
		completer:    completer,
		systemPrompt: coderSystemPrompt,
		fallback:     "task completed",
	}
}

// NewCasualWorker returns a writing-task worker. completer may be nil.
func NewCasualWorker(completer llm.Completer) *LLMWorker {
	return &LLMWorker{
		completer:    completer,
		systemPrompt: casualSystemPrompt,
		fallback:     "processed",
	}
}

// Execute runs the task through the model, folding in dependency results.
func (w *LLMWorker) Execute(ctx context.Context, input Input) (string, error) {
	if w.completer == nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s", w.fallback, input.Description), nil
	}
	return w.completer.Complete(ctx, w.systemPrompt, buildPrompt(input))
}

// buildPrompt renders the task plus upstream results in a stable order.
func buildPrompt(input Input) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(input.Description)
	b.WriteString("\n")

	if len(input.Context) > 0 {
		ids := make([]string, 0, len(input.Context))
		for id := range input.Context {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		b.WriteString("\nResults from prerequisite tasks:\n")
		for _, id := range ids {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", id, input.Context[id])
		}
	}
	return b.String()
}

// FileWorker reads documents referenced by a task. Reads are confined to a
// root directory; path traversal outside it is rejected.
type FileWorker struct {
	root string
}

// NewFileWorker returns a file reader rooted at dir.
func NewFileWorker(dir string) *FileWorker {
	return &FileWorker{root: dir}
}

// Execute reads every path-like token in the description and returns the
// concatenated contents.
func (w *FileWorker) Execute(ctx context.Context, input Input) (string, error) {
	paths := extractPaths(input.Description)
	if len(paths) == 0 {
		return "", fmt.Errorf("no file paths found in task description")
	}

	var b strings.Builder
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		full, err := w.resolve(p)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", p, err)
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n", p, data)
	}
	return b.String(), nil
}

// resolve joins p under the root and rejects escapes.
func (w *FileWorker) resolve(p string) (string, error) {
	full := filepath.Join(w.root, filepath.FromSlash(p))
	rel, err := filepath.Rel(w.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes workspace root", p)
	}
	return full, nil
}

// extractPaths pulls tokens that look like file paths out of free text:
// anything with an extension or a path separator, trailing punctuation
// stripped.
func extractPaths(text string) []string {
	var paths []string
	for _, field := range strings.Fields(text) {
		token := strings.Trim(field, `"'`+",.;:()")
		if token == "" || strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") {
			continue
		}
		base := filepath.Base(token)
		if ext := filepath.Ext(base); ext != "" && ext != "." && len(ext) > 1 {
			paths = append(paths, token)
		}
	}
	return paths
}
