package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// fileSnippetMax bounds how much of a mentioned file reaches the prompt.
const fileSnippetMax = 2000

// macroContext prefers the live exchange feed and falls back to the external
// spot-price API. Always returns a usable block.
func (o *Orchestrator) macroContext(ctx context.Context) string {
	if o.prices != nil {
		if price := o.prices.LivePrice(o.coin); price > 0 {
			return fmt.Sprintf("--- MACRO (LIVE FEED) ---\n%s: $%.2f\n", o.coin, price)
		}
	}
	if o.spot != nil {
		price, err := o.spot.SpotPrice(ctx)
		if err == nil && price > 0 {
			return fmt.Sprintf("--- MACRO (API FALLBACK) ---\n%s: $%.2f\n", o.coin, price)
		}
		if err != nil {
			slog.Warn("Spot price fallback failed", "error", err)
		}
	}
	return "--- MACRO ---\nData Unavailable\n"
}

// mentionsFiles reports whether a message looks like it references project
// files worth pulling into context.
func mentionsFiles(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(content, "/") ||
		strings.Contains(lower, ".md") ||
		strings.Contains(lower, ".go") ||
		strings.Contains(lower, ".json")
}

// FileContext reads bounded snippets of files mentioned in a message. Every
// candidate path is resolved against root; a path escaping root yields a
// denial line and its content never reaches the caller.
func FileContext(root, content string) string {
	if root == "" {
		return ""
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ""
	}

	var parts []string
	for _, word := range strings.Fields(content) {
		candidate := strings.Trim(word, `'"`+",.;!?")
		if !looksLikePath(candidate) {
			continue
		}

		resolved := candidate
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(absRoot, resolved)
		}
		resolved = filepath.Clean(resolved)

		if !confined(absRoot, resolved) {
			parts = append(parts, fmt.Sprintf("Access denied: %s is outside the project root.", candidate))
			continue
		}

		info, err := os.Stat(resolved)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			continue
		}
		snippet := string(data)
		if len(snippet) > fileSnippetMax {
			snippet = snippet[:fileSnippetMax] + "..."
		}
		parts = append(parts, fmt.Sprintf("FILE: %s\nCONTENT:\n%s", candidate, snippet))
	}
	return strings.Join(parts, "\n\n")
}

func looksLikePath(word string) bool {
	if word == "" || word == "/" {
		return false
	}
	lower := strings.ToLower(word)
	return strings.Contains(word, "/") ||
		strings.HasSuffix(lower, ".md") ||
		strings.HasSuffix(lower, ".go") ||
		strings.HasSuffix(lower, ".json")
}

// confined reports whether path sits at or below root after resolution.
func confined(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}
