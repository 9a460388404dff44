// Package snippet writes the per-project context file.
//
// Cursor loads .cursor/rules/memhook-context.mdc as an always-applied rule.
// Claude Code does not load .claude/memhook-context.md itself; the context
// hook injects its body when the worker cannot be reached.
//
// The file is regenerated wholesale and never edited by hand.
package snippet

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/memhook/internal/fsutil"
	"github.com/HendryAvila/memhook/internal/platform"
)

// Placeholder is written when the worker had no context to give.
const Placeholder = "No memory context yet. It appears here once the memory worker has recorded activity for this project."

const notice = "<!-- Generated by memhook. Do not edit: this file is rewritten on install and by the context hook. -->"

// frontmatter is the header both hosts understand as "always apply".
type frontmatter struct {
	Description string `yaml:"description"`
	AlwaysApply bool   `yaml:"alwaysApply"`
}

// Path returns the snippet location inside workspace for host.
func Path(host platform.Host, workspace string) string {
	if host == platform.HostClaude {
		return filepath.Join(workspace, ".claude", "memhook-context.md")
	}
	return filepath.Join(workspace, ".cursor", "rules", "memhook-context.mdc")
}

// Render returns the full snippet file for text.
func Render(text string) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{
		Description: "Memory context for this project, maintained by memhook",
		AlwaysApply: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = Placeholder
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	buf.WriteString(notice)
	buf.WriteString("\n\n")
	buf.WriteString(text)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Write renders text and atomically replaces the snippet for workspace.
// It returns the path written.
func Write(host platform.Host, workspace, text string) (string, error) {
	data, err := Render(text)
	if err != nil {
		return "", err
	}
	path := Path(host, workspace)
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing context snippet: %w", err)
	}
	return path, nil
}

// Body returns the context text of a rendered snippet, without the
// frontmatter and notice.
func Body(data []byte) string {
	s := string(data)
	if rest, ok := strings.CutPrefix(s, "---\n"); ok {
		if _, after, found := strings.Cut(rest, "\n---\n"); found {
			s = after
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, notice))
	return s
}
