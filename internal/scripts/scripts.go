// Package scripts renders the hook wrapper scripts installed for each host.
//
// A wrapper is a few lines of sh or PowerShell that exec
// `memhook hook <kind> --host <host>`. When the memhook binary has gone
// missing, blocking wrappers still print {"continue":true} so the host is
// never stalled by a broken install.
//
// Templates are looked up per kind first (<kind><ext>.tmpl) and then as the
// shared hook<ext>.tmpl. The default set is embedded; a source directory
// can override or omit individual kinds.
package scripts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/kballard/go-shellquote"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// ErrMissing is returned when a source has no template for a kind.
var ErrMissing = errors.New("hook script template not found")

// Embedded returns the built-in template set.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err) // the embed pattern above guarantees the directory
	}
	return sub
}

// Data is the template input for one script.
type Data struct {
	Kind     string
	Host     string
	Binary   string
	Blocking bool
}

// Renderer renders wrapper scripts from a template source.
type Renderer struct {
	src   fs.FS
	funcs template.FuncMap
}

// NewRenderer creates a renderer reading templates from src. A nil src
// means the embedded set.
func NewRenderer(src fs.FS) *Renderer {
	if src == nil {
		src = Embedded()
	}
	return &Renderer{
		src: src,
		funcs: template.FuncMap{
			"shquote": func(s string) string { return shellquote.Join(s) },
			"psquote": func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" },
		},
	}
}

// Render returns the script text for d.Kind with extension ext (".sh" or
// ".ps1"). Scripts always end with a newline.
func (r *Renderer) Render(ext string, d Data) ([]byte, error) {
	name, raw, err := r.lookup(d.Kind, ext)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Funcs(r.funcs).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	out := buf.Bytes()
	if ext == ".ps1" {
		out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	return out, nil
}

func (r *Renderer) lookup(kind, ext string) (string, []byte, error) {
	for _, name := range []string{kind + ext + ".tmpl", "hook" + ext + ".tmpl"} {
		data, err := fs.ReadFile(r.src, name)
		if err == nil {
			return name, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %s: %w", name, err)
		}
	}
	return "", nil, fmt.Errorf("%w: %s%s", ErrMissing, kind, ext)
}
