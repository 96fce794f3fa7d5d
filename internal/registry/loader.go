// Package registry indexes GGUF model files available on local disk.
package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"chatd/internal/common/fsutil"
)

// Entry is one GGUF file found on disk.
type Entry struct {
	// Name is the path relative to the scanned directory, slash separated.
	Name string
	// Path is the absolute file path.
	Path string
	// Quant is the quantization parsed from the file name (e.g. "q4_k_m"), lower case.
	Quant string
}

var quantRe = regexp.MustCompile(`(?i)[-_.]((?:i?q\d[a-z0-9_]*)|f16|f32|bf16)$`)

// QuantOf extracts the quantization suffix of a GGUF file name.
func QuantOf(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	m := quantRe.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// LoadDir recursively scans dir for *.gguf files. A missing directory yields
// an empty result, not an error.
func LoadDir(dir string) ([]Entry, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return nil, nil
	}
	var out []Entry
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".gguf") {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		out = append(out, Entry{Name: filepath.ToSlash(rel), Path: p, Quant: QuantOf(d.Name())})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", abs, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Find picks an entry. A non-empty file matches the relative name or the base
// name exactly (case-insensitive); otherwise the first entry with the wanted
// quantization is returned. prefix, when set, restricts the search to names
// under that directory (e.g. the hub repository).
func Find(entries []Entry, prefix, file, quant string) (Entry, bool) {
	prefix = strings.Trim(prefix, "/")
	for _, e := range entries {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(e.Name), strings.ToLower(prefix)+"/") {
			continue
		}
		if file != "" {
			if strings.EqualFold(e.Name, file) || strings.EqualFold(filepath.Base(e.Path), file) ||
				strings.EqualFold(e.Name, prefix+"/"+file) {
				return e, true
			}
			continue
		}
		if quant == "" || strings.EqualFold(e.Quant, quant) {
			return e, true
		}
	}
	return Entry{}, false
}
