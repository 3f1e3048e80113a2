// Package seedfile parses YAML batch-import files for kbctl import.
//
// File shape:
//
//	entries:
//	  - title: Webhook delivery failing
//	    problem: ...
//	    solution: ...
//	    categories: [webhooks]
//	    product: checkout
//	    api_version: "2025-07"
//	    code: |
//	      curl -s ...
//	    tags: [retry, timeout]
//	    notes: ...
package seedfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/supportstack/kbctl/internal/kb"
)

type seedEntry struct {
	Title      string   `yaml:"title"`
	Problem    string   `yaml:"problem"`
	Solution   string   `yaml:"solution"`
	Categories []string `yaml:"categories"`
	Product    string   `yaml:"product"`
	APIVersion string   `yaml:"api_version"`
	Code       string   `yaml:"code"`
	Tags       []string `yaml:"tags"`
	Notes      string   `yaml:"notes"`
}

type seedFile struct {
	Entries []seedEntry `yaml:"entries"`
}

// ParseFile reads and validates a seed file, returning drafts ready for the
// store. Source is stamped "import" on every draft.
func ParseFile(path string) ([]kb.Draft, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(b))
}

func Parse(r io.Reader) ([]kb.Draft, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(f.Entries) == 0 {
		return nil, fmt.Errorf("seed file has no entries")
	}

	drafts := make([]kb.Draft, 0, len(f.Entries))
	for i, e := range f.Entries {
		if strings.TrimSpace(e.Title) == "" {
			return nil, fmt.Errorf("entry %d: missing title", i+1)
		}
		if strings.TrimSpace(e.Problem) == "" {
			return nil, fmt.Errorf("entry %d: missing problem", i+1)
		}
		if strings.TrimSpace(e.Solution) == "" {
			return nil, fmt.Errorf("entry %d: missing solution", i+1)
		}
		drafts = append(drafts, kb.Draft{
			Title:        e.Title,
			Problem:      e.Problem,
			Solution:     e.Solution,
			Categories:   e.Categories,
			Product:      e.Product,
			APIVersion:   e.APIVersion,
			CodeExamples: e.Code,
			Tags:         e.Tags,
			Notes:        e.Notes,
			Source:       "import",
		})
	}
	return drafts, nil
}
