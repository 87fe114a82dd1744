package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/termstd/core"
)

// Entry is one raw (term, label) pair from the source data.
type Entry struct {
	Text  string
	Label string
}

// Catalog is the immutable set of canonical standard terms. It is built
// once at process start and safe for concurrent reads without locking.
type Catalog struct {
	terms       []core.StandardTerm
	byNorm      map[string]uint32
	labels      int
	fingerprint string
}

// New builds a catalog from entries. Term ids are assigned in entry
// order after deduplication; entries whose normalized text collides
// with an earlier entry are dropped, keeping the first occurrence.
func New(entries []Entry) (*Catalog, error) {
	logger := slog.Default().With("component", "catalog")

	terms := make([]core.StandardTerm, 0, len(entries))
	byNorm := make(map[string]uint32, len(entries))
	labelSet := make(map[string]struct{})

	dropped := 0
	for _, entry := range entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			return nil, ErrEmptyTermText
		}

		norm := Normalize(text)
		if norm == "" {
			// Pure punctuation normalizes to nothing; unusable as a key.
			return nil, fmt.Errorf("%w: %q", ErrEmptyTermText, entry.Text)
		}
		if _, exists := byNorm[norm]; exists {
			dropped++
			continue
		}

		id := uint32(len(terms))
		byNorm[norm] = id
		terms = append(terms, core.StandardTerm{
			Id:    id,
			Text:  text,
			Label: strings.TrimSpace(entry.Label),
		})
		if label := strings.TrimSpace(entry.Label); label != "" {
			labelSet[label] = struct{}{}
		}
	}

	if len(terms) == 0 {
		return nil, ErrEmptyCatalog
	}
	if dropped > 0 {
		logger.Info("dropped duplicate terms", "count", dropped)
	}

	texts := make([]string, len(terms))
	for i, term := range terms {
		texts[i] = term.Text
	}

	c := &Catalog{
		terms:       terms,
		byNorm:      byNorm,
		labels:      len(labelSet),
		fingerprint: core.FingerprintOf(texts),
	}
	logger.Info("catalog built", "terms", len(terms), "labels", c.labels, "fingerprint", c.fingerprint)
	return c, nil
}

// Load reads a two-column CSV file (term, label) and builds a catalog.
// The first row is treated as a header and skipped; rows with blank
// term text are dropped.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog data: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses catalog CSV data from a reader. See Load.
func Read(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []Entry
	blank := 0
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading catalog data: %w", err)
		}
		if first {
			// Header row
			first = false
			continue
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			blank++
			continue
		}

		entry := Entry{Text: record[0]}
		if len(record) > 1 {
			entry.Label = record[1]
		}
		entries = append(entries, entry)
	}

	if blank > 0 {
		slog.Default().With("component", "catalog").Info("dropped blank rows", "count", blank)
	}

	return New(entries)
}

// LookupExact returns the term whose normalized text equals the
// normalized input, if one exists.
func (c *Catalog) LookupExact(text string) (core.StandardTerm, bool) {
	id, ok := c.byNorm[Normalize(text)]
	if !ok {
		return core.StandardTerm{}, false
	}
	return c.terms[id], true
}

// Get returns the term with the given id.
func (c *Catalog) Get(id uint32) (core.StandardTerm, bool) {
	if int(id) >= len(c.terms) {
		return core.StandardTerm{}, false
	}
	return c.terms[id], true
}

// All returns the ordered term list. The returned slice is shared and
// must not be modified.
func (c *Catalog) All() []core.StandardTerm {
	return c.terms
}

// Len returns the number of terms.
func (c *Catalog) Len() int {
	return len(c.terms)
}

// Texts returns the canonical text of every term in id order.
func (c *Catalog) Texts() []string {
	texts := make([]string, len(c.terms))
	for i, term := range c.terms {
		texts[i] = term.Text
	}
	return texts
}

// Stats summarizes the catalog.
func (c *Catalog) Stats() core.CatalogStats {
	return core.CatalogStats{
		TotalTerms:   len(c.terms),
		UniqueLabels: c.labels,
		Fingerprint:  c.fingerprint,
	}
}

// Fingerprint identifies this catalog snapshot.
func (c *Catalog) Fingerprint() string {
	return c.fingerprint
}
