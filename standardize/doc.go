// Package standardize rewrites free text so that mentions of catalog
// terms appear in their canonical form. It extracts candidate spans as
// word n-grams, ranks each span against the catalog, resolves overlaps
// greedily, and rebuilds the passage with the winning replacements.
package standardize
