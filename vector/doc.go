// Package vector builds and queries the term embedding index.
//
// The index is constructed once at startup by embedding every catalog
// term through the configured provider, and is queried per request for
// semantic match candidates. Term ids in the index are the catalog ids.
package vector
