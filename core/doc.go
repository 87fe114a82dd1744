// Package core defines the domain model for term standardization:
// standard terms, match candidates and their types, candidate spans,
// replacement records, and request validation.
//
// The types here are plain values shared by every other package.
// The catalog owns the term data; everything else is created per
// request and discarded with the response.
package core
