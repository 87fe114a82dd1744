// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package match implements the matching and ranking engine.
//
// Three signals feed it:
//
//   - Exact: normalized query equals a catalog term's normalized text
//   - Fuzzy: token-order-insensitive Levenshtein similarity
//   - Semantic: cosine similarity of embedding vectors
//
// The Ranker merges the signals into one deduplicated candidate list
// with a fixed ordering policy: score descending, then exact > semantic
// > fuzzy, then term id ascending. For a fixed catalog and index
// snapshot the output is fully deterministic, and raising the threshold
// can only shrink the result set.
package match
