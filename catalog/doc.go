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


// Package catalog loads and indexes the canonical term catalog.
//
// The catalog is read once at process start from a two-column CSV file
// (term, label) and is immutable afterwards. It provides O(1) exact
// lookup by normalized text, O(1) lookup by term id, and the ordered
// term list used by the fuzzy matcher and the vector index builder.
package catalog
