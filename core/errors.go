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


package core

import "errors"

// Domain validation errors
var (
	// ErrEmptyQuery indicates a query is empty or whitespace-only.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmptyText indicates a passage is empty or whitespace-only.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidThreshold indicates a threshold outside the 0-100 range.
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

	// ErrInvalidTopK indicates a non-positive result count.
	ErrInvalidTopK = errors.New("top_k must be positive")

	// ErrInvalidLimit indicates a non-positive result limit.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidMatchType indicates an unrecognized match type value.
	ErrInvalidMatchType = errors.New("invalid match type")
)
