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
	// ErrInvalidPost indicates a Post failed validation.
	ErrInvalidPost = errors.New("invalid post")

	// ErrMissingTheme indicates a Post has no owning theme.
	ErrMissingTheme = errors.New("post must belong to a theme")

	// ErrEmptyThesis indicates the Thesis field is empty.
	ErrEmptyThesis = errors.New("thesis cannot be empty")

	// ErrMissingTimestamp indicates the publish timestamp is unset.
	ErrMissingTimestamp = errors.New("published timestamp is required")
)
