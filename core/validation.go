package core

import "fmt"

// ValidatePost validates a Post before it is written.
//
// Validation rules:
//   - Thesis must not be empty
//   - PublishedAt must be set
//
// NOT validated:
//   - Title and URL (entries may lack either; the natural key still applies)
//   - ThemeId (checked separately, since a first post gets its theme in the same write)
//   - ID and IngestedAt (assigned by the store)
func ValidatePost(post *Post) error {
	if post == nil {
		return fmt.Errorf("%w: post is nil", ErrInvalidPost)
	}

	if post.Thesis == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrEmptyThesis)
	}

	if post.PublishedAt.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrMissingTimestamp)
	}

	return nil
}

// ValidateAssignedPost validates a Post that must already reference a theme.
func ValidateAssignedPost(post *Post) error {
	if err := ValidatePost(post); err != nil {
		return err
	}
	if post.ThemeId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrMissingTheme)
	}
	return nil
}
