package feed

import "errors"

var (
	// ErrSourceUnreachable is returned when the feed could not be retrieved:
	// a malformed URL, a transport failure, or a non-2xx response.
	ErrSourceUnreachable = errors.New("feed source unreachable")

	// ErrInvalidFeed is returned when the retrieved document is not a
	// recognisable RSS, Atom or JSON feed.
	ErrInvalidFeed = errors.New("invalid feed document")

	// ErrFeedTooLarge is returned when the response body exceeds the
	// reader's size limit. It is always wrapped with ErrSourceUnreachable.
	ErrFeedTooLarge = errors.New("feed too large")
)
