package cli

import (
	"time"

	"north/internal/model"
)

// optionalDate parses s when the flag was given.
func optionalDate(s string, given bool) (*time.Time, error) {
	if !given {
		return nil, nil
	}
	t, err := model.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
