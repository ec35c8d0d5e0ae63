package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"north/internal/filter"
	"north/internal/service"
)

func describeErr(err error) string {
	var pe *filter.ParseError
	if errors.As(err, &pe) {
		return fmt.Sprintf("invalid query: %s (%s at %d)", pe.Message, pe.Kind, pe.Pos)
	}
	if errors.Is(err, service.ErrInternal) {
		return "internal error: " + err.Error()
	}
	return err.Error()
}

// caretLine marks the span of pe beneath query.
func caretLine(query string, pe *filter.ParseError) string {
	width := pe.End - pe.Pos
	if width < 1 {
		width = 1
	}
	return query + "\n" + strings.Repeat(" ", pe.Pos) + strings.Repeat("^", width)
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &service.ValidationError{Field: kind, Message: fmt.Sprintf("not an id: %q", s)}
	}
	return id, nil
}
