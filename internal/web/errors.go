package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"north/internal/filter"
	"north/internal/service"
)

type apiError struct {
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Pos     *int   `json:"pos,omitempty"`
	End     *int   `json:"end,omitempty"`
	Message string `json:"message"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

// fail writes err as a JSON error. Internal failures are logged with the request id
// and reported without detail.
func fail(c echo.Context, logger *log.Logger, err error) error {
	var (
		pe *filter.ParseError
		nf *service.NotFoundError
		ve *service.ValidationError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &pe):
		pos, end := pe.Pos, pe.End
		return c.JSON(http.StatusBadRequest, errorBody{Error: apiError{Kind: pe.Kind.String(), Pos: &pos, End: &end, Message: pe.Message}})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, errorBody{Error: apiError{Kind: "not_found", Message: nf.Error()}})
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, errorBody{Error: apiError{Kind: "invalid", Field: ve.Field, Message: ve.Error()}})
	case errors.As(err, &he):
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		return c.JSON(he.Code, errorBody{Error: apiError{Kind: "http", Message: msg}})
	}

	entry := logger.WithError(err).WithFields(log.Fields{
		"requestId": c.Response().Header().Get(echo.HeaderXRequestID),
		"path":      c.Request().URL.Path,
	})
	if errors.Is(err, service.ErrInternal) {
		entry.Error("data integrity defect")
	} else {
		entry.Error("request failed")
	}
	return c.JSON(http.StatusInternalServerError, errorBody{Error: apiError{Kind: "internal", Message: "internal error"}})
}

func badRequest(field, message string) error {
	return &service.ValidationError{Field: field, Message: message}
}
