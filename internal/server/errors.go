package server

import (
	"net/http"

	"github.com/labstack/echo/v5"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, errorEnvelope{Error: ErrorBody{Message: msg, Type: errType}})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeServerError(c *echo.Context, msg string) error {
	return writeError(c, http.StatusInternalServerError, "server_error", msg)
}
