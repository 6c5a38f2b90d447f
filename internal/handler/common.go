package handler // handler defines http handlers

import (
	"errors"   // errors.Is maps sentinel errors onto status codes
	"log"      // unexpected failures are logged before a generic 500
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/haggle-room/internal/service"
)

// writeError maps service errors onto the JSON error contract.
// Precondition failures carry their message; anything else is logged
// and reported generically.
func writeError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrTurnFailed):
		log.Printf("%s: %v", op, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "turn failed"})
	}
	log.Printf("%s: %v", op, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
