package httpapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// environmentalRequest is the body of POST /environmental-data.
type environmentalRequest struct {
	Location        *locationBody       `json:"location" validate:"required"`
	UserPreferences profile.UserContext `json:"userPreferences"`
}

// locationBody uses pointers so a missing coordinate is distinguishable from 0.
type locationBody struct {
	Lat     *float64 `json:"lat" validate:"required,latitude"`
	Lng     *float64 `json:"lng" validate:"required,longitude"`
	Address string   `json:"address" validate:"required"`
}

func (l locationBody) toLocation() environment.Location {
	return environment.Location{
		Lat:     *l.Lat,
		Lng:     *l.Lng,
		Address: strings.TrimSpace(l.Address),
	}
}

func environmentalDataHandler(service Aggregator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req environmentalRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := req.Location.toLocation()
		uc := req.UserPreferences
		if uc.Address == "" {
			uc.Address = loc.Address
		}

		snapshot, err := service.Aggregate(c.UserContext(), loc, uc)
		if err != nil {
			if errors.Is(err, environment.ErrInvalidLocation) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return err
		}

		return c.JSON(snapshot)
	}
}
