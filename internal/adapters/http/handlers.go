package http

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

type createSessionRequest struct {
	View   string             `json:"view"`
	Center *domain.Coordinate `json:"center,omitempty"`
}

// CreateSessionHandler opens a planning session on an attached browser view.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		req.View = strings.TrimSpace(req.View)
		if req.View == "" {
			return errBadRequest(c, "view is required")
		}
		if req.Center != nil {
			if err := req.Center.Validate(); err != nil {
				return errBadRequest(c, err.Error())
			}
		}

		sess, err := deps.Sessions.Open(c.UserContext(), req.View, req.Center)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sess.Describe())
	}
}

// GetSessionHandler returns a session with its form state.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(sess.Describe())
	}
}

// DeleteSessionHandler disposes a session's surface.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ClickHandler delivers a map click, as if the browser had sent it.
func ClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var at domain.Coordinate
		if err := c.BodyParser(&at); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		snap, err := deps.Sessions.Click(c.UserContext(), c.Params("id"), at)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// PreferencesHandler replaces the form's preferences. The body is a full
// Preferences value.
func PreferencesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var prefs domain.Preferences
		if err := c.BodyParser(&prefs); err != nil {
			if errors.Is(err, domain.ErrInvalidPreferences) {
				return errBadRequest(c, err.Error())
			}
			return errBadRequest(c, "invalid request body")
		}
		snap, err := deps.Sessions.SetPreferences(c.UserContext(), c.Params("id"), prefs)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// SubmitHandler plans and draws a route for the session.
func SubmitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := deps.Planner.Submit(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

// RetryHandler re-opens a failed form.
func RetryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.Retry(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// SceneHandler returns everything currently drawn on the session surface.
func SceneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scene, err := deps.Sessions.Scene(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(scene)
	}
}

// CrimesHandler lists street-level incidents around a point.
func CrimesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Crimes == nil {
			return errUnavailable(c, "crime feed not configured")
		}
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return errBadRequest(c, "lat and lng are required")
		}
		at, err := domain.NewCoordinate(lng, lat)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		incidents := deps.Crimes.FetchIncidents(c.UserContext(), at, c.Query("month"), c.Query("category"))

		offset, limit := pageParams(c, 100, 500)
		pg := Pagination{Offset: offset, Limit: limit, Total: len(incidents)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: paginate(incidents, pg), Pagination: pg})
	}
}

// PhotoHandler redirects to the image behind a place photo reference.
func PhotoHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Photos == nil {
			return errUnavailable(c, "photos not configured")
		}
		ref := c.Params("ref")
		if ref == "" || len(ref) > 1024 {
			return errBadRequest(c, "invalid photo reference")
		}
		u, err := deps.Photos.Resolve(c.UserContext(), ref)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Redirect(u, fiber.StatusFound)
	}
}

// MapConfigHandler returns the base map settings for the browser.
func MapConfigHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Map)
	}
}
