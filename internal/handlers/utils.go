package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"schedge-backend/internal/common"
	"schedge-backend/internal/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const roomCacheTTL = 5 * time.Minute

// saveAttempts bounds the reload-and-reapply loop on revision conflicts.
const saveAttempts = 3

// getAuthenticatedUserFromJWT returns the authenticated user resolved from
// the bearer token. Returns nil and false if the user is not authenticated
// or not found.
func getAuthenticatedUserFromJWTCommon(c echo.Context, jwtIssuer common.JWTIssuer, db *gorm.DB) (*models.User, bool) {
	email, err := jwtIssuer.GetUserEmail(c)
	if err != nil {
		return nil, false
	}

	user, err := models.GetUserByEmail(db, email)
	if err != nil {
		return nil, false
	}

	return user, true
}

func (h *RoomHandler) getAuthenticatedUserFromJWT(c echo.Context) (*models.User, bool) {
	return getAuthenticatedUserFromJWTCommon(c, h.JwtIssuer, h.DB)
}

// domainHTTPError maps model errors onto the API's status contract: unknown
// or malformed ids are 404, rule violations are 400. Nothing surfaces as 5xx.
func domainHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, models.ErrInvalidRoomID),
		errors.Is(err, models.ErrRoomNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Room does not exist")
	case errors.Is(err, models.ErrMemberNotFound):
		return echo.NewHTTPError(http.StatusNotFound, models.ErrMemberNotFound.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// mutateRoom runs the load -> mutate -> compare-and-swap save cycle for one
// room. When another writer bumps the revision between our load and save, the
// mutation is reapplied against a fresh copy of the document.
func (h *RoomHandler) mutateRoom(c echo.Context, roomID string, mutate func(*models.Room) error) (*models.Room, error) {
	for attempt := 0; attempt < saveAttempts; attempt++ {
		room, err := models.GetRoomByID(h.DB, roomID)
		if err != nil {
			return nil, err
		}

		if err := mutate(room); err != nil {
			return nil, err
		}

		err = models.SaveRoom(h.DB, room)
		if errors.Is(err, models.ErrRevisionConflict) {
			c.Logger().Warnf("Revision conflict on room %s, retrying", roomID)
			continue
		}
		if err != nil {
			return nil, err
		}

		h.invalidateRoomCache(roomID)
		return room, nil
	}
	return nil, models.ErrRevisionConflict
}

// Room cache helpers. Redis is optional; with no client configured every
// lookup is a miss.

func (h *RoomHandler) getCachedRoom(ctx context.Context, roomID string) (*models.Room, bool) {
	if h.Redis == nil {
		return nil, false
	}

	raw, err := h.Redis.Get(ctx, roomCacheKey(roomID)).Bytes()
	if err != nil {
		return nil, false
	}

	var room models.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, false
	}
	return &room, true
}

func (h *RoomHandler) cacheRoom(ctx context.Context, room *models.Room) {
	if h.Redis == nil {
		return
	}

	raw, err := json.Marshal(room)
	if err != nil {
		return
	}
	h.Redis.Set(ctx, roomCacheKey(room.ID), raw, roomCacheTTL)
}

func (h *RoomHandler) invalidateRoomCache(roomID string) {
	if h.Redis == nil {
		return
	}
	h.Redis.Del(context.Background(), roomCacheKey(roomID))
}

func roomCacheKey(roomID string) string {
	return "room:" + roomID
}
