package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"schedge-backend/internal/common"
	"schedge-backend/internal/config"
	"schedge-backend/internal/media"
	"schedge-backend/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RoomHandler owns every room-scoped endpoint. Owner-scoped routes (list,
// create, delete) sit behind the JWT middleware; member and group routes are
// public so invited participants can edit a room they were linked into.
type RoomHandler struct {
	common.ServerState
}

func NewRoomHandler(db *gorm.DB, cfg *config.Config, jwt common.JWTIssuer, redis *redis.Client, mediaClient media.Client) *RoomHandler {
	return &RoomHandler{
		ServerState: common.ServerState{
			DB:        db,
			Config:    cfg,
			JwtIssuer: jwt,
			Redis:     redis,
			Media:     mediaClient,
		},
	}
}

// GetRooms lists the authenticated owner's rooms, most recently updated first.
func (h *RoomHandler) GetRooms(c echo.Context) error {
	user, isAuthenticated := h.getAuthenticatedUserFromJWT(c)
	if !isAuthenticated {
		return echo.NewHTTPError(http.StatusUnauthorized, "Request is not authorized")
	}

	rooms, err := models.GetRoomsByOwner(h.DB, user.ID)
	if err != nil {
		c.Logger().Errorf("Failed to list rooms: %v", err)
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, rooms)
}

// GetRoom fetches one room by id. Public: members join a room through a
// shared link and only hold its id.
func (h *RoomHandler) GetRoom(c echo.Context) error {
	var req struct {
		RoomID string `json:"roomId"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if room, ok := h.getCachedRoom(ctx, req.RoomID); ok {
		return c.JSON(http.StatusOK, room)
	}

	room, err := models.GetRoomByID(h.DB, req.RoomID)
	if err != nil {
		return domainHTTPError(err)
	}

	h.cacheRoom(ctx, room)
	return c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) CreateRoom(c echo.Context) error {
	user, isAuthenticated := h.getAuthenticatedUserFromJWT(c)
	if !isAuthenticated {
		return echo.NewHTTPError(http.StatusUnauthorized, "Request is not authorized")
	}

	var req struct {
		RoomName string          `json:"roomName"`
		Schedule models.Schedule `json:"schedule"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.RoomName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Please fill in all the fields")
	}

	room, err := models.CreateRoom(h.DB, user.ID, req.RoomName, req.Schedule)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) CreateMember(c echo.Context) error {
	var req struct {
		Member struct {
			Name       string   `json:"name"`
			ProfileImg string   `json:"profile_img"`
			Groups     []string `json:"groups"`
		} `json:"member"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Member.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Member name is required")
	}

	var created *models.Member
	_, err := h.mutateRoom(c, c.Param("id"), func(room *models.Room) error {
		m, err := room.AddMember(req.Member.Name, req.Member.Groups, req.Member.ProfileImg)
		if err != nil {
			return err
		}
		created = m
		return nil
	})
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, created)
}

func (h *RoomHandler) SetMemberSchedule(c echo.Context) error {
	var req struct {
		TimeSlots struct {
			MemberID  string  `json:"memberId"`
			IsSet     bool    `json:"isSet"`
			DateTimes []int64 `json:"dateTimes"`
		} `json:"timeSlots"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var slots []int64
	_, err := h.mutateRoom(c, c.Param("id"), func(room *models.Room) error {
		result, err := room.SetMemberTimeSlots(req.TimeSlots.MemberID, req.TimeSlots.DateTimes, req.TimeSlots.IsSet)
		if err != nil {
			return err
		}
		slots = result
		return nil
	})
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, slots)
}

func (h *RoomHandler) UpdateMemberGroups(c echo.Context) error {
	var req struct {
		MemberID string   `json:"memberId"`
		Groups   []string `json:"groups"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	_, err := h.mutateRoom(c, c.Param("id"), func(room *models.Room) error {
		return room.SetMemberGroups(req.MemberID, req.Groups)
	})
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"success": "successfully saved member groups"})
}

// GetUploadSignature signs the parameters a client needs to upload a member
// image straight to the asset host, keyed under the room's folder.
func (h *RoomHandler) GetUploadSignature(c echo.Context) error {
	roomID := c.Param("id")
	if _, err := models.GetRoomByID(h.DB, roomID); err != nil {
		return domainHTTPError(err)
	}

	if h.Media == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Media uploads are not configured")
	}

	var req struct {
		MemberID string `json:"memberId"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	timestamp := time.Now().Unix()
	signature := h.Media.SignUploadParams(map[string]string{
		"timestamp":      fmt.Sprintf("%d", timestamp),
		"folder":         media.RoomFolder(roomID),
		"public_id":      req.MemberID,
		"transformation": "w_30,h_30",
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"timestamp": timestamp,
		"signature": signature,
	})
}

// UpdateMemberProfileImg records a member's image. Multipart requests carry
// the file itself, which is proxied to the asset host under the room's
// namespace; JSON requests carry the URL of an already uploaded asset.
func (h *RoomHandler) UpdateMemberProfileImg(c echo.Context) error {
	roomID := c.Param("id")

	var memberID, imgURL string

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		memberID = c.FormValue("memberId")

		if h.Media == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Media uploads are not configured")
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Missing image file")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Failed to read image file")
		}
		defer file.Close()

		imgURL, err = h.Media.Upload(c.Request().Context(), media.RoomFolder(roomID), memberID, file)
		if err != nil {
			c.Logger().Errorf("Failed to upload member image: %v", err)
			return echo.NewHTTPError(http.StatusBadRequest, "Failed to upload image")
		}
	} else {
		var req struct {
			MemberID string `json:"memberId"`
			ImgURL   string `json:"imgURL"`
		}
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		memberID = req.MemberID
		imgURL = req.ImgURL
	}

	_, err := h.mutateRoom(c, roomID, func(room *models.Room) error {
		return room.SetMemberProfileImg(memberID, imgURL)
	})
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"success": "successfully saved member profile img",
		"url":     imgURL,
	})
}

// ClearMemberProfileImg resets a member's image to a default marker.
func (h *RoomHandler) ClearMemberProfileImg(c echo.Context) error {
	var req struct {
		MemberID      string `json:"memberId"`
		NewProfileImg string `json:"newProfileImg"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	roomID := c.Param("id")
	_, err := h.mutateRoom(c, roomID, func(room *models.Room) error {
		return room.SetMemberProfileImg(req.MemberID, req.NewProfileImg)
	})
	if err != nil {
		return domainHTTPError(err)
	}

	// The stored upload is stale once the member is back on a default image.
	if h.Media != nil {
		if err := h.Media.Destroy(c.Request().Context(), media.AssetID(roomID, req.MemberID)); err != nil {
			c.Logger().Warnf("Failed to delete member image asset: %v", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"success": "cleared member profile_img"})
}

func (h *RoomHandler) DeleteMember(c echo.Context) error {
	var req struct {
		MemberID string `json:"memberId"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	roomID := c.Param("id")
	_, err := h.mutateRoom(c, roomID, func(room *models.Room) error {
		return room.RemoveMember(req.MemberID)
	})
	if err != nil {
		return domainHTTPError(err)
	}

	// Best-effort: the member is gone from the room either way.
	if h.Media != nil {
		if err := h.Media.Destroy(c.Request().Context(), media.AssetID(roomID, req.MemberID)); err != nil {
			c.Logger().Warnf("Failed to delete member image asset: %v", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"success": "deleted member"})
}

func (h *RoomHandler) CreateGroup(c echo.Context) error {
	var req struct {
		Group struct {
			Name       string `json:"name"`
			ProfileImg bool   `json:"profile_img"`
		} `json:"group"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Group.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Group name is required")
	}

	var created *models.Group
	_, err := h.mutateRoom(c, c.Param("id"), func(room *models.Room) error {
		g, err := room.AddGroup(req.Group.Name, req.Group.ProfileImg)
		if err != nil {
			return err
		}
		created = g
		return nil
	})
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, created)
}

// DeleteGroup removes a group and its name from every member in one persisted
// update. Deleting a name no group carries is deliberately a no-op.
func (h *RoomHandler) DeleteGroup(c echo.Context) error {
	var req struct {
		GroupName string `json:"groupName"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	_, err := h.mutateRoom(c, c.Param("id"), func(room *models.Room) error {
		room.RemoveGroup(req.GroupName)
		return nil
	})
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"success": "deleted group"})
}

func (h *RoomHandler) SetSchedule(c echo.Context) error {
	var req struct {
		Schedule              models.Schedule `json:"schedule"`
		RemoveMemberSchedules bool            `json:"removeMemberSchedules"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	room, err := h.mutateRoom(c, c.Param("id"), func(room *models.Room) error {
		return room.SetSchedule(req.Schedule, req.RemoveMemberSchedules)
	})
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, room.Schedule)
}

// DeleteRoom removes a room. Owner only; every stored image under the room's
// asset namespace is deleted best-effort afterwards.
func (h *RoomHandler) DeleteRoom(c echo.Context) error {
	user, isAuthenticated := h.getAuthenticatedUserFromJWT(c)
	if !isAuthenticated {
		return echo.NewHTTPError(http.StatusUnauthorized, "Request is not authorized")
	}

	roomID := c.Param("id")
	room, err := models.GetRoomByID(h.DB, roomID)
	if err != nil {
		return domainHTTPError(err)
	}

	if room.OwnerID != user.ID {
		return echo.NewHTTPError(http.StatusUnauthorized, "Request is not authorized")
	}

	if err := h.DB.Where("id = ?", room.ID).Delete(&models.Room{}).Error; err != nil {
		c.Logger().Errorf("Failed to delete room: %v", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Error deleting room")
	}
	h.invalidateRoomCache(roomID)

	if h.Media != nil {
		if err := h.Media.DeleteFolder(c.Request().Context(), media.RoomFolder(roomID)); err != nil {
			c.Logger().Warnf("Failed to delete room image assets: %v", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"success": fmt.Sprintf("successfully deleted %s", room.Name)})
}
