package models

import "errors"

// Domain rule violations. Handlers map these to HTTP status codes at the
// request boundary.
var (
	ErrInvalidRoomID    = errors.New("room id is not a valid identifier")
	ErrRoomNotFound     = errors.New("room does not exist")
	ErrMemberNotFound   = errors.New("member does not exist")
	ErrDuplicateMember  = errors.New("member name already exists")
	ErrDuplicateGroup   = errors.New("group name already exists")
	ErrDuplicateRoom    = errors.New("room already exists")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrRevisionConflict = errors.New("room was modified concurrently")
)
