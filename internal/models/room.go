package models

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllGroupName is the sentinel group every room starts with and every member
// belongs to.
const AllGroupName = "All"

// Group is a named partition label for filtering a room's members.
type Group struct {
	Name       string `json:"name" validate:"required"`
	ProfileImg bool   `json:"profile_img"`
	All        bool   `json:"all"`
}

// Member is a participant of a room. Members live embedded in their room
// document and have no identity outside it.
type Member struct {
	ID         string   `json:"_id"`
	Name       string   `json:"name" validate:"required"`
	ProfileImg string   `json:"profile_img"`
	Groups     []string `json:"groups"`
	TimeSlots  []int64  `json:"time_slots"`
}

// Room is the unit of persistence and authorization: one owner, one schedule
// grid, and embedded members and groups. All mutation is whole-document
// read-modify-write; Revision guards saves against concurrent writers.
type Room struct {
	ID        string    `json:"_id" gorm:"unique;not null"`
	Name      string    `gorm:"not null" json:"name" validate:"required"`
	OwnerID   string    `gorm:"not null;index" json:"owner_id" validate:"required"`
	Schedule  Schedule  `gorm:"serializer:json" json:"schedule"`
	Members   []Member  `gorm:"serializer:json" json:"members"`
	Groups    []Group   `gorm:"serializer:json" json:"groups"`
	Revision  int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	// Using uuid v7 to be indexable with B-tree
	uuidV7, err := uuid.NewV7()
	if err != nil {
		return err
	}
	r.ID = uuidV7.String()

	if r.Members == nil {
		r.Members = []Member{}
	}
	if r.Groups == nil {
		r.Groups = []Group{
			{Name: AllGroupName, All: true},
		}
	}

	return
}

// SetSchedule validates and replaces the room's grid. When clearMemberSlots is
// set, every member's slot selection is wiped in the same mutation so that the
// old grid's slot ids never survive a reshape. On validation failure the room
// is left untouched.
func (r *Room) SetSchedule(s Schedule, clearMemberSlots bool) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.normalize()
	r.Schedule = s

	if clearMemberSlots {
		for i := range r.Members {
			r.Members[i].TimeSlots = []int64{}
		}
	}
	return nil
}

// AddMember appends a new member. Names are unique within a room, compared
// case-sensitively. The sentinel "All" group is always first in the member's
// group list; requested groups are kept in order with duplicates dropped.
func (r *Room) AddMember(name string, groups []string, profileImg string) (*Member, error) {
	for _, m := range r.Members {
		if m.Name == name {
			return nil, ErrDuplicateMember
		}
	}

	uuidV7, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	memberGroups := []string{AllGroupName}
	for _, g := range groups {
		if !slices.Contains(memberGroups, g) {
			memberGroups = append(memberGroups, g)
		}
	}

	r.Members = append(r.Members, Member{
		ID:         uuidV7.String(),
		Name:       name,
		ProfileImg: profileImg,
		Groups:     memberGroups,
		TimeSlots:  []int64{},
	})
	return &r.Members[len(r.Members)-1], nil
}

func (r *Room) findMember(memberID string) *Member {
	for i := range r.Members {
		if r.Members[i].ID == memberID {
			return &r.Members[i]
		}
	}
	return nil
}

// SetMemberTimeSlots mutates a member's slot selection. Additive calls union
// the given slot ids into the selection; subtractive calls remove them. The
// result is always duplicate-free, and the call is idempotent either way.
// Returns the resulting slot set.
func (r *Room) SetMemberTimeSlots(memberID string, slots []int64, additive bool) ([]int64, error) {
	m := r.findMember(memberID)
	if m == nil {
		return nil, ErrMemberNotFound
	}

	if additive {
		for _, slot := range slots {
			if !slices.Contains(m.TimeSlots, slot) {
				m.TimeSlots = append(m.TimeSlots, slot)
			}
		}
	} else {
		kept := make([]int64, 0, len(m.TimeSlots))
		for _, slot := range m.TimeSlots {
			if !slices.Contains(slots, slot) {
				kept = append(kept, slot)
			}
		}
		m.TimeSlots = kept
	}

	return m.TimeSlots, nil
}

// SetMemberGroups replaces a member's group list wholesale. The names are not
// checked against the room's groups; the client owns that mapping.
func (r *Room) SetMemberGroups(memberID string, groups []string) error {
	m := r.findMember(memberID)
	if m == nil {
		return ErrMemberNotFound
	}
	m.Groups = groups
	return nil
}

// SetMemberProfileImg records a member's image reference. The reference is an
// opaque URL or default marker; reachability is not checked.
func (r *Room) SetMemberProfileImg(memberID, ref string) error {
	m := r.findMember(memberID)
	if m == nil {
		return ErrMemberNotFound
	}
	m.ProfileImg = ref
	return nil
}

// RemoveMember deletes a member from the room by id.
func (r *Room) RemoveMember(memberID string) error {
	for i := range r.Members {
		if r.Members[i].ID == memberID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return nil
		}
	}
	return ErrMemberNotFound
}

// AddGroup appends a new group. Names are unique within a room, the sentinel
// "All" included.
func (r *Room) AddGroup(name string, profileImg bool) (*Group, error) {
	for _, g := range r.Groups {
		if g.Name == name {
			return nil, ErrDuplicateGroup
		}
	}
	r.Groups = append(r.Groups, Group{Name: name, ProfileImg: profileImg})
	return &r.Groups[len(r.Groups)-1], nil
}

// RemoveGroup deletes a group and removes its name from every member's group
// list in the same mutation, so readers never observe a half-applied cascade.
// Removing a name that no group carries is a no-op.
func (r *Room) RemoveGroup(name string) {
	for i := range r.Members {
		m := &r.Members[i]
		kept := m.Groups[:0]
		for _, g := range m.Groups {
			if g != name {
				kept = append(kept, g)
			}
		}
		m.Groups = kept
	}

	for i := range r.Groups {
		if r.Groups[i].Name == name {
			r.Groups = append(r.Groups[:i], r.Groups[i+1:]...)
			return
		}
	}
}

// GetRoomByID loads a whole room document.
func GetRoomByID(db *gorm.DB, id string) (*Room, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidRoomID
	}

	var room Room
	result := db.Where("id = ?", id).First(&room)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, result.Error
	}
	return &room, nil
}

// GetRoomsByOwner lists an owner's rooms, most recently updated first.
func GetRoomsByOwner(db *gorm.DB, ownerID string) ([]Room, error) {
	var rooms []Room
	if err := db.Where("owner_id = ?", ownerID).Order("updated_at DESC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom validates the schedule, enforces per-owner name uniqueness and
// persists a fresh room with the default "All" group.
func CreateRoom(db *gorm.DB, ownerID, name string, schedule Schedule) (*Room, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	schedule.normalize()

	var count int64
	if err := db.Model(&Room{}).Where("owner_id = ? AND name = ?", ownerID, name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateRoom
	}

	room := Room{
		Name:     name,
		OwnerID:  ownerID,
		Schedule: schedule,
		Members:  []Member{},
	}
	if err := db.Create(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// SaveRoom persists a mutated room with a compare-and-swap on Revision, so
// concurrent writers cannot silently clobber each other's whole-document
// saves. Callers should reload and reapply on ErrRevisionConflict.
func SaveRoom(db *gorm.DB, room *Room) error {
	prev := room.Revision
	room.Revision = prev + 1

	result := db.Model(&Room{}).
		Where("id = ? AND revision = ?", room.ID, prev).
		Select("name", "schedule", "members", "groups", "revision", "updated_at").
		Updates(room)
	if result.Error != nil {
		room.Revision = prev
		return result.Error
	}
	if result.RowsAffected == 0 {
		room.Revision = prev
		return ErrRevisionConflict
	}
	return nil
}
