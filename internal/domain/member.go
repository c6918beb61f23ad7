package domain

// ConnID identifies one transport connection. A user with two tabs open
// has two members with the same User and different ConnIDs.
type ConnID string

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User   *User
	ConnID ConnID
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, conn ConnID) *Member {
	return &Member{User: user, ConnID: conn}
}

// MemberDescriptor is the wire view of a member, prepended to relayed
// RES_*/EVNT_* frames and carried by join/leave events.
type MemberDescriptor struct {
	UID          UserID `json:"uid"`
	ConnectionID ConnID `json:"connectionId"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
}

func (m *Member) Descriptor() MemberDescriptor {
	return MemberDescriptor{
		UID:          m.User.ID,
		ConnectionID: m.ConnID,
		Name:         m.User.Username,
		Avatar:       m.User.Avatar,
	}
}
