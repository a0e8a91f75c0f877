package domain

import "time"

// Room groups peers that exchange signaling messages. Rooms are created
// lazily on first join and deleted as soon as the last member leaves; a
// room is never retained with zero members.
type Room struct {
	ID        RoomID
	Members   map[PeerID]struct{}
	CreatedAt time.Time
}

func NewRoom(id RoomID) *Room {
	return &Room{
		ID:        id,
		Members:   make(map[PeerID]struct{}),
		CreatedAt: time.Now(),
	}
}

func (r *Room) Add(id PeerID)      { r.Members[id] = struct{}{} }
func (r *Room) Remove(id PeerID)   { delete(r.Members, id) }
func (r *Room) Has(id PeerID) bool { _, ok := r.Members[id]; return ok }
func (r *Room) Empty() bool        { return len(r.Members) == 0 }

func (r *Room) MemberIDs() []PeerID {
	ids := make([]PeerID, 0, len(r.Members))
	for id := range r.Members {
		ids = append(ids, id)
	}
	return ids
}
