package state

import "github.com/roach88/chatsync/internal/model"

// Supersede replaces the temp group tempID with the confirmed group g.
//
// The temp entry is deleted, its message sequence is appended to g's
// sequence (after anything already stored for g.ID), and a selection
// pointing at the temp id follows to g.ID. Returns the number of messages
// migrated. If tempID is absent, g is simply upserted.
func (s *State) Supersede(tempID string, g model.Group) int {
	s.Groups.Delete(tempID)
	s.Groups.Upsert(g.ID, g.Clone())

	msgs, existed := s.GroupMessages.Rename(tempID, g.ID)
	if existed {
		s.GroupMessages.Append(g.ID, msgs...)
	}
	s.GroupMessages.Ensure(g.ID)

	if s.SelectedGroupID == tempID {
		s.SelectedGroupID = g.ID
	}
	return len(msgs)
}
