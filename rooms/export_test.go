package rooms

// CleanupToken exposes the pending-cleanup token to external tests.
type CleanupToken = pendingCleanup

var NewRoom = newRoom

func PendingToken(r *Room) *CleanupToken { return r.pending }

func (s *Store) Reap(roomID string, token *CleanupToken) { s.reap(roomID, token) }
