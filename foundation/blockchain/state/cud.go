package state

import (
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
)

// AddKnownPeer provides the ability to add a new peer.
func (s *State) AddKnownPeer(pr peer.Peer) bool {
	return s.knownPeers.Add(pr)
}

// AddKnownPeers merges the peers into the known set and returns how many
// were new. This node and duplicates are skipped.
func (s *State) AddKnownPeers(peers []peer.Peer) int {
	var added int
	for _, pr := range peers {
		if s.knownPeers.Add(pr) {
			s.evHandler("state: AddKnownPeers: adding peer[%s]", pr)
			added++
		}
	}

	return added
}

// RemoveKnownPeer removes the peer from the known set.
func (s *State) RemoveKnownPeer(pr peer.Peer) {
	s.knownPeers.Remove(pr)
}

// PruneKnownPeers removes the peers that have not been heard from within
// the ttl.
func (s *State) PruneKnownPeers(ttl time.Duration) []peer.Peer {
	removed := s.knownPeers.Prune(ttl, time.Now())
	for _, pr := range removed {
		s.evHandler("state: PruneKnownPeers: evicted stale peer[%s]", pr)
	}

	return removed
}
