// Package peer maintains the peer related information such as the set
// of known peers and their status.
package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Peer represents information about a Node in the network. Two peers are
// the same peer when host and port match.
type Peer struct {
	Host string
	Port int
}

// New constructs a new peer value.
func New(host string, port int) Peer {
	return Peer{
		Host: host,
		Port: port,
	}
}

// Parse converts a host:port string into a peer.
func Parse(hostPort string) (Peer, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Peer{}, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Peer{}, fmt.Errorf("invalid port %q", portStr)
	}

	return New(host, port), nil
}

// Addr returns the dialable address of the peer.
func (p Peer) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// String implements the fmt.Stringer interface.
func (p Peer) String() string {
	return p.Addr()
}

// Match validates if the specified peer matches this node.
func (p Peer) Match(other Peer) bool {
	return p == other
}

// IsZero reports whether the peer has no address.
func (p Peer) IsZero() bool {
	return p.Host == "" || p.Port == 0
}

// MarshalJSON writes the peer as a two element array [host, port].
func (p Peer) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Host, p.Port})
}

// UnmarshalJSON reads a peer from [host, port] or {"host":...,"port":...}.
func (p *Peer) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("peer: expected [host, port], got %d elements", len(pair))
		}
		if err := json.Unmarshal(pair[0], &p.Host); err != nil {
			return fmt.Errorf("peer host: %w", err)
		}
		if err := json.Unmarshal(pair[1], &p.Port); err != nil {
			return fmt.Errorf("peer port: %w", err)
		}
		return nil
	}

	var obj struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("peer: expected [host, port] or {host, port}")
	}

	p.Host = obj.Host
	p.Port = obj.Port
	return nil
}

// =============================================================================

// Status represents information about the status of any given peer.
type Status struct {
	Peer     Peer      `json:"peer"`
	LastSeen time.Time `json:"last_seen"`
	Failures int       `json:"failures"`
}

// =============================================================================

// info is what the set tracks for each peer.
type info struct {
	lastSeen time.Time
	failures int
}

// PeerSet represents the data representation to maintain a set of known
// peers. The node's own address is never a member.
type PeerSet struct {
	mu   sync.RWMutex
	self Peer
	set  map[Peer]*info
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet(self Peer) *PeerSet {
	return &PeerSet{
		self: self,
		set:  make(map[Peer]*info),
	}
}

// Self returns the address of the node that owns the set.
func (ps *PeerSet) Self() Peer {
	return ps.self
}

// Add adds a new node to the set. It reports false when the peer is this
// node, has no address, or is already known.
func (ps *PeerSet) Add(peer Peer) bool {
	if peer.IsZero() || peer.Match(ps.self) {
		return false
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[peer]; exists {
		return false
	}

	ps.set[peer] = &info{lastSeen: time.Now()}
	return true
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Contains reports whether the peer is in the set.
func (ps *PeerSet) Contains(peer Peer) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	_, exists := ps.set[peer]
	return exists
}

// Len returns the number of known peers.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Copy returns a list of the known peers ordered by host and port.
func (ps *PeerSet) Copy() []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for peer := range ps.set {
		peers = append(peers, peer)
	}

	sortPeers(peers)
	return peers
}

// Statuses returns the tracking information for every known peer.
func (ps *PeerSet) Statuses() []Status {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	statuses := make([]Status, 0, len(ps.set))
	for peer, inf := range ps.set {
		statuses = append(statuses, Status{Peer: peer, LastSeen: inf.lastSeen, Failures: inf.failures})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return less(statuses[i].Peer, statuses[j].Peer)
	})
	return statuses
}

// MarkSeen records a successful exchange with the peer.
func (ps *PeerSet) MarkSeen(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if inf, exists := ps.set[peer]; exists {
		inf.lastSeen = time.Now()
		inf.failures = 0
	}
}

// MarkFailure records a failed exchange with the peer. Once the peer has
// failed max times in a row it is removed and true is returned. A max of
// zero never removes.
func (ps *PeerSet) MarkFailure(peer Peer, max int) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	inf, exists := ps.set[peer]
	if !exists {
		return false
	}

	inf.failures++
	if max > 0 && inf.failures >= max {
		delete(ps.set, peer)
		return true
	}

	return false
}

// Prune removes every peer not seen within the ttl and returns them. A ttl
// of zero disables pruning.
func (ps *PeerSet) Prune(ttl time.Duration, now time.Time) []Peer {
	if ttl <= 0 {
		return nil
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	var removed []Peer
	for peer, inf := range ps.set {
		if now.Sub(inf.lastSeen) > ttl {
			delete(ps.set, peer)
			removed = append(removed, peer)
		}
	}

	sortPeers(removed)
	return removed
}

// =============================================================================

func sortPeers(peers []Peer) {
	sort.Slice(peers, func(i, j int) bool {
		return less(peers[i], peers[j])
	})
}

func less(a, b Peer) bool {
	if a.Host != b.Host {
		return a.Host < b.Host
	}
	return a.Port < b.Port
}
