// Package wire defines the messages nodes exchange and how they are framed
// on a TCP connection.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
)

// Set of message types carried in the envelope type field.
const (
	TypeTransaction   = "transaction"
	TypeNewBlock      = "new_block"
	TypePeerDiscovery = "peer_discovery"
	TypeRegister      = "register"
	TypeGetPeers      = "get_peers"
	TypeChainRequest  = "chain_request"
)

// ErrMissingType is returned when an envelope has no type field.
var ErrMissingType = errors.New("message has no type")

// =============================================================================

// Message is a decoded envelope. The payload fields sit beside the type
// field in the same JSON object, so Data holds the whole object.
type Message struct {
	Type string
	Data []byte
}

// Parse reads the type out of an envelope.
func Parse(data []byte) (Message, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Type == "" {
		return Message{}, ErrMissingType
	}

	return Message{Type: env.Type, Data: data}, nil
}

// Decode unmarshals the payload of the envelope into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// Encode builds an envelope of the specified type with the payload fields
// flattened beside the type. A nil payload produces {"type": typ}.
func Encode(typ string, payload any) ([]byte, error) {
	fields := make(map[string]json.RawMessage)

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("payload for %s must encode as an object: %w", typ, err)
		}
	}

	t, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	fields["type"] = t

	return json.Marshal(fields)
}

// =============================================================================

// NewBlock is the payload of a new_block message.
type NewBlock struct {
	Block database.Block `json:"block"`
}

// PeerDiscovery is the payload of a peer_discovery message.
type PeerDiscovery struct {
	Peers []peer.Peer `json:"peers"`
}

// Register is the payload of a register message sent to the bootstrap.
type Register struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Peer returns the address being registered.
func (r Register) Peer() peer.Peer {
	return peer.New(r.Host, r.Port)
}
