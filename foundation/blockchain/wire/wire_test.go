package wire_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Envelope(t *testing.T) {
	t.Log("Given the need to put the type beside the payload fields.")
	{
		data, err := wire.Encode(wire.TypeTransaction, database.NewTx("alice", "bob", 10))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to encode the transaction.", success)

		var flat map[string]any
		if err := json.Unmarshal(data, &flat); err != nil {
			t.Fatalf("\t%s\tShould produce a JSON object: %v", failed, err)
		}

		if flat["type"] != wire.TypeTransaction || flat["sender"] != "alice" || flat["recipient"] != "bob" || flat["amount"] != 10.0 {
			t.Logf("\t%s\tgot: %s", failed, data)
			t.Fatalf("\t%s\tShould have the fields flattened beside the type.", failed)
		}
		t.Logf("\t%s\tShould have the fields flattened beside the type.", success)

		msg, err := wire.Parse(data)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to parse the envelope: %v", failed, err)
		}

		var tx database.Tx
		if err := msg.Decode(&tx); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the payload: %v", failed, err)
		}

		if tx != database.NewTx("alice", "bob", 10) {
			t.Fatalf("\t%s\tShould get back the same transaction: %v", failed, tx)
		}
		t.Logf("\t%s\tShould get back the same transaction.", success)

		data, err = wire.Encode(wire.TypePeerDiscovery, wire.PeerDiscovery{Peers: []peer.Peer{peer.New("127.0.0.1", 5001)}})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode peers: %v", failed, err)
		}

		if !bytes.Contains(data, []byte(`"peers":[["127.0.0.1",5001]]`)) {
			t.Logf("\t%s\tgot: %s", failed, data)
			t.Fatalf("\t%s\tShould encode peers as pairs.", failed)
		}
		t.Logf("\t%s\tShould encode peers as pairs.", success)

		data, err = wire.Encode(wire.TypeGetPeers, nil)
		if err != nil || string(data) != `{"type":"get_peers"}` {
			t.Fatalf("\t%s\tShould encode a bare request: %s %v", failed, data, err)
		}
		t.Logf("\t%s\tShould encode a bare request.", success)
	}
}

func Test_Malformed(t *testing.T) {
	type table struct {
		name string
		data string
	}

	tt := []table{
		{name: "not json", data: "hello"},
		{name: "no type", data: `{"sender":"a"}`},
		{name: "array", data: `[1,2]`},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			if _, err := wire.Parse([]byte(tst.data)); err == nil {
				t.Fatalf("Test %s:\tShould reject a malformed envelope.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Frame(t *testing.T) {
	t.Log("Given the need to frame messages on a stream.")
	{
		var buf bytes.Buffer
		if err := wire.WriteFrame(&buf, []byte(`{"type":"get_peers"}`), 0); err != nil {
			t.Fatalf("\t%s\tShould be able to write a frame: %v", failed, err)
		}
		if err := wire.WriteFrame(&buf, []byte(`{"type":"chain_request"}`), 0); err != nil {
			t.Fatalf("\t%s\tShould be able to write a frame: %v", failed, err)
		}

		first, err := wire.ReadFrame(&buf, 0)
		if err != nil || string(first) != `{"type":"get_peers"}` {
			t.Fatalf("\t%s\tShould read the first frame back: %s %v", failed, first, err)
		}

		second, err := wire.ReadFrame(&buf, 0)
		if err != nil || string(second) != `{"type":"chain_request"}` {
			t.Fatalf("\t%s\tShould read the second frame back: %s %v", failed, second, err)
		}
		t.Logf("\t%s\tShould read frames back in order.", success)

		if err := wire.WriteFrame(&buf, make([]byte, 64), 32); !errors.Is(err, wire.ErrFrameTooLarge) {
			t.Fatalf("\t%s\tShould refuse to write an oversized frame: %v", failed, err)
		}

		buf.Reset()
		wire.WriteFrame(&buf, make([]byte, 64), 0)
		if _, err := wire.ReadFrame(&buf, 32); !errors.Is(err, wire.ErrFrameTooLarge) {
			t.Fatalf("\t%s\tShould refuse to read an oversized frame: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse oversized frames.", success)
	}
}
