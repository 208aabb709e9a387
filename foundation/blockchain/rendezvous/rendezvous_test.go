package rendezvous_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/network"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/rendezvous"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Registry(t *testing.T) {
	t.Log("Given the need to keep a registry of nodes.")
	{
		reg := rendezvous.NewRegistry()

		peers := reg.Peers()
		if peers == nil || len(peers) != 0 {
			t.Fatalf("\t%s\tShould return an empty non nil list: %v", failed, peers)
		}
		t.Logf("\t%s\tShould return an empty non nil list.", success)

		reg.Register(peer.New("127.0.0.1", 5002))
		reg.Register(peer.New("127.0.0.1", 5001))
		if reg.Register(peer.New("127.0.0.1", 5002)) {
			t.Fatalf("\t%s\tShould not add a duplicate.", failed)
		}

		peers = reg.Peers()
		if len(peers) != 2 || peers[0].Port != 5002 || peers[1].Port != 5001 {
			t.Fatalf("\t%s\tShould keep registration order: %v", failed, peers)
		}
		t.Logf("\t%s\tShould keep registration order without duplicates.", success)
	}
}

func Test_Service(t *testing.T) {
	t.Log("Given the need to register and fetch peers over TCP.")
	{
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to listen: %v", failed, err)
		}

		srv := network.New(network.Config{})
		rendezvous.Routes(srv, rendezvous.NewRegistry(), func(string, ...any) {})
		go srv.Serve(ln)
		defer srv.Shutdown(context.Background())

		addr := ln.Addr().String()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var peers []peer.Peer
		if err := wire.DefaultClient.Request(ctx, addr, wire.TypeGetPeers, nil, &peers); err != nil {
			t.Fatalf("\t%s\tShould be able to fetch peers: %v", failed, err)
		}
		if len(peers) != 0 {
			t.Fatalf("\t%s\tShould start with no peers: %v", failed, peers)
		}
		t.Logf("\t%s\tShould start with no peers.", success)

		for _, port := range []int{5001, 5002, 5001} {
			if err := wire.DefaultClient.Send(ctx, addr, wire.TypeRegister, wire.Register{Host: "127.0.0.1", Port: port}); err != nil {
				t.Fatalf("\t%s\tShould be able to register: %v", failed, err)
			}
		}

		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if err := wire.DefaultClient.Request(ctx, addr, wire.TypeGetPeers, nil, &peers); err != nil {
				t.Fatalf("\t%s\tShould be able to fetch peers: %v", failed, err)
			}
			if len(peers) == 2 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}

		if len(peers) != 2 {
			t.Fatalf("\t%s\tShould get back two peers: %v", failed, peers)
		}
		t.Logf("\t%s\tShould get back the registered peers.", success)
	}
}
