package network_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/network"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type echo struct {
	Type    string `json:"type"`
	TraceID string `json:"trace_id"`
}

func startServer(t *testing.T, cfg network.Config) (*network.Server, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to listen: %v", failed, err)
	}

	srv := network.New(cfg)
	srv.Handle("echo", func(ctx context.Context, msg wire.Message) (any, error) {
		return echo{Type: msg.Type, TraceID: network.GetTraceID(ctx)}, nil
	})

	go srv.Serve(ln)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return srv, ln.Addr().String()
}

func Test_Dispatch(t *testing.T) {
	t.Log("Given the need to dispatch envelopes by type.")
	{
		var hits int32
		srv, addr := startServer(t, network.Config{MaxHandlers: 2})
		srv.Handle("count", func(ctx context.Context, msg wire.Message) (any, error) {
			atomic.AddInt32(&hits, 1)
			return nil, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var reply echo
		if err := wire.DefaultClient.Request(ctx, addr, "echo", nil, &reply); err != nil {
			t.Fatalf("\t%s\tShould be able to get a reply: %v", failed, err)
		}

		if reply.Type != "echo" || reply.TraceID == "" {
			t.Fatalf("\t%s\tShould get the right reply: %+v", failed, reply)
		}
		t.Logf("\t%s\tShould get a reply with a trace id.", success)

		for i := 0; i < 5; i++ {
			if err := wire.DefaultClient.Send(ctx, addr, "count", nil); err != nil {
				t.Fatalf("\t%s\tShould be able to send: %v", failed, err)
			}
		}

		deadline := time.Now().Add(5 * time.Second)
		for atomic.LoadInt32(&hits) != 5 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}

		if n := atomic.LoadInt32(&hits); n != 5 {
			t.Fatalf("\t%s\tShould handle every message, got %d.", failed, n)
		}
		t.Logf("\t%s\tShould handle every message.", success)
	}
}

func Test_Malformed(t *testing.T) {
	t.Log("Given the need to survive malformed input.")
	{
		var logged int32
		ev := func(v string, args ...any) {
			atomic.AddInt32(&logged, 1)
		}

		_, addr := startServer(t, network.Config{EvHandler: ev})

		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to dial: %v", failed, err)
		}
		wire.WriteFrame(conn, []byte("not json"), 0)
		conn.Close()

		conn, err = net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to dial: %v", failed, err)
		}
		conn.Write([]byte{0xff, 0xff, 0xff, 0xff})
		conn.Close()
		t.Logf("\t%s\tShould be able to send garbage.", success)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var reply echo
		if err := wire.DefaultClient.Request(ctx, addr, "echo", nil, &reply); err != nil {
			t.Fatalf("\t%s\tShould keep serving after malformed input: %v", failed, err)
		}
		t.Logf("\t%s\tShould keep serving after malformed input.", success)

		err = wire.DefaultClient.Request(ctx, addr, "unknown", nil, &reply)
		if err == nil {
			t.Fatalf("\t%s\tShould get no reply for an unknown type.", failed)
		}
		t.Logf("\t%s\tShould get no reply for an unknown type.", success)
	}
}

func Test_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to listen: %v", failed, err)
	}

	srv := network.New(network.Config{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("\t%s\tShould shut down cleanly: %v", failed, err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, network.ErrServerClosed) {
			t.Fatalf("\t%s\tShould report the server closed: %v", failed, err)
		}
	case <-time.After(time.Second):
		t.Fatalf("\t%s\tShould return from serve after shutdown.", failed)
	}
	t.Logf("\t%s\tShould return from serve after shutdown.", success)
}
