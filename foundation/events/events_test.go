package events_test

import (
	"testing"

	"github.com/ardanlabs/powledger/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan out filtered events.")
	{
		evts := events.New("viewer:")

		ch := evts.Acquire("a")
		if evts.Count() != 1 {
			t.Fatalf("\t%s\tShould have one listener.", failed)
		}
		t.Logf("\t%s\tShould have one listener.", success)

		evts.Send("state: AppendBlock: validate block")
		evts.Send("viewer: block: {}")

		select {
		case msg := <-ch:
			if msg != "viewer: block: {}" {
				t.Fatalf("\t%s\tShould only deliver viewer events, got %q.", failed, msg)
			}
		default:
			t.Fatalf("\t%s\tShould deliver the viewer event.", failed)
		}
		t.Logf("\t%s\tShould only deliver viewer events.", success)

		if err := evts.Release("a"); err != nil {
			t.Fatalf("\t%s\tShould be able to release the listener: %v", failed, err)
		}
		if _, open := <-ch; open {
			t.Fatalf("\t%s\tShould close the released channel.", failed)
		}
		t.Logf("\t%s\tShould close the released channel.", success)

		if err := evts.Release("a"); err == nil {
			t.Fatalf("\t%s\tShould fail to release an unknown listener.", failed)
		}
		t.Logf("\t%s\tShould fail to release an unknown listener.", success)

		evts.Acquire("b")
		evts.Shutdown()
		if evts.Count() != 0 {
			t.Fatalf("\t%s\tShould remove every listener on shutdown.", failed)
		}
		t.Logf("\t%s\tShould remove every listener on shutdown.", success)
	}
}
