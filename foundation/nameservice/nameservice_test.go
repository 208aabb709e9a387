package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/powledger/foundation/nameservice"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_NameService(t *testing.T) {
	t.Log("Given the need to resolve miner addresses to names.")
	{
		root := t.TempDir()

		key, err := nameservice.LoadOrCreateKey(root, "miner1")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a key: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to create a key.", success)

		again, err := nameservice.LoadOrCreateKey(root, "miner1")
		if err != nil || nameservice.Address(again) != nameservice.Address(key) {
			t.Fatalf("\t%s\tShould load the same key on the second call: %v", failed, err)
		}
		t.Logf("\t%s\tShould load the same key on the second call.", success)

		ns, err := nameservice.New(root)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the name service: %v", failed, err)
		}

		addr := nameservice.Address(key)
		if got := ns.Lookup(addr); got != "miner1" {
			t.Fatalf("\t%s\tShould resolve the address to miner1, got %q.", failed, got)
		}
		t.Logf("\t%s\tShould resolve the address to miner1.", success)

		if got := ns.Lookup("alice"); got != "alice" {
			t.Fatalf("\t%s\tShould return unknown addresses unchanged, got %q.", failed, got)
		}
		t.Logf("\t%s\tShould return unknown addresses unchanged.", success)
	}

	t.Log("Given the need to start without a key folder.")
	{
		ns, err := nameservice.New(filepath.Join(t.TempDir(), "missing"))
		if err != nil {
			t.Fatalf("\t%s\tShould tolerate a missing folder: %v", failed, err)
		}
		if len(ns.Copy()) != 0 {
			t.Fatalf("\t%s\tShould have no names.", failed)
		}
		t.Logf("\t%s\tShould tolerate a missing folder.", success)
	}
}
