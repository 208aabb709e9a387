package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Load(t *testing.T) {
	type table struct {
		name    string
		content string
		exp     uint
		valid   bool
	}

	tt := []table{
		{name: "missing", exp: 4, valid: true},
		{name: "partial", content: `{"difficulty":2}`, exp: 2, valid: true},
		{name: "zero difficulty", content: `{"difficulty":0}`},
		{name: "zero interval", content: `{"adjustment_interval":0}`},
		{name: "malformed", content: `{"difficulty":`},
	}

	t.Log("Given the need to load the genesis parameters.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "genesis.json")
				if tst.content != "" {
					if err := os.WriteFile(path, []byte(tst.content), 0644); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to write the file: %v", failed, testID, err)
					}
				}

				gen, err := genesis.Load(path)
				switch tst.valid {
				case true:
					if err != nil || gen.Difficulty != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould load difficulty %d: %v", failed, testID, tst.exp, err)
					}
					if gen.MiningReward != genesis.Default().MiningReward {
						t.Fatalf("\t%s\tTest %d:\tShould keep the default reward.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould load difficulty %d.", success, testID, tst.exp)

				default:
					if err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould reject the file.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the file.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}
