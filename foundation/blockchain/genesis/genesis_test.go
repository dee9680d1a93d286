package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/shardchain/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Load(t *testing.T) {
	type table struct {
		name       string
		content    string
		difficulty uint
		threshold  int
		fail       bool
	}

	tt := []table{
		{name: "valid", content: `{"date":"2026-10-01T00:00:00Z","difficulty":2,"eviction_threshold":5}`, difficulty: 2, threshold: 5},
		{name: "zero-values", content: `{}`},
		{name: "bad-json", content: `{"difficulty":`, fail: true},
		{name: "too-difficult", content: `{"difficulty":33}`, fail: true},
		{name: "negative-threshold", content: `{"eviction_threshold":-1}`, fail: true},
	}

	t.Log("Given the need to load the genesis file.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen loading a %s file.", testID, tst.name)
				{
					path := filepath.Join(t.TempDir(), "genesis.json")
					if err := os.WriteFile(path, []byte(tst.content), 0600); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to write the file: %v", failed, testID, err)
					}

					gen, err := genesis.Load(path)
					if tst.fail {
						if err == nil {
							t.Fatalf("\t%s\tTest %d:\tShould fail to load the file.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould fail to load the file.", success, testID)
						return
					}

					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to load the file: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to load the file.", success, testID)

					if gen.Difficulty != tst.difficulty || gen.EvictionThreshold != tst.threshold {
						t.Fatalf("\t%s\tTest %d:\tShould get back the settings: %+v", failed, testID, gen)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the settings.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}

		t.Logf("\tTest %d:\tWhen no path is provided.", len(tt))
		{
			gen, err := genesis.Load("")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould not fail: %v", failed, len(tt), err)
			}

			if gen != genesis.Default() {
				t.Fatalf("\t%s\tTest %d:\tShould get back the default settings: %+v", failed, len(tt), gen)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the default settings.", success, len(tt))
		}
	}
}
