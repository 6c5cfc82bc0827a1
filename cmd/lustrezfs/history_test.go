package main

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sigreer/lustrezfs/internal/db"
)

func TestQueryHistory(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	for _, ds := range []string{"tank/mdt0", "tank/ost0"} {
		if err := database.RecordTarget(&db.TargetRecord{Dataset: ds, Pool: "tank"}); err != nil {
			t.Fatal(err)
		}
	}
	op, err := database.RecordEvent("", "tank/ost0", db.EventMkfs, db.StatusOK, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := database.RecordEvent(op, "tank/ost0", db.EventWrite, db.StatusOK, 0, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := database.RecordEvent("", "tank/mdt0", db.EventRead, db.StatusOK, 0, nil); err != nil {
		t.Fatal(err)
	}

	type view struct {
		Targets []string
		Events  []string
	}

	for name, tc := range map[string]struct {
		dataset string
		opID    string
		exp     view
	}{
		"everything": {
			exp: view{
				Targets: []string{"tank/mdt0", "tank/ost0"},
				Events:  []string{"tank/mdt0 read", "tank/ost0 write", "tank/ost0 mkfs"},
			},
		},
		"one dataset": {
			dataset: "tank/ost0",
			exp: view{
				Targets: []string{"tank/ost0"},
				Events:  []string{"tank/ost0 write", "tank/ost0 mkfs"},
			},
		},
		"one operation": {
			dataset: "tank/mdt0",
			opID:    op,
			exp: view{
				Events: []string{"tank/ost0 mkfs", "tank/ost0 write"},
			},
		},
		"unknown dataset": {
			dataset: "tank/none",
		},
	} {
		t.Run(name, func(t *testing.T) {
			targets, events, err := queryHistory(database, tc.dataset, tc.opID, 10)
			if err != nil {
				t.Fatal(err)
			}

			var got view
			for _, target := range targets {
				got.Targets = append(got.Targets, target.Dataset)
			}
			for _, ev := range events {
				got.Events = append(got.Events, ev.Dataset+" "+ev.EventType)
			}
			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Fatalf("unexpected history (-want, +got):\n%s", diff)
			}
		})
	}
}
