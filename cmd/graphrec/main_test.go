package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/rushteam/graphrec/core"
)

const edgesCSV = `user,item,weight
1,101,1.0
1,102,0.8
2,102,1.0
2,103,0.9
3,101,0.6
`

const catalogYAML = `items:
  - {id: 101, title: Alien, genres: [Action]}
  - {id: 102, title: Airplane, genres: [Comedy]}
  - {id: 103, title: Heat, genres: [Action, Drama]}
`

func setup(t *testing.T) (edges, cat string) {
	t.Helper()
	dir := t.TempDir()
	edges = filepath.Join(dir, "edges.csv")
	cat = filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(edges, []byte(edgesCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cat, []byte(catalogYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRAPHREC_CONFIG", "")
	t.Setenv("GRAPHREC_PERSIST_BACKEND", "badger")
	t.Setenv("GRAPHREC_PERSIST_BADGER_PATH", filepath.Join(dir, "badger"))
	t.Setenv("GRAPHREC_TRAIN_DIM", "8")
	t.Setenv("GRAPHREC_TRAIN_MAX_EPOCHS", "20")
	t.Setenv("GRAPHREC_TRAIN_HOLDOUT_RATIO", "0")
	t.Setenv("GRAPHREC_TRAIN_PATIENCE", "0")
	t.Setenv("GRAPHREC_LOG_LEVEL", "error")
	return edges, cat
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	if err := root.Execute(); err != nil {
		t.Fatalf("graphrec %v: %v\n%s", args, err, errOut.String())
	}
	return out.Bytes()
}

func TestTrainThenRecommend(t *testing.T) {
	edges, cat := setup(t)

	var trained struct {
		Version   core.ModelVersion `json:"version"`
		Users     int               `json:"users"`
		Items     int               `json:"items"`
		Persisted bool              `json:"persisted"`
	}
	if err := json.Unmarshal(run(t, "train", "--edges", edges), &trained); err != nil {
		t.Fatal(err)
	}
	if trained.Users != 3 || trained.Items != 3 || !trained.Persisted || trained.Version.Tag == "" {
		t.Fatalf("train output = %+v", trained)
	}

	// 不再传 --edges：必须从 badger 恢复刚才的版本
	var res core.Result
	if err := json.Unmarshal(run(t, "recommend", "--user", "1", "-k", "2"), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 2 || res.Degraded {
		t.Fatalf("recommend = %+v", res)
	}
	if res.Version != trained.Version.String() {
		t.Fatalf("served %s, trained %s", res.Version, trained.Version)
	}

	var cold core.Result
	if err := json.Unmarshal(run(t, "coldstart", "--catalog", cat, "--genres", "Action"), &cold); err != nil {
		t.Fatal(err)
	}
	if ids := cold.ItemIDs(); len(ids) != 2 || ids[0] != 101 || ids[1] != 103 {
		t.Fatalf("coldstart = %v", ids)
	}

	var ex struct {
		SharedGenres []string `json:"shared_genres"`
		Text         string   `json:"text"`
	}
	if err := json.Unmarshal(run(t, "explain", "--catalog", cat, "--item", "103", "--genres", "drama"), &ex); err != nil {
		t.Fatal(err)
	}
	if len(ex.SharedGenres) != 1 || ex.SharedGenres[0] != "Drama" || ex.Text == "" {
		t.Fatalf("explain = %+v", ex)
	}
}

func TestRecommendWithoutVersion(t *testing.T) {
	setup(t)
	root := newRootCmd()
	root.SetArgs([]string{"recommend", "--user", "1"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error without a saved version or edges")
	}
}
