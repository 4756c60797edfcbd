// Command seed builds one of each sketch over a synthetic event stream
// and stores the snapshots, giving the server something to load and a
// quick accuracy readout against exact counts.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"

	_ "modernc.org/sqlite"

	"github.com/sketchlab/streamsketch/pkg/sketches"
	"github.com/sketchlab/streamsketch/pkg/storage"
)

func main() {
	dbPath := os.Getenv("SKETCH_DB_PATH")
	if dbPath == "" {
		dbPath = "sketches.sqlite"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := storage.EnsureMetaTables(ctx, db); err != nil {
		log.Fatalf("ensure meta tables: %v", err)
	}
	store, err := storage.NewStore(db)
	if err != nil {
		log.Fatalf("create store: %v", err)
	}

	bloom, err := sketches.NewBloomFilter(1<<14, []sketches.HashAlg{
		sketches.HashMD5, sketches.HashSHA1, sketches.HashSHA256,
	})
	if err != nil {
		log.Fatalf("bloom: %v", err)
	}
	cms, err := sketches.NewCountMinSketch(4, 512, []sketches.HashAlg{
		sketches.HashSHA1, sketches.HashMD5, sketches.HashSHA256, sketches.HashFNV64,
	})
	if err != nil {
		log.Fatalf("countmin: %v", err)
	}
	hll, err := sketches.NewHyperLogLog(1024, sketches.HashSHA256)
	if err != nil {
		log.Fatalf("hyperloglog: %v", err)
	}

	// Zipf-ish stream: a handful of hot users, a long tail of cold ones.
	rng := rand.New(rand.NewSource(42))
	zipf := rand.NewZipf(rng, 1.2, 1, 5000)
	n := 200000
	truth := make(map[string]uint64)
	for i := 0; i < n; i++ {
		user := fmt.Sprintf("user-%d", zipf.Uint64())
		truth[user]++
		bloom = bloom.UpdateString(user)
		cms = cms.UpdateString(user)
		hll = hll.UpdateString(user)
		if i%50000 == 0 {
			fmt.Printf("observed %d events\n", i)
		}
	}

	fmt.Printf("distinct users: true=%d estimated=%d\n", len(truth), hll.Count())
	for _, user := range []string{"user-0", "user-1", "user-42"} {
		fmt.Printf("%s: true=%d estimated=%d member=%v\n",
			user, truth[user], cms.GetCountString(user), bloom.PossibleMemberString(user))
	}

	save := func(name string, s sketches.Sketch, params any) {
		raw, _ := json.Marshal(params)
		err := store.Save(ctx, storage.Snapshot{
			Name:       name,
			Type:       string(s.Type()),
			Data:       s.Serialize(),
			Parameters: string(raw),
		})
		if err != nil {
			log.Fatalf("save %s: %v", name, err)
		}
	}
	save("seed-members", bloom, map[string]any{"size": bloom.Size(), "hashes": bloom.HashCount()})
	save("seed-visits", cms, map[string]any{"rows": cms.Rows(), "cols": cms.Cols()})
	save("seed-uniques", hll, map[string]any{"registers": hll.Registers()})
	fmt.Println("Seed done.")
}
