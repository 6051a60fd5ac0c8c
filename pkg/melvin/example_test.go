package melvin_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Jak3Gil/melvin/pkg/config"
	"github.com/Jak3Gil/melvin/pkg/melvin"
)

// ExampleDB trains a brain on one sequence and replays it from a prefix.
func ExampleDB() {
	dir, err := os.MkdirTemp("", "melvin-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := config.Default()
	cfg.Epsilon = 0 // fully greedy walks for a reproducible example

	db, err := melvin.Create(filepath.Join(dir, "brain.melvin"), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	for i := 0; i < 20; i++ {
		if err := db.Ingest([]byte("hello world"), true); err != nil {
			log.Fatal(err)
		}
	}

	if err := db.Ingest([]byte("hello"), false); err != nil {
		log.Fatal(err)
	}
	out, err := db.Generate(20)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%q\n", out)
	// Output: " world"
}
