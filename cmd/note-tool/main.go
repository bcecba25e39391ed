// note-tool creates and inspects shielded notes offline. Useful for
// debugging commitment or nullifier mismatches without a running relayer.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"relayer-backend/internal/field"
	"relayer-backend/internal/hashing"
	"relayer-backend/internal/notes"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	engine, err := hashing.New(hashing.ParamSetMiMCBN254)
	if err != nil {
		fatal("hash engine: %v", err)
	}
	manager := notes.NewManager(engine)

	switch os.Args[1] {
	case "create":
		create(manager, os.Args[2:])
	case "nullifier":
		nullifierHash(manager, os.Args[2:])
	default:
		usage()
	}
}

func create(manager *notes.Manager, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	amount := fs.Uint64("amount", 0, "note amount in base units")
	mint := fs.String("mint", "", "asset mint address (hex)")
	_ = fs.Parse(args)

	if *amount == 0 || *mint == "" {
		fatal("create requires -amount and -mint")
	}

	note, err := manager.Create(*amount, notes.AssetIDFromMint(*mint))
	if err != nil {
		fatal("create note: %v", err)
	}

	blob, err := manager.Serialize(note)
	if err != nil {
		fatal("serialize note: %v", err)
	}

	fmt.Printf("Commitment: %s\n", field.ToDecimalString(note.Commitment))
	fmt.Printf("AssetID:    %s\n", field.ToDecimalString(note.AssetID))
	fmt.Printf("Note:       %s\n", blob)
}

func nullifierHash(manager *notes.Manager, args []string) {
	fs := flag.NewFlagSet("nullifier", flag.ExitOnError)
	secret := fs.String("secret", "", "note secret (decimal)")
	seed := fs.String("seed", "", "nullifier seed (decimal)")
	amount := fs.Uint64("amount", 0, "note amount in base units")
	mint := fs.String("mint", "", "asset mint address (hex)")
	leafIndex := fs.Uint64("leaf-index", 0, "leaf index of the deposit")
	_ = fs.Parse(args)

	secretFr, err := field.FromDecimalString(*secret)
	if err != nil {
		fatal("secret: %v", err)
	}
	seedFr, err := field.FromDecimalString(*seed)
	if err != nil {
		fatal("seed: %v", err)
	}

	idx := *leafIndex
	note, err := manager.FromRecovery(secretFr, seedFr, *amount, notes.AssetIDFromMint(*mint), &idx, nil)
	if err != nil {
		fatal("recover note: %v", err)
	}

	hash, err := manager.NullifierHash(note)
	if err != nil {
		fatal("nullifier hash: %v", err)
	}

	encoded := field.Encode(hash)
	fmt.Printf("Commitment:    %s\n", field.ToDecimalString(note.Commitment))
	fmt.Printf("NullifierHash: %s\n", field.ToDecimalString(hash))
	fmt.Printf("Hex:           %s\n", hex.EncodeToString(encoded[:]))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: note-tool <create|nullifier> [flags]")
	os.Exit(2)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
