package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"github.com/ttbt-io/dugout/backend"
)

var (
	dataDir = flag.String("data-dir", "data", "Directory for game and roster data")
)

// main decrypts and prints stored data files for debugging.
func main() {
	flag.Parse()
	// Initialize Encryption Key and Storage
	var masterKey crypto.MasterKey
	if passphrase := os.Getenv("DUGOUT_MASTER_KEY"); passphrase != "" {
		keyFile := filepath.Join(*dataDir, "master.key")
		// Ensure data dir exists for key file
		os.MkdirAll(*dataDir, 0755)

		var err error
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if err != nil {
			if os.IsNotExist(err) {
				log.Println("Initializing new master encryption key...")
				masterKey, err = crypto.CreateMasterKey()
				if err != nil {
					log.Fatalf("Failed to create master key: %v", err)
				}
				if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
					log.Fatalf("Failed to save master key: %v", err)
				}
			} else {
				log.Fatalf("Failed to read master key: %v", err)
			}
		} else {
			log.Println("Loaded master encryption key.")
		}
	} else {
		keyFile := filepath.Join(*dataDir, "master.key")
		if _, err := os.Stat(keyFile); err == nil {
			log.Fatalf("Critical Security Error: %s exists but DUGOUT_MASTER_KEY is not set. Refusing to read encrypted data in unencrypted mode.", keyFile)
		}
		log.Println("Warning: No DUGOUT_MASTER_KEY provided. Data will be stored UNENCRYPTED.")
	}
	store := storage.New(*dataDir, masterKey)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, arg := range flag.Args() {
		arg = strings.TrimPrefix(arg, *dataDir)
		var obj any
		switch {
		case strings.Contains(arg, "games"):
			obj = new(backend.Game)
		case strings.Contains(arg, "rosters"):
			obj = new(backend.Roster)
		default:
			obj = new(map[string]any)
		}
		if err := store.ReadDataFile(arg, obj); err != nil {
			log.Printf("%s: %v", arg, err)
			continue
		}
		fmt.Printf("=========== %s ===========\n", arg)
		if err := enc.Encode(obj); err != nil {
			log.Printf("JSON: %s: %v", arg, err)
		}
	}
}
