// Command test-hotkey is a manual test for the global hotkey listener.
// Run it, then press the configured record, pause and cancel combinations
// (Ctrl+Shift+R/P/X by default) to see events.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--config path]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/stt-notepad/internal/config"
	"github.com/chaz8081/stt-notepad/internal/hotkey"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "settings file to read bindings from")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bindings := hotkey.Bindings(cfg.Hotkey)
	if len(bindings) == 0 {
		log.Fatal("no hotkeys configured")
	}
	for _, b := range bindings {
		fmt.Printf("Listening for %s (%s)\n", b, b.Action)
	}
	fmt.Println("Press Ctrl+C to exit.")

	listener := hotkey.NewListener(bindings)

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	// Read events
	go func() {
		for a := range listener.Events() {
			fmt.Printf(">>> %s\n", a)
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
