// Command test-hotkey is a manual test for the global hotkey listener.
// Run it, then press the combo to see events.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--mode hold|toggle] [--keys ctrl,shift,semicolon]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/wisprwave/internal/hotkey"
)

func main() {
	mode := flag.String("mode", hotkey.ModeHold, "hotkey mode: hold or toggle")
	keys := flag.String("keys", "ctrl,shift,semicolon", "comma-separated key combo")
	flag.Parse()

	combo := strings.Split(*keys, ",")
	fmt.Printf("Listening for %s in %q mode...\n", strings.Join(combo, "+"), *mode)
	fmt.Println("Press Ctrl+C to exit.")

	listener := hotkey.NewListener(combo, *mode)

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	go func() {
		var started time.Time
		for ev := range listener.Events() {
			switch ev.Type {
			case hotkey.EventStart:
				started = time.Now()
				fmt.Println(">>> START (listening)")
			case hotkey.EventStop:
				fmt.Printf("<<< STOP  (held %s)\n", time.Since(started).Round(time.Millisecond))
			case hotkey.EventToggle:
				fmt.Println("<>> TOGGLE")
			}
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
