// Command test-inject is a manual test for text injection.
// It waits 3 seconds, types a phrase, then rewrites its tail the way live
// dictation does when a partial transcript is revised.
// Focus a text editor before the countdown finishes.
//
// Usage:
//
//	go run ./cmd/test-inject [--method paste|type]
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/chaz8081/wisprwave/internal/inject"
)

func main() {
	method := flag.String("method", inject.MethodPaste, "inject method: paste or type")
	flag.Parse()

	first := "the quick brown dog"
	second := "the quick brown fox jumps over"

	fmt.Printf("Will inject %q, then revise it to %q using %q in 3 seconds...\n", first, second, *method)
	fmt.Println("Focus a text editor now!")

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	eng := inject.NewEngine(inject.NewRobot(inject.WithMethod(*method)))
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eng.InjectDiff("", first)
	if err := eng.Flush(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	time.Sleep(time.Second)

	fmt.Printf("Applying edit %+v\n", inject.ComputeEdit(first, second))
	eng.InjectDiff(first, second)
	if err := eng.Flush(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nDone!")
}
