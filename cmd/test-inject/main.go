// Command test-inject is a manual test for clipboard copy and text
// injection. It copies the text to the clipboard, waits 3 seconds, then
// types or pastes it. Focus a text editor before the countdown finishes.
//
// Usage:
//
//	go run ./cmd/test-inject [--method type|paste] [--text "..."]
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/chaz8081/stt-notepad/internal/inject"
)

func main() {
	method := flag.String("method", inject.MethodType, "inject method: type or paste")
	text := flag.String("text", "Hello from stt-notepad!", "text to inject")
	flag.Parse()

	if err := inject.Copy(*text); err != nil {
		fmt.Printf("Copy error: %v\n", err)
		return
	}
	fmt.Println("Copied to clipboard.")

	fmt.Printf("Will inject %q using %q method in 3 seconds...\n", *text, *method)
	fmt.Println("Focus a text editor now!")

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	inj := inject.NewInjector(*method)
	if err := inj.Inject(*text); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nDone!")
}
