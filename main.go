package main

import (
	"fmt"
	"os"
)

// Version information
const (
	Version = "0.1.0"
	Name    = "Ledger-Engine"
)

func main() {
	fmt.Printf("%s v%s\n", Name, Version)
	fmt.Println("In-memory account ledger with affinity-aware worker dispatch")
	fmt.Println("See cmd/ledger-engine for the runnable demo")
	os.Exit(0)
}
