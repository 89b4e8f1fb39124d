// Command metadata-validator checks that a single masterlist/userlist
// file parses cleanly. Its argument handling and exit codes are an exact
// port of original_source/src/validator/main.cpp: printing the usage
// text is itself a failure (exit 1), matching the original's
// `argc != 2 || -h || --help` branch.
package main

import (
	"fmt"
	"os"

	"github.com/pluginsort/core/internal/buildinfo"
	"github.com/pluginsort/core/internal/metadatalist"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) != 2 || args[1] == "-h" || args[1] == "--help" {
		printUsage()
		return 1
	}

	if args[1] == "-v" || args[1] == "--version" {
		printVersion()
		return 0
	}

	path := args[1]
	fmt.Printf("\nValidating metadata file: %s\n\n", path)

	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("ERROR: %v\n\n", err)
		return 1
	}
	defer f.Close()

	if _, err := metadatalist.Parse(f); err != nil {
		fmt.Printf("ERROR: %v\n\n", err)
		return 1
	}

	fmt.Println("SUCCESS!")
	fmt.Println()
	return 0
}

func printUsage() {
	fmt.Println()
	fmt.Println("Usage: metadata-validator <arg>")
	fmt.Println()
	fmt.Println("Arguments:")
	fmt.Println()
	fmt.Println("  <file>         The metadata file to validate.")
	fmt.Println("  -v, --version  Prints version information for this utility.")
	fmt.Println("  -h, --help     Prints this help text.")
	fmt.Println()
}

func printVersion() {
	fmt.Println()
	fmt.Println("pluginsort Metadata Validator")
	fmt.Println(buildinfo.Full())
	fmt.Println()
}
