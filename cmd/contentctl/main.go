// Package main provides contentctl, the CLI that validates security content
// definitions and builds them into an enriched detection bundle.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidateCmd(os.Args[2:])
	case "build":
		runBuildCmd(os.Args[2:])
	case "attack-publish":
		runPublishCmd(os.Args[2:])
	case "-version", "--version", "-v":
		fmt.Printf("contentctl %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: contentctl <command> [flags] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  validate        Validate content definitions under a content directory\n")
	fmt.Fprintf(os.Stderr, "  build           Build and enrich all detections into a bundle\n")
	fmt.Fprintf(os.Stderr, "  attack-publish  Publish an ATT&CK dataset file to Redis\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	fmt.Fprintf(os.Stderr, "  -version  Show version and exit\n")
}
