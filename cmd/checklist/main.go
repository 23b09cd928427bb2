// Validates a JIT inclusion-list file before it is shipped to production
// hosts: parses every entry with the same code the runtime uses and reports
// counts, so a bad list is caught at build time instead of silently
// disabling compilation at process start.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/penguin-wwy/cinder/config"
	"github.com/penguin-wwy/cinder/jit"
)

func main() {
	configDir := flag.String("config", "", "Directory containing cinder.toml; its list settings are used")
	wildcards := flag.Bool("wildcards", false, "Allow '*' patterns in entries")
	verbose := flag.Bool("v", false, "Print each accepted entry")
	flag.Parse()

	path := flag.Arg(0)
	allowWild := *wildcards
	if *configDir != "" {
		cfg, err := config.Load(*configDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		allowWild = cfg.AllowListWildcards
		if path == "" {
			path = cfg.ListFile
		}
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "Usage: checklist [-config dir] [-wildcards] <list-file>")
		os.Exit(1)
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening list: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var parse func(string) error
	if allowWild {
		parse = jit.NewWildcardList().ParseLine
	} else {
		parse = jit.NewList().ParseLine
	}

	entries, bad := 0, 0
	sc := bufio.NewScanner(f)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		if err := parse(line); err != nil {
			fmt.Fprintf(os.Stderr, "%s:%d: %v\n", path, lineno, err)
			bad++
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" && trimmed[0] != '#' {
			entries++
			if *verbose {
				fmt.Printf("ok: %s\n", line)
			}
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading list: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d entries, %d invalid\n", path, entries, bad)
	if bad > 0 {
		os.Exit(1)
	}
}
