// Decodes a CBOR report envelope written by an embedding host and prints
// its type-profile and deopt rows as text for quick inspection.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/penguin-wwy/cinder/jit/export"
)

func main() {
	deoptsOnly := flag.Bool("deopts", false, "Print only deopt rows")
	profileOnly := flag.Bool("profile", false, "Print only type-profile rows")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: profiledump [-deopts|-profile] <envelope.cbor>")
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading envelope: %v\n", err)
		os.Exit(1)
	}
	env, err := export.UnmarshalEnvelope(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding envelope: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("envelope %s created %s: %d profile rows, %d deopt rows\n",
		env.ID, env.CreatedAt.Format("2006-01-02 15:04:05"), len(env.Profile), len(env.Deopts))

	if !*deoptsOnly {
		for _, r := range env.Profile {
			if r.BCOffset < 0 {
				fmt.Printf("%s (%s:%d) untyped x%d\n",
					r.FuncQualname, r.Filename, r.FirstLine, r.Count)
				continue
			}
			fmt.Printf("%s (%s:%d) +%d %s [%s] x%d\n",
				r.FuncQualname, r.Filename, r.Line, r.BCOffset,
				r.Opname, strings.Join(r.Types, ", "), r.Count)
		}
	}
	if !*profileOnly {
		for _, r := range env.Deopts {
			fmt.Printf("%s (%s:%d) +%d %s %q guilty=%s x%d\n",
				r.FuncQualname, r.Filename, r.Line, r.BCOffset,
				r.Reason, r.Description, r.GuiltyType, r.Count)
		}
	}
}
