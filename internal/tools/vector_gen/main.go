// Command vector_gen recomputes testdata/vectors.json with this
// implementation. With -check it only reports whether the committed vectors
// still match.
package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/borovkovgroup/proto/internal/vectors"
)

func main() {
	path := flag.String("file", "testdata/vectors.json", "vector file")
	check := flag.Bool("check", false, "compare instead of rewriting")
	flag.Parse()

	in, err := vectors.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	out, err := vectors.Recompute(in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *check {
		if !reflect.DeepEqual(in, out) {
			fmt.Fprintln(os.Stderr, "vectors differ from this implementation")
			os.Exit(1)
		}
		fmt.Println("OK")
		return
	}

	b, err := vectors.Encode(out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.WriteFile(*path, b, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
