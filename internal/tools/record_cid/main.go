// Command record_cid prints the CID of an emitted record file (as written by
// `borovkov sign-post` and friends). The record is decoded and re-encoded
// canonically, so indentation in the file does not change the result.
package main

import (
	"fmt"
	"os"

	"github.com/borovkovgroup/proto/agentid"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: record_cid <record.json>")
		os.Exit(2)
	}
	b, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
	r, err := agentid.DecodeRecord(b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode [%s]: %v\n", agentid.RuleID(err), err)
		os.Exit(1)
	}
	id, err := agentid.RecordCID(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(id)
}
