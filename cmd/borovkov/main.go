package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"

	"github.com/borovkovgroup/proto/agentid"
	"github.com/borovkovgroup/proto/cidutil"
	"github.com/borovkovgroup/proto/internal/config"
	"github.com/borovkovgroup/proto/internal/logging"
	"github.com/borovkovgroup/proto/storage"
	"github.com/borovkovgroup/proto/storage/badgercas"
	"github.com/borovkovgroup/proto/storage/bundle"
	"github.com/borovkovgroup/proto/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// env is the state shared by every command after global flags are parsed.
type env struct {
	out    io.Writer
	errOut io.Writer
	log    *logrus.Logger
	indent string
	format string
	// cas is nil unless --store or BOROVKOV_STORE names an archive.
	cas storage.CAS
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	fs := flag.NewFlagSet("borovkov", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { printUsage(errOut) }
	var store string
	var backend string
	var format string
	var verbose bool
	fs.StringVar(&store, "store", cfg.Store, "Archive emitted records in this directory")
	fs.StringVar(&backend, "backend", cfg.Backend, "Archive backend (localfs or badger)")
	fs.StringVar(&format, "format", cfg.Format, "Record output format (json or yaml)")
	fs.BoolVar(&verbose, "verbose", false, "Log diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	args = fs.Args()
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}
	if err := config.CheckBackend(backend); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if err := config.CheckFormat(format); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, err := logging.New(errOut, level)
	if err != nil {
		fmt.Fprintf(errOut, "invalid log level: %v\n", err)
		return 2
	}

	e := &env{out: out, errOut: errOut, log: log, indent: strings.Repeat(" ", cfg.Indent), format: format}
	if store != "" {
		cas, closeFn, err := openStore(backend, store)
		if err != nil {
			fmt.Fprintf(errOut, "open store: %v\n", err)
			return 1
		}
		if closeFn != nil {
			defer func() {
				if err := closeFn(); err != nil {
					log.WithError(err).Warn("close store")
				}
			}()
		}
		e.cas = cas
		log.WithField("store", store).WithField("backend", backend).Debug("archiving records")
	}

	switch args[0] {
	case "identity":
		return cmdIdentity(e, args[1:])
	case "sign":
		return cmdSign(e, args[1:])
	case "verify":
		return cmdVerify(e, args[1:])
	case "sign-post":
		return cmdSignPost(e, args[1:])
	case "sign-action":
		return cmdSignAction(e, args[1:])
	case "rotate":
		return cmdRotate(e, args[1:])
	case "verify-rotation":
		return cmdVerifyRotation(e, args[1:])
	case "verify-chain":
		return cmdVerifyChain(e, args[1:])
	case "export":
		return cmdExport(e, args[1:])
	case "import":
		return cmdImport(e, args[1:])
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "borovkov: agent identity, attestations and key rotation")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  borovkov [--store <dir>] [--backend localfs|badger] [--format json|yaml] [--verbose] <command> ...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  identity <seed>")
	fmt.Fprintln(w, "  sign <seed> <content>")
	fmt.Fprintln(w, "  verify <seed> <content> <signature>")
	fmt.Fprintln(w, "  sign-post <seed> <title> <content>")
	fmt.Fprintln(w, "  sign-action <seed> <action> <target> [--meta Key=Value ...]")
	fmt.Fprintln(w, "  rotate <old_seed> <new_seed>")
	fmt.Fprintln(w, "  verify-rotation <old_identity> <new_identity> <rotation_sig> <old_seed>")
	fmt.Fprintln(w, "  verify-chain <seed> [<record CID> ...]")
	fmt.Fprintln(w, "  export <bundle.tar> [<record CID> ...]")
	fmt.Fprintln(w, "  import <bundle.tar>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - seeds must be at least 3 characters and are never written to any output")
	fmt.Fprintln(w, "  - with --store, emitted records are archived and their CID is printed to stderr")
	fmt.Fprintln(w, "  - verify-chain and export without CIDs use every record in the store")
	fmt.Fprintln(w, "  - import prints the CID of each imported record")
	fmt.Fprintln(w, "  - bundle paths ending in .xz are xz-compressed")
	fmt.Fprintln(w, "  - environment: BOROVKOV_STORE, BOROVKOV_BACKEND, BOROVKOV_FORMAT, BOROVKOV_LOG_LEVEL, BOROVKOV_INDENT")
}

// openStore opens the archive backend rooted at dir. The close function is
// nil for backends that hold no resources.
func openStore(backend, dir string) (storage.CAS, func() error, error) {
	switch backend {
	case "badger":
		cas, err := badgercas.Open(dir)
		if err != nil {
			return nil, nil, err
		}
		return cas, cas.Close, nil
	default:
		cas, err := localfs.New(dir)
		if err != nil {
			return nil, nil, err
		}
		return cas, nil, nil
	}
}

func positional(e *env, name string, args []string, want int, usage string) ([]string, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	if err := fs.Parse(args); err != nil {
		return nil, false
	}
	if fs.NArg() != want {
		fmt.Fprintf(e.errOut, "usage: borovkov %s\n", usage)
		return nil, false
	}
	return fs.Args(), true
}

func newAgent(e *env, seed string) (*agentid.Agent, bool) {
	a, err := agentid.New(seed)
	if err != nil {
		e.log.WithField("rule", agentid.RuleID(err)).Debug("seed rejected")
		fmt.Fprintf(e.errOut, "invalid seed: %v\n", err)
		return nil, false
	}
	return a, true
}

func cmdIdentity(e *env, args []string) int {
	pos, ok := positional(e, "identity", args, 1, "identity <seed>")
	if !ok {
		return 2
	}
	a, ok := newAgent(e, pos[0])
	if !ok {
		return 1
	}
	_, _ = fmt.Fprintln(e.out, a.Identity())
	return 0
}

func cmdSign(e *env, args []string) int {
	pos, ok := positional(e, "sign", args, 2, "sign <seed> <content>")
	if !ok {
		return 2
	}
	a, ok := newAgent(e, pos[0])
	if !ok {
		return 1
	}
	_, _ = fmt.Fprintln(e.out, a.Sign(pos[1]))
	return 0
}

func cmdVerify(e *env, args []string) int {
	pos, ok := positional(e, "verify", args, 3, "verify <seed> <content> <signature>")
	if !ok {
		return 2
	}
	a, ok := newAgent(e, pos[0])
	if !ok {
		return 1
	}
	if !a.Verify(pos[1], pos[2]) {
		_, _ = fmt.Fprintln(e.out, "INVALID")
		return 1
	}
	_, _ = fmt.Fprintln(e.out, "VALID")
	return 0
}

func cmdSignPost(e *env, args []string) int {
	pos, ok := positional(e, "sign-post", args, 3, "sign-post <seed> <title> <content>")
	if !ok {
		return 2
	}
	a, ok := newAgent(e, pos[0])
	if !ok {
		return 1
	}
	att, err := a.SignPost(pos[1], pos[2])
	if err != nil {
		fmt.Fprintf(e.errOut, "sign post: %v\n", err)
		return 1
	}
	return emit(e, att)
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdSignAction(e *env, args []string) int {
	const usage = "sign-action <seed> <action> <target> [--meta Key=Value ...]"
	fs := flag.NewFlagSet("sign-action", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	var meta stringList
	fs.Var(&meta, "meta", "Metadata entry as Key=Value (repeatable)")

	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return 2
	}
	if len(pos) != 3 {
		fmt.Fprintf(e.errOut, "usage: borovkov %s\n", usage)
		return 2
	}
	metadata, err := parseKV(meta)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --meta: %v\n", err)
		return 2
	}

	a, ok := newAgent(e, pos[0])
	if !ok {
		return 1
	}
	att, err := a.SignAction(pos[1], pos[2], metadata)
	if err != nil {
		fmt.Fprintf(e.errOut, "sign action: %v\n", err)
		return 1
	}
	return emit(e, att)
}

func cmdRotate(e *env, args []string) int {
	pos, ok := positional(e, "rotate", args, 2, "rotate <old_seed> <new_seed>")
	if !ok {
		return 2
	}
	a, ok := newAgent(e, pos[0])
	if !ok {
		return 1
	}
	ann, err := a.SignRotation(pos[1])
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid seed: %v\n", err)
		return 1
	}
	return emit(e, ann)
}

func cmdVerifyRotation(e *env, args []string) int {
	pos, ok := positional(e, "verify-rotation", args, 4, "verify-rotation <old_identity> <new_identity> <rotation_sig> <old_seed>")
	if !ok {
		return 2
	}
	if !agentid.VerifyRotation(pos[0], pos[1], pos[2], pos[3]) {
		_, _ = fmt.Fprintln(e.out, "INVALID ROTATION")
		return 1
	}
	_, _ = fmt.Fprintln(e.out, "VALID ROTATION")
	return 0
}

func cmdVerifyChain(e *env, args []string) int {
	fs := flag.NewFlagSet("verify-chain", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(e.errOut, "usage: borovkov verify-chain <seed> [<record CID> ...]")
		return 2
	}
	if e.cas == nil {
		fmt.Fprintln(e.errOut, "verify-chain requires --store or BOROVKOV_STORE")
		return 2
	}
	seed := fs.Arg(0)

	ids, code := recordIDs(e, fs.Args()[1:])
	if code != 0 {
		return code
	}

	chain, err := agentid.LoadChain(e.cas, ids)
	if err != nil {
		fmt.Fprintf(e.errOut, "load chain: %v\n", err)
		return 1
	}
	e.log.WithField("records", len(ids)).WithField("attestations", len(chain)).Debug("verifying chain")
	if !agentid.VerifyChain(chain, seed) {
		_, _ = fmt.Fprintln(e.out, "INVALID CHAIN")
		return 1
	}
	_, _ = fmt.Fprintln(e.out, "VALID CHAIN")
	return 0
}

func cmdExport(e *env, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	var noIndex bool
	fs.BoolVar(&noIndex, "no-index", false, "Omit index.json from the bundle")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(e.errOut, "usage: borovkov export [--no-index] <bundle.tar> [<record CID> ...]")
		return 2
	}
	if e.cas == nil {
		fmt.Fprintln(e.errOut, "export requires --store or BOROVKOV_STORE")
		return 2
	}
	ids, code := recordIDs(e, fs.Args()[1:])
	if code != 0 {
		return code
	}

	path := fs.Arg(0)
	var buf bytes.Buffer
	if err := bundle.Export(&buf, e.cas, ids, bundle.ExportOptions{IncludeIndex: !noIndex}); err != nil {
		fmt.Fprintf(e.errOut, "export: %v\n", err)
		return 1
	}
	data := buf.Bytes()
	if strings.HasSuffix(path, ".xz") {
		var zbuf bytes.Buffer
		zw, err := xz.NewWriter(&zbuf)
		if err != nil {
			fmt.Fprintf(e.errOut, "compress bundle: %v\n", err)
			return 1
		}
		if _, err := zw.Write(data); err != nil {
			fmt.Fprintf(e.errOut, "compress bundle: %v\n", err)
			return 1
		}
		if err := zw.Close(); err != nil {
			fmt.Fprintf(e.errOut, "compress bundle: %v\n", err)
			return 1
		}
		data = zbuf.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(e.errOut, "write bundle: %v\n", err)
		return 1
	}
	e.log.WithField("records", len(ids)).WithField("bundle", path).Debug("exported bundle")
	return 0
}

func cmdImport(e *env, args []string) int {
	pos, ok := positional(e, "import", args, 1, "import <bundle.tar>")
	if !ok {
		return 2
	}
	if e.cas == nil {
		fmt.Fprintln(e.errOut, "import requires --store or BOROVKOV_STORE")
		return 2
	}
	f, err := os.Open(pos[0])
	if err != nil {
		fmt.Fprintf(e.errOut, "open bundle: %v\n", err)
		return 1
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(pos[0], ".xz") {
		zr, err := xz.NewReader(f)
		if err != nil {
			fmt.Fprintf(e.errOut, "decompress bundle: %v\n", err)
			return 1
		}
		r = zr
	}
	ids, err := bundle.Import(r, e.cas)
	if err != nil {
		fmt.Fprintf(e.errOut, "import: %v\n", err)
		return 1
	}
	for _, id := range ids {
		_, _ = fmt.Fprintln(e.out, id.String())
	}
	return 0
}

// recordIDs parses CID arguments, falling back to every record in the
// store when none are given.
func recordIDs(e *env, args []string) ([]cid.Cid, int) {
	var ids []cid.Cid
	for _, s := range args {
		id, err := cidutil.Parse(s)
		if err != nil {
			fmt.Fprintf(e.errOut, "invalid record CID %q: %v\n", s, err)
			return nil, 2
		}
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		return ids, 0
	}
	lister, ok := e.cas.(storage.Lister)
	if !ok {
		fmt.Fprintln(e.errOut, "store cannot list records; pass record CIDs explicitly")
		return nil, 2
	}
	all, err := lister.List()
	if err != nil {
		fmt.Fprintf(e.errOut, "list store: %v\n", err)
		return nil, 1
	}
	return all, 0
}

// emit prints r as indented JSON and, when a store is configured, archives
// its canonical bytes and reports the CID on stderr.
func emit(e *env, r agentid.Record) int {
	b, err := render(e, r)
	if err != nil {
		fmt.Fprintf(e.errOut, "encode record: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(e.out, strings.TrimRight(string(b), "\n"))

	if e.cas == nil {
		return 0
	}
	id, err := agentid.Archive(e.cas, r)
	if err != nil {
		fmt.Fprintf(e.errOut, "archive record: %v\n", err)
		return 1
	}
	e.log.WithField("type", r.Type()).WithField("cid", id.String()).Debug("archived record")
	_, _ = fmt.Fprintln(e.errOut, id.String())
	return 0
}

// render formats r for display. JSON keeps the record's field order; YAML
// lists fields sorted by name.
func render(e *env, r agentid.Record) ([]byte, error) {
	if e.format == "yaml" {
		return yaml.Marshal(r.Fields())
	}
	return json.MarshalIndent(r, "", e.indent)
}

// parseInterleaved parses fs while allowing flags after positional
// arguments, returning the positional arguments in order.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

func parseKV(items []string) (map[string]any, error) {
	out := make(map[string]any, len(items))
	for _, it := range items {
		k, v, ok := strings.Cut(it, "=")
		if !ok {
			return nil, fmt.Errorf("expected Key=Value, got %q", it)
		}
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, errors.New("empty key")
		}
		if _, exists := out[k]; exists {
			return nil, fmt.Errorf("duplicate key %q", k)
		}
		out[k] = v
	}
	return out, nil
}
