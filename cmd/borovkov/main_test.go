package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const kirillIdentity = "a9a8ee0a2d1759fdb8adf5cef303edbf9fc1bb2a21270ad187c43ee99ff629dc"

func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"BOROVKOV_STORE", "BOROVKOV_BACKEND", "BOROVKOV_FORMAT", "BOROVKOV_LOG_LEVEL", "BOROVKOV_INDENT"} {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unsetenv %s: %v", k, err)
		}
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestIdentityAndSign(t *testing.T) {
	cleanEnv(t)

	code, out, errOut := runCLI(t, "identity", "KirillBorovkov")
	if code != 0 || strings.TrimSpace(out) != kirillIdentity {
		t.Fatalf("identity: code=%d out=%q err=%q", code, out, errOut)
	}

	code, sig, _ := runCLI(t, "sign", "KirillBorovkov", "Hello, Moltbook!")
	if code != 0 {
		t.Fatalf("sign: code=%d", code)
	}
	sig = strings.TrimSpace(sig)
	if sig != "8b9d16d7c5fbbca66677990e7fb1f2c518778b44de2c4d94200ddb78b7497c7d" {
		t.Fatalf("unexpected signature %s", sig)
	}

	code, out, _ = runCLI(t, "verify", "KirillBorovkov", "Hello, Moltbook!", sig)
	if code != 0 || strings.TrimSpace(out) != "VALID" {
		t.Fatalf("verify: code=%d out=%q", code, out)
	}
	code, out, _ = runCLI(t, "verify", "KirillBorovkov", "Hello, Moltbook?", sig)
	if code != 1 || strings.TrimSpace(out) != "INVALID" {
		t.Fatalf("verify tampered: code=%d out=%q", code, out)
	}
}

func TestSignPost_PrintsRecord(t *testing.T) {
	cleanEnv(t)

	code, out, errOut := runCLI(t, "sign-post", "KirillBorovkov", "Title", "Content")
	if code != 0 {
		t.Fatalf("sign-post: code=%d err=%q", code, errOut)
	}
	if !strings.HasPrefix(out, "{\n  \"identity\": ") {
		t.Fatalf("expected two-space indented record, got %q", out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["identity"] != kirillIdentity || rec["signature"] != "8377011b39b54d496d7dd1dc9852798a1443d6cf00b74f0e2eb857994d73e612" || rec["protocol_version"] != "1.0.0" {
		t.Fatalf("unexpected record %v", rec)
	}
	if strings.Contains(out, "KirillBorovkov") {
		t.Fatalf("record leaks seed: %s", out)
	}
}

func TestRotateAndVerifyRotation(t *testing.T) {
	cleanEnv(t)

	code, out, errOut := runCLI(t, "rotate", "OldSeed", "NewSeed")
	if code != 0 {
		t.Fatalf("rotate: code=%d err=%q", code, errOut)
	}
	var ann struct {
		OldIdentity       string `json:"old_identity"`
		NewIdentity       string `json:"new_identity"`
		RotationSignature string `json:"rotation_signature"`
	}
	if err := json.Unmarshal([]byte(out), &ann); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if ann.RotationSignature != "e66a6fb17363a0a3581d00b6a5a2786087b734a4c75111b83e3361c6f2b35bbe" {
		t.Fatalf("unexpected rotation signature %s", ann.RotationSignature)
	}

	code, out, _ = runCLI(t, "verify-rotation", ann.OldIdentity, ann.NewIdentity, ann.RotationSignature, "OldSeed")
	if code != 0 || strings.TrimSpace(out) != "VALID ROTATION" {
		t.Fatalf("verify-rotation: code=%d out=%q", code, out)
	}
	code, out, _ = runCLI(t, "verify-rotation", ann.OldIdentity, ann.NewIdentity, ann.RotationSignature, "NewSeed")
	if code != 1 || strings.TrimSpace(out) != "INVALID ROTATION" {
		t.Fatalf("verify-rotation wrong seed: code=%d out=%q", code, out)
	}
}

func TestStoreAndVerifyChain(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()

	var cids []string
	for _, args := range [][]string{
		{"--store", dir, "sign-post", "TestAgent", "P1", "C1"},
		{"--store", dir, "sign-action", "TestAgent", "comment", "post123", "--meta", "text=hello"},
		{"--store", dir, "rotate", "TestAgent", "TestAgent-2"},
	} {
		code, _, errOut := runCLI(t, args...)
		if code != 0 {
			t.Fatalf("%v: code=%d err=%q", args, code, errOut)
		}
		cids = append(cids, strings.TrimSpace(errOut))
	}

	code, out, errOut := runCLI(t, append([]string{"--store", dir, "verify-chain", "TestAgent"}, cids...)...)
	if code != 0 || strings.TrimSpace(out) != "VALID CHAIN" {
		t.Fatalf("verify-chain: code=%d out=%q err=%q", code, out, errOut)
	}

	t.Setenv("BOROVKOV_STORE", dir)
	code, out, _ = runCLI(t, "verify-chain", "TestAgent")
	if code != 0 || strings.TrimSpace(out) != "VALID CHAIN" {
		t.Fatalf("verify-chain from listing: code=%d out=%q", code, out)
	}
	code, out, _ = runCLI(t, "verify-chain", "OtherAgent")
	if code != 1 || strings.TrimSpace(out) != "INVALID CHAIN" {
		t.Fatalf("verify-chain wrong seed: code=%d out=%q", code, out)
	}
}

func TestVerbose_NeverLogsSeed(t *testing.T) {
	cleanEnv(t)
	code, _, errOut := runCLI(t, "--verbose", "--store", t.TempDir(), "sign-post", "secret-seed-value", "t", "c")
	if code != 0 {
		t.Fatalf("sign-post: code=%d err=%q", code, errOut)
	}
	if !strings.Contains(errOut, "archived record") {
		t.Fatalf("expected debug output, got %q", errOut)
	}
	if strings.Contains(errOut, "secret-seed-value") {
		t.Fatalf("stderr leaks seed: %s", errOut)
	}
}

func TestUsageErrors(t *testing.T) {
	cleanEnv(t)
	cases := []struct {
		name string
		args []string
		code int
	}{
		{name: "no command", args: nil, code: 2},
		{name: "unknown command", args: []string{"frobnicate"}, code: 2},
		{name: "missing args", args: []string{"sign", "KirillBorovkov"}, code: 2},
		{name: "bad meta", args: []string{"sign-action", "abc", "a", "t", "--meta", "novalue"}, code: 2},
		{name: "chain without store", args: []string{"verify-chain", "abc"}, code: 2},
		{name: "unknown backend", args: []string{"--backend", "s3", "identity", "abc"}, code: 2},
		{name: "unknown format", args: []string{"--format", "xml", "identity", "abc"}, code: 2},
		{name: "short seed", args: []string{"identity", "ab"}, code: 1},
		{name: "empty seed", args: []string{"sign", "", "content"}, code: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tc.args...)
			if code != tc.code {
				t.Fatalf("expected exit %d, got %d", tc.code, code)
			}
		})
	}
}

func TestExportImport(t *testing.T) {
	for _, name := range []string{"records.tar", "records.tar.xz"} {
		t.Run(name, func(t *testing.T) {
			testExportImport(t, filepath.Join(t.TempDir(), name))
		})
	}
}

func testExportImport(t *testing.T, tarPath string) {
	cleanEnv(t)
	src := t.TempDir()
	dst := t.TempDir()

	code, _, errOut := runCLI(t, "--store", src, "sign-post", "TestAgent", "P1", "C1")
	if code != 0 {
		t.Fatalf("sign-post: code=%d err=%q", code, errOut)
	}
	id := strings.TrimSpace(errOut)

	if code, _, errOut := runCLI(t, "--store", src, "export", tarPath); code != 0 {
		t.Fatalf("export: code=%d err=%q", code, errOut)
	}
	code, out, errOut := runCLI(t, "--store", dst, "import", tarPath)
	if code != 0 || strings.TrimSpace(out) != id {
		t.Fatalf("import: code=%d out=%q err=%q", code, out, errOut)
	}
	code, out, _ = runCLI(t, "--store", dst, "verify-chain", "TestAgent", id)
	if code != 0 || strings.TrimSpace(out) != "VALID CHAIN" {
		t.Fatalf("verify-chain after import: code=%d out=%q", code, out)
	}
}

func TestBadgerBackend(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()

	code, _, errOut := runCLI(t, "--backend", "badger", "--store", dir, "sign-post", "TestAgent", "P1", "C1")
	if code != 0 {
		t.Fatalf("sign-post: code=%d err=%q", code, errOut)
	}
	code, _, errOut = runCLI(t, "--backend", "badger", "--store", dir, "sign-action", "TestAgent", "upvote", "post/42")
	if code != 0 {
		t.Fatalf("sign-action: code=%d err=%q", code, errOut)
	}

	code, out, errOut := runCLI(t, "--backend", "badger", "--store", dir, "verify-chain", "TestAgent")
	if code != 0 || strings.TrimSpace(out) != "VALID CHAIN" {
		t.Fatalf("verify-chain: code=%d out=%q err=%q", code, out, errOut)
	}
}

func TestFormatYAML(t *testing.T) {
	cleanEnv(t)
	code, out, errOut := runCLI(t, "--format", "yaml", "rotate", "OldSeed", "NewSeed")
	if code != 0 {
		t.Fatalf("rotate: code=%d err=%q", code, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 yaml lines, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "new_identity: ") || !strings.Contains(out, "rotation_signature: e66a6fb17363a0a3581d00b6a5a2786087b734a4c75111b83e3361c6f2b35bbe") {
		t.Fatalf("unexpected yaml output %q", out)
	}
}
