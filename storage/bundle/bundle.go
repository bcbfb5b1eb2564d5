// Package bundle moves archived records between stores as a single
// deterministic TAR file.
//
// A bundle holds one entry per record under records/<cid> plus an optional
// index.json. Every record is checked against its CID on export and again on
// import, so a bundle can be handed over untrusted channels.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/borovkovgroup/proto/cidutil"
	"github.com/borovkovgroup/proto/storage"
)

// FormatVersion is the index.json schema version.
const FormatVersion = 1

const recordPrefix = "records/"

var epoch = time.Unix(0, 0).UTC()

// ErrNilCAS is returned when Export or Import is given no store.
var ErrNilCAS = errors.New("bundle: nil CAS")

type ExportOptions struct {
	// IncludeIndex adds index.json listing every record CID and size.
	IncludeIndex bool
}

// Export writes the records stored under ids to w. Duplicate ids are
// written once and entries are ordered by CID string, so the same set of
// records always yields the same bytes.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return ErrNilCAS
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	entries := make([]indexEntry, 0, len(names))
	for _, name := range names {
		b, err := cas.Get(uniq[name])
		if err != nil {
			_ = tw.Close()
			return fmt.Errorf("bundle: export %s: %w", name, err)
		}
		if err := checkCID(name, b); err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeEntry(tw, recordPrefix+name, b); err != nil {
			_ = tw.Close()
			return err
		}
		entries = append(entries, indexEntry{CID: name, Size: len(b)})
	}

	if opts.IncludeIndex {
		b, err := json.Marshal(index{Version: FormatVersion, Records: entries})
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeEntry(tw, "index.json", append(b, '\n')); err != nil {
			_ = tw.Close()
			return err
		}
	}
	return tw.Close()
}

// Import reads a bundle from r into cas and returns the imported record
// CIDs in bundle order. Unknown or non-regular entries are rejected.
func Import(r io.Reader, cas storage.CAS) ([]cid.Cid, error) {
	if cas == nil {
		return nil, ErrNilCAS
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var out []cid.Cid
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		name := cleanPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			return nil, fmt.Errorf("bundle: unexpected entry type %v (%s)", h.Typeflag, name)
		}
		if name == "index.json" {
			if _, err := io.Copy(io.Discard, tr); err != nil {
				return nil, err
			}
			continue
		}
		if !strings.HasPrefix(name, recordPrefix) {
			return nil, fmt.Errorf("bundle: unknown entry %s", name)
		}

		want := strings.TrimPrefix(name, recordPrefix)
		if _, dup := seen[want]; dup {
			return nil, fmt.Errorf("bundle: duplicate record %s", want)
		}
		seen[want] = struct{}{}

		b, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		if err := checkCID(want, b); err != nil {
			return nil, err
		}
		id, err := cas.Put(b)
		if err != nil {
			return nil, fmt.Errorf("bundle: import %s: %w", want, err)
		}
		out = append(out, id)
	}
}

type index struct {
	Version int          `json:"version"`
	Records []indexEntry `json:"records"`
}

type indexEntry struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

func checkCID(want string, b []byte) error {
	if _, err := cidutil.Parse(want); err != nil {
		return storage.ErrInvalidCID
	}
	got, err := cidutil.String(b)
	if err != nil {
		return err
	}
	if got != want {
		return storage.ErrCIDMismatch
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

// cleanPath normalizes a TAR entry name and returns "" for anything that
// could escape the bundle root.
func cleanPath(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = strings.TrimPrefix(strings.TrimPrefix(name, "./"), "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
