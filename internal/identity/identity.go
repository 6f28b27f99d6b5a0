// Package identity derives stable, content-based identifiers for scenario
// packages. An identity survives renames and moves because it is computed
// from package content, never from the path.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hanulsoft/scenarium/internal/scenario"
)

// Sampling limits. Hashing every byte of every payload file would make full
// rescans of large collections IO-bound, so identity reads the descriptor in
// full plus a bounded, deterministic sample of the payload.
const (
	// maxSampledFiles is the number of payload files included in the hash.
	maxSampledFiles = 16

	// sampleBytesPerFile is how much of each sampled file is read.
	sampleBytesPerFile = 4 * 1024
)

// ID is a hex-encoded SHA-256 digest identifying a package by content.
type ID string

// Fingerprint is a cheap change-detection key computed without reading file
// contents. Matching fingerprints let a rescan skip re-parsing and
// re-hashing; a mismatch only means "look closer", never "changed identity".
type Fingerprint struct {
	DescriptorSize    int64
	DescriptorModTime int64 // Unix nanoseconds
	PayloadCount      int
}

// String renders the fingerprint in a stable, comparable form.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%d:%d:%d", f.DescriptorSize, f.DescriptorModTime, f.PayloadCount)
}

// ParseFingerprint parses the String form back into a Fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	_, err := fmt.Sscanf(s, "%d:%d:%d", &f.DescriptorSize, &f.DescriptorModTime, &f.PayloadCount)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("malformed fingerprint %q: %w", s, err)
	}
	return f, nil
}

// QuickFingerprint computes a Fingerprint from directory metadata only.
// It never opens files: descriptor size and mod time come from the package
// record, payload count from one directory listing.
func QuickFingerprint(pkg *scenario.Package) (Fingerprint, error) {
	entries, err := os.ReadDir(pkg.Path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: %w", pkg.Path, err)
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() && !strings.EqualFold(e.Name(), filepath.Base(pkg.DescriptorPath)) {
			count++
		}
	}

	return Fingerprint{
		DescriptorSize:    pkg.DescriptorSize,
		DescriptorModTime: pkg.DescriptorModTime.UnixNano(),
		PayloadCount:      count,
	}, nil
}

// Resolve computes the content identity for a package: SHA-256 over the
// descriptor bytes plus a deterministic payload sample (sorted file names,
// sizes, and the first bytes of each sampled file). The same content at a
// different path resolves to the same ID.
func Resolve(ctx context.Context, pkg *scenario.Package) (ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h := sha256.New()

	desc, err := os.ReadFile(pkg.DescriptorPath)
	if err != nil {
		return "", fmt.Errorf("read descriptor %s: %w", pkg.DescriptorPath, err)
	}
	h.Write(desc)

	names, err := payloadNames(pkg)
	if err != nil {
		return "", err
	}

	sampled := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		path := filepath.Join(pkg.Path, name)
		info, err := os.Stat(path)
		if err != nil {
			// Payload file vanished mid-hash; skip it rather than fail the
			// whole package. The next pass sees a different fingerprint.
			continue
		}

		h.Write([]byte(name))
		h.Write([]byte{0})
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(info.Size()))
		h.Write(size[:])

		if sampled < maxSampledFiles {
			if err := hashFilePrefix(h, path); err != nil {
				continue
			}
			sampled++
		}
	}

	return ID(hex.EncodeToString(h.Sum(nil))), nil
}

// payloadNames lists non-descriptor payload file names sorted for a
// deterministic hash regardless of directory iteration order.
func payloadNames(pkg *scenario.Package) ([]string, error) {
	entries, err := os.ReadDir(pkg.Path)
	if err != nil {
		return nil, fmt.Errorf("list payload %s: %w", pkg.Path, err)
	}

	descName := filepath.Base(pkg.DescriptorPath)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.EqualFold(e.Name(), descName) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// hashFilePrefix writes the first sampleBytesPerFile bytes of path into h.
func hashFilePrefix(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.CopyN(h, f, sampleBytesPerFile)
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}
