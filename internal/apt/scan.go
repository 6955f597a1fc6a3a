package apt

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pault.ag/go/debian/control"
	"pault.ag/go/debian/deb"
)

// PackageStanza is one Packages entry, modeled as an ordered
// deb822 paragraph so field order is preserved exactly as read, the way
// apt expects control-file output to look.
type PackageStanza struct {
	control.Paragraph
	// Filename and hashes are synthesized by the scanner rather than read
	// directly off the .deb's embedded control file.
	Filename string
	Size     int64
	Hashes   map[HashAlgorithm]string
}

// ScanBinaries walks dir for .deb files and reads each one's embedded
// control information plus its own multi-hash digest, producing the
// stanzas a Packages file is built from.
func ScanBinaries(dir string, algorithms []HashAlgorithm) ([]PackageStanza, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".deb") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s for .deb files: %w", dir, err)
	}
	sort.Strings(paths)

	var stanzas []PackageStanza
	for _, path := range paths {
		stanza, err := scanOneBinary(dir, path, algorithms)
		if err != nil {
			return nil, err
		}
		stanzas = append(stanzas, stanza)
	}
	return stanzas, nil
}

func scanOneBinary(root, path string, algorithms []HashAlgorithm) (PackageStanza, error) {
	pkg, closer, err := deb.LoadFile(path)
	if err != nil {
		return PackageStanza{}, fmt.Errorf("reading %s as a deb package: %w", path, err)
	}
	defer closer.Close()

	f, err := os.Open(path)
	if err != nil {
		return PackageStanza{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	hf, err := HashReader(path, algorithms, f)
	if err != nil {
		return PackageStanza{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	return PackageStanza{
		Paragraph: pkg.Control.Paragraph,
		Filename:  rel,
		Size:      hf.Size,
		Hashes:    hf.Hashes,
	}, nil
}

// SourceStanza is the Sources-file analogue of PackageStanza, built from a
// .dsc file's own deb822 stanza rather than from an unpacked .deb's
// control member.
type SourceStanza struct {
	control.Paragraph
	Filename string
	Size     int64
	Hashes   map[HashAlgorithm]string
}

// ScanSources walks dir for .dsc files and reads each one's deb822 stanza
// plus its own multi-hash digest, producing the stanzas a Sources file is
// built from. Unlike a .deb, a .dsc file is itself a single plain-text
// control stanza with no enclosing archive, so no companion "unpack"
// library call is needed the way deb.LoadFile unpacks a .deb's ar framing.
func ScanSources(dir string, algorithms []HashAlgorithm) ([]SourceStanza, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".dsc") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s for .dsc files: %w", dir, err)
	}
	sort.Strings(paths)

	var stanzas []SourceStanza
	for _, path := range paths {
		stanza, err := scanOneSource(dir, path, algorithms)
		if err != nil {
			return nil, err
		}
		stanzas = append(stanzas, stanza)
	}
	return stanzas, nil
}

func scanOneSource(root, path string, algorithms []HashAlgorithm) (SourceStanza, error) {
	f, err := os.Open(path)
	if err != nil {
		return SourceStanza{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec, err := control.NewDecoder(bufio.NewReader(f), nil)
	if err != nil {
		return SourceStanza{}, fmt.Errorf("reading %s as a dsc stanza: %w", path, err)
	}
	var stanza control.Paragraph
	if err := dec.Decode(&stanza); err != nil {
		return SourceStanza{}, fmt.Errorf("decoding %s as a dsc stanza: %w", path, err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return SourceStanza{}, fmt.Errorf("rewinding %s for hashing: %w", path, err)
	}
	hf, err := HashReader(path, algorithms, f)
	if err != nil {
		return SourceStanza{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	return SourceStanza{
		Paragraph: stanza,
		Filename:  rel,
		Size:      hf.Size,
		Hashes:    hf.Hashes,
	}, nil
}
