package apt

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

// ReleaseFile is the top-level per-suite metadata document apt reads
// before fetching any Packages/Sources file, naming every generated index
// file alongside its size and per-algorithm digest.
type ReleaseFile struct {
	Origin        string
	Label         string
	Suite         string
	Codename      string
	Architectures []string
	Components    []string
	Date          time.Time
	Files         []HashedFile
}

// Render writes the Release file's deb822 text, one hash-field block per
// algorithm with every file listed underneath it, matching the layout
// apt's own archive generator produces.
func (r ReleaseFile) Render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Origin: %s\n", r.Origin)
	fmt.Fprintf(&buf, "Label: %s\n", r.Label)
	fmt.Fprintf(&buf, "Suite: %s\n", r.Suite)
	fmt.Fprintf(&buf, "Codename: %s\n", r.Codename)
	fmt.Fprintf(&buf, "Architectures: %s\n", strings.Join(r.Architectures, " "))
	fmt.Fprintf(&buf, "Components: %s\n", strings.Join(r.Components, " "))
	fmt.Fprintf(&buf, "Date: %s\n", r.Date.UTC().Format(time.RFC1123))

	files := append([]HashedFile(nil), r.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	for _, algo := range AllHashAlgorithms {
		fmt.Fprintf(&buf, "%s:\n", algo.ReleaseFieldName())
		for _, f := range files {
			digest, ok := f.Hashes[algo]
			if !ok {
				continue
			}
			fmt.Fprintf(&buf, " %s %d %s\n", digest, f.Size, f.Path)
		}
	}
	return buf.Bytes()
}

// SignDetached produces a Release.gpg-style detached armored signature
// over data using the first signing-capable identity in keyring.
func SignDetached(data []byte, keyring openpgp.EntityList) ([]byte, error) {
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, signingEntity(keyring), bytes.NewReader(data), nil); err != nil {
		return nil, fmt.Errorf("apt: signing release file: %w", err)
	}
	return buf.Bytes(), nil
}

// SignInline produces an InRelease-style clearsigned document wrapping data.
func SignInline(data []byte, keyring openpgp.EntityList) ([]byte, error) {
	entity := signingEntity(keyring)
	if entity == nil {
		return nil, fmt.Errorf("apt: no signing-capable key in keyring")
	}
	var buf bytes.Buffer
	w, err := clearsign.Encode(&buf, entity.PrivateKey, nil)
	if err != nil {
		return nil, fmt.Errorf("apt: starting clearsign: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("apt: clearsigning release file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("apt: finishing clearsign: %w", err)
	}
	return buf.Bytes(), nil
}

func signingEntity(keyring openpgp.EntityList) *openpgp.Entity {
	for _, e := range keyring {
		if e.PrivateKey != nil && !e.PrivateKey.Encrypted {
			return e
		}
	}
	return nil
}

// LoadArmoredKeyring reads an ASCII-armored secret keyring, the format
// janitord's signing_key_id configuration points at.
func LoadArmoredKeyring(data []byte) (openpgp.EntityList, error) {
	block, err := armor.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("apt: decoding armored keyring: %w", err)
	}
	keyring, err := openpgp.ReadKeyRing(block.Body)
	if err != nil {
		return nil, fmt.Errorf("apt: reading keyring: %w", err)
	}
	return keyring, nil
}
