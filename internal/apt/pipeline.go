package apt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// BuildOptions configures one archive-generation pass for a suite.
type BuildOptions struct {
	// SourceDir is scanned for .deb and .dsc artifacts.
	SourceDir string
	// OutputDir is the repository root Release/Packages/Sources/by-hash
	// are written under.
	OutputDir string

	Origin        string
	Label         string
	Suite         string
	Codename      string
	Components    []string
	Architectures []string

	// Keyring, if non-empty, signs Release into Release.gpg and InRelease.
	Keyring openpgp.EntityList
}

// Build runs the full archive-generation pipeline described in spec.md
// §4.8: scan packages and sources, write Packages/Sources in every
// configured compression, hash every output, publish by-hash copies, and
// synthesize (and optionally sign) the top-level Release file.
//
// Every (component, architecture) pair gets its own binary-{arch}/Packages
// tree; every component gets one source/Sources tree, matching the layout
// in spec.md's EXTERNAL INTERFACES section.
func Build(opts BuildOptions, now time.Time) (*ReleaseFile, error) {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("apt: creating output dir %s: %w", opts.OutputDir, err)
	}

	rel := &ReleaseFile{
		Origin:        opts.Origin,
		Label:         opts.Label,
		Suite:         opts.Suite,
		Codename:      opts.Codename,
		Architectures: opts.Architectures,
		Components:    opts.Components,
		Date:          now,
	}

	for _, component := range opts.Components {
		if err := buildComponentBinaries(opts, component, rel); err != nil {
			return nil, err
		}
		if err := buildComponentSources(opts, component, rel); err != nil {
			return nil, err
		}
	}

	if len(opts.Keyring) > 0 {
		releaseBytes := rel.Render()
		detached, err := SignDetached(releaseBytes, opts.Keyring)
		if err != nil {
			return nil, fmt.Errorf("apt: signing release: %w", err)
		}
		if err := os.WriteFile(filepath.Join(opts.OutputDir, "Release.gpg"), detached, 0o644); err != nil {
			return nil, fmt.Errorf("apt: writing Release.gpg: %w", err)
		}
		inline, err := SignInline(releaseBytes, opts.Keyring)
		if err != nil {
			return nil, fmt.Errorf("apt: clearsigning release: %w", err)
		}
		if err := os.WriteFile(filepath.Join(opts.OutputDir, "InRelease"), inline, 0o644); err != nil {
			return nil, fmt.Errorf("apt: writing InRelease: %w", err)
		}
	}

	if err := os.WriteFile(filepath.Join(opts.OutputDir, "Release"), rel.Render(), 0o644); err != nil {
		return nil, fmt.Errorf("apt: writing Release: %w", err)
	}

	return rel, nil
}

func buildComponentBinaries(opts BuildOptions, component string, rel *ReleaseFile) error {
	for _, arch := range opts.Architectures {
		stanzas, err := ScanBinaries(opts.SourceDir, AllHashAlgorithms)
		if err != nil {
			return fmt.Errorf("apt: scanning binaries for %s/%s: %w", component, arch, err)
		}
		body := RenderPackages(stanzas)
		relPath := filepath.Join(component, "binary-"+arch, "Packages")
		hashed, err := writeMultiCompressed(opts.OutputDir, relPath, body)
		if err != nil {
			return err
		}
		rel.Files = append(rel.Files, hashed...)
	}
	return nil
}

func buildComponentSources(opts BuildOptions, component string, rel *ReleaseFile) error {
	stanzas, err := ScanSources(opts.SourceDir, AllHashAlgorithms)
	if err != nil {
		return fmt.Errorf("apt: scanning sources for %s: %w", component, err)
	}
	body := RenderSources(stanzas)
	relPath := filepath.Join(component, "source", "Sources")
	hashed, err := writeMultiCompressed(opts.OutputDir, relPath, body)
	if err != nil {
		return err
	}
	rel.Files = append(rel.Files, hashed...)
	return nil
}

// writeMultiCompressed feeds body through every configured Compression in
// one pass (spec.md §9's invariant that every compressor sees the same
// bytes), writes each variant under relPath plus its extension, hashes it,
// and publishes a by-hash copy per algorithm.
func writeMultiCompressed(outputDir, relPath string, body []byte) ([]HashedFile, error) {
	mw, err := NewMultiCompressionWriter(AllCompressions)
	if err != nil {
		return nil, fmt.Errorf("apt: building compressor set for %s: %w", relPath, err)
	}
	if _, err := mw.Write(body); err != nil {
		return nil, fmt.Errorf("apt: compressing %s: %w", relPath, err)
	}
	variants, err := mw.Finish()
	if err != nil {
		return nil, fmt.Errorf("apt: finishing compressors for %s: %w", relPath, err)
	}

	var hashed []HashedFile
	for _, c := range AllCompressions {
		data := variants[c]
		outRelPath := relPath + c.Extension()
		outPath := filepath.Join(outputDir, outRelPath)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return nil, fmt.Errorf("apt: creating dir for %s: %w", outRelPath, err)
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("apt: writing %s: %w", outRelPath, err)
		}

		hf, err := HashReader(outRelPath, AllHashAlgorithms, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		hashed = append(hashed, hf)

		if err := publishByHash(outputDir, hf); err != nil {
			return nil, err
		}
	}
	return hashed, nil
}

// publishByHash writes a copy of hf's already-written file under
// by-hash/{Algorithm}/{hex} for every algorithm, per spec.md §4.8 step 4.
func publishByHash(outputDir string, hf HashedFile) error {
	data, err := os.ReadFile(filepath.Join(outputDir, hf.Path))
	if err != nil {
		return fmt.Errorf("apt: reading %s for by-hash publish: %w", hf.Path, err)
	}
	for _, algo := range AllHashAlgorithms {
		digest, ok := hf.Hashes[algo]
		if !ok {
			continue
		}
		dir := filepath.Join(outputDir, filepath.Dir(hf.Path), "by-hash", algo.ReleaseFieldName())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("apt: creating by-hash dir %s: %w", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, digest), data, 0o644); err != nil {
			return fmt.Errorf("apt: writing by-hash copy %s/%s: %w", algo.ReleaseFieldName(), digest, err)
		}
	}
	return nil
}
