package apt

import (
	"bytes"
	"fmt"
)

// renderPackageStanza renders a scanned PackageStanza back out as a deb822
// stanza: the original fields as read, followed by the synthetic index
// fields dpkg-scanpackages appends (Filename, Size, one line per hash
// algorithm).
func renderPackageStanza(s PackageStanza) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s", s.Paragraph.String())
	writeSyntheticFields(&buf, s.Filename, s.Size, s.Hashes)
	return buf.Bytes()
}

func renderSourceStanza(s SourceStanza) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s", s.Paragraph.String())
	writeSyntheticFields(&buf, s.Filename, s.Size, s.Hashes)
	return buf.Bytes()
}

func writeSyntheticFields(buf *bytes.Buffer, filename string, size int64, hashes map[HashAlgorithm]string) {
	fmt.Fprintf(buf, "Filename: %s\n", filename)
	fmt.Fprintf(buf, "Size: %d\n", size)
	for _, algo := range AllHashAlgorithms {
		digest, ok := hashes[algo]
		if !ok {
			continue
		}
		name := algo.ReleaseFieldName()
		if name == "MD5Sum" {
			name = "MD5sum"
		}
		fmt.Fprintf(buf, "%s: %s\n", name, digest)
	}
	buf.WriteByte('\n')
}

// RenderPackages writes every PackageStanza as one Packages-file index,
// stanzas separated by a blank line, matching dpkg-scanpackages' output
// layout.
func RenderPackages(stanzas []PackageStanza) []byte {
	var buf bytes.Buffer
	for _, s := range stanzas {
		buf.Write(renderPackageStanza(s))
	}
	return buf.Bytes()
}

// RenderSources writes every SourceStanza as one Sources-file index.
func RenderSources(stanzas []SourceStanza) []byte {
	var buf bytes.Buffer
	for _, s := range stanzas {
		buf.Write(renderSourceStanza(s))
	}
	return buf.Bytes()
}
