// Package srpmtest builds small but complete source RPMs for tests: lead,
// signature header, main header and a gzip'd newc cpio payload.
package srpmtest

import (
	"archive/tar"
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/klauspost/compress/gzip"
)

// header data types
const (
	typeInt16       = 3
	typeInt32       = 4
	typeString      = 6
	typeBin         = 7
	typeStringArray = 8
)

// main header tags
const (
	tagName              = 1000
	tagVersion           = 1001
	tagRelease           = 1002
	tagLicense           = 1014
	tagSource            = 1018
	tagURL               = 1020
	tagFileSizes         = 1028
	tagFileModes         = 1030
	tagFileMtimes        = 1034
	tagFileDigests       = 1035
	tagFileLinkTos       = 1036
	tagFileFlags         = 1037
	tagFileUsername      = 1039
	tagFileGroupname     = 1040
	tagFileInodes        = 1096
	tagSourcePackage     = 1106
	tagDirIndexes        = 1116
	tagBasenames         = 1117
	tagDirnames          = 1118
	tagPayloadFormat     = 1124
	tagPayloadCompressor = 1125
	tagPayloadFlags      = 1126
	tagFileDigestAlgo    = 5011
)

// signature header tags
const (
	sigSize   = 1000
	sigPGP    = 1002
	sigMD5    = 1004
	sigSHA1   = 269
	sigSHA256 = 273
)

const mtime = 1700000000

// File is one payload member.
type File struct {
	Name string
	Body []byte
}

// Package describes the SRPM to build.
type Package struct {
	Name    string
	Version string
	Release string
	License string
	URL     string
	Sources []string
	Files   []File
	// Signer, when set, signs header and payload.
	Signer *openpgp.Entity
}

// Demo is a package carrying a spec file and one upstream tarball.
func Demo(t *testing.T) Package {
	t.Helper()
	return Package{
		Name:    "demo",
		Version: "1.0",
		Release: "1",
		License: "GPLv2+ and MIT",
		URL:     "https://demo.example.org",
		Sources: []string{"https://demo.example.org/releases/demo-1.0.tar.gz", "fix-build.patch"},
		Files: []File{
			{Name: "demo.spec", Body: []byte(DemoSpec)},
			{Name: "demo-1.0.tar.gz", Body: Tarball(t, map[string]string{
				"demo-1.0/README":     "demo\n",
				"demo-1.0/src/main.c": "int main(void) { return 0; }\n",
			})},
			{Name: "fix-build.patch", Body: []byte("--- a/src/main.c\n+++ b/src/main.c\n")},
		},
	}
}

// DemoSpec is the spec file shipped by Demo.
const DemoSpec = `Name:    demo
Version: 1.0
Release: 1
License: GPLv2+ and MIT
URL:     https://demo.example.org
Source0: https://demo.example.org/releases/demo-1.0.tar.gz
Patch0:  fix-build.patch
`

// Tarball returns a gzip'd tar holding files in name order.
func Tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		body := files[name]
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Write builds p into dir and returns the path of the
// name-version-release.src.rpm file.
func Write(t *testing.T, dir string, p Package) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s-%s-%s.src.rpm", p.Name, p.Version, p.Release))
	if err := os.WriteFile(path, Build(t, p), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Build returns the bytes of p as a source RPM.
func Build(t *testing.T, p Package) []byte {
	t.Helper()
	payload := buildPayload(t, p.Files)
	hdr := buildMainHeader(p)

	var signed bytes.Buffer
	signed.Write(hdr)
	signed.Write(payload)

	sum1 := sha1.Sum(hdr)
	sum256 := sha256.Sum256(hdr)
	md := md5.Sum(signed.Bytes())
	sig := []entry{
		int32Entry(sigSize, uint32(signed.Len())),
		{tag: sigMD5, typ: typeBin, count: int32(len(md)), data: md[:]},
		stringEntry(sigSHA1, hex.EncodeToString(sum1[:])),
		stringEntry(sigSHA256, hex.EncodeToString(sum256[:])),
	}
	if p.Signer != nil {
		var pgp bytes.Buffer
		if err := openpgp.DetachSign(&pgp, p.Signer, bytes.NewReader(signed.Bytes()), nil); err != nil {
			t.Fatal(err)
		}
		sig = append(sig, entry{tag: sigPGP, typ: typeBin, count: int32(pgp.Len()), data: pgp.Bytes()})
	}
	sigHdr := encodeHeader(sig)
	if pad := len(sigHdr) % 8; pad != 0 {
		sigHdr = append(sigHdr, make([]byte, 8-pad)...)
	}

	var out bytes.Buffer
	out.Write(lead(fmt.Sprintf("%s-%s-%s", p.Name, p.Version, p.Release)))
	out.Write(sigHdr)
	out.Write(signed.Bytes())
	return out.Bytes()
}

func lead(nevr string) []byte {
	b := make([]byte, 96)
	copy(b, []byte{0xed, 0xab, 0xee, 0xdb, 3, 0})
	binary.BigEndian.PutUint16(b[6:], 1) // source
	binary.BigEndian.PutUint16(b[8:], 0)
	copy(b[10:75], nevr)
	binary.BigEndian.PutUint16(b[76:], 1) // linux
	binary.BigEndian.PutUint16(b[78:], 5) // header-style signature
	return b
}

func buildMainHeader(p Package) []byte {
	n := len(p.Files)
	var (
		sizes    = make([]uint32, n)
		modes    = make([]uint16, n)
		mtimes   = make([]uint32, n)
		flags    = make([]uint32, n)
		inodes   = make([]uint32, n)
		dirIdx   = make([]uint32, n)
		digests  = make([]string, n)
		linkTos  = make([]string, n)
		users    = make([]string, n)
		groups   = make([]string, n)
		basename = make([]string, n)
	)
	for i, f := range p.Files {
		sum := sha256.Sum256(f.Body)
		sizes[i] = uint32(len(f.Body))
		modes[i] = 0100644
		mtimes[i] = mtime
		flags[i] = 1 << 16 // source
		inodes[i] = uint32(i + 1)
		digests[i] = hex.EncodeToString(sum[:])
		users[i] = "root"
		groups[i] = "root"
		basename[i] = f.Name
	}

	entries := []entry{
		stringEntry(tagName, p.Name),
		stringEntry(tagVersion, p.Version),
		stringEntry(tagRelease, p.Release),
		int32Entry(tagFileSizes, sizes...),
		int16Entry(tagFileModes, modes...),
		int32Entry(tagFileMtimes, mtimes...),
		stringArrayEntry(tagFileDigests, digests),
		stringArrayEntry(tagFileLinkTos, linkTos),
		int32Entry(tagFileFlags, flags...),
		stringArrayEntry(tagFileUsername, users),
		stringArrayEntry(tagFileGroupname, groups),
		int32Entry(tagFileInodes, inodes...),
		int32Entry(tagSourcePackage, 1),
		int32Entry(tagDirIndexes, dirIdx...),
		stringArrayEntry(tagBasenames, basename),
		stringArrayEntry(tagDirnames, []string{""}),
		stringEntry(tagPayloadFormat, "cpio"),
		stringEntry(tagPayloadCompressor, "gzip"),
		stringEntry(tagPayloadFlags, "9"),
		int32Entry(tagFileDigestAlgo, 8), // sha256
	}
	// rpm leaves out tags without a value
	if p.License != "" {
		entries = append(entries, stringEntry(tagLicense, p.License))
	}
	if p.URL != "" {
		entries = append(entries, stringEntry(tagURL, p.URL))
	}
	if len(p.Sources) > 0 {
		entries = append(entries, stringArrayEntry(tagSource, p.Sources))
	}
	return encodeHeader(entries)
}

type entry struct {
	tag   int32
	typ   int32
	count int32
	data  []byte
}

func stringEntry(tag int32, s string) entry {
	return entry{tag: tag, typ: typeString, count: 1, data: append([]byte(s), 0)}
}

func stringArrayEntry(tag int32, ss []string) entry {
	var data []byte
	for _, s := range ss {
		data = append(append(data, s...), 0)
	}
	return entry{tag: tag, typ: typeStringArray, count: int32(len(ss)), data: data}
}

func int32Entry(tag int32, vals ...uint32) entry {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(data[4*i:], v)
	}
	return entry{tag: tag, typ: typeInt32, count: int32(len(vals)), data: data}
}

func int16Entry(tag int32, vals ...uint16) entry {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint16(data[2*i:], v)
	}
	return entry{tag: tag, typ: typeInt16, count: int32(len(vals)), data: data}
}

func alignment(typ int32) int {
	switch typ {
	case typeInt16:
		return 2
	case typeInt32:
		return 4
	}
	return 1
}

// encodeHeader lays out intro, index and data store with entries sorted by
// tag and numeric data aligned to its width.
func encodeHeader(entries []entry) []byte {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	var store []byte
	index := make([]byte, 16*len(entries))
	for i, e := range entries {
		if a := alignment(e.typ); len(store)%a != 0 {
			store = append(store, make([]byte, a-len(store)%a)...)
		}
		binary.BigEndian.PutUint32(index[16*i:], uint32(e.tag))
		binary.BigEndian.PutUint32(index[16*i+4:], uint32(e.typ))
		binary.BigEndian.PutUint32(index[16*i+8:], uint32(len(store)))
		binary.BigEndian.PutUint32(index[16*i+12:], uint32(e.count))
		store = append(store, e.data...)
	}

	intro := make([]byte, 16)
	copy(intro, []byte{0x8e, 0xad, 0xe8, 0x01})
	binary.BigEndian.PutUint32(intro[8:], uint32(len(entries)))
	binary.BigEndian.PutUint32(intro[12:], uint32(len(store)))

	out := append(intro, index...)
	return append(out, store...)
}

func buildPayload(t *testing.T, files []File) []byte {
	t.Helper()
	var cpio bytes.Buffer
	for i, f := range files {
		writeCpioEntry(&cpio, uint32(i+1), 0100644, 1, f.Name, f.Body)
	}
	writeCpioEntry(&cpio, 0, 0, 1, "TRAILER!!!", nil)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(cpio.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// writeCpioEntry appends one SVR4 "newc" member; header plus name and the
// body are each padded to four bytes.
func writeCpioEntry(w *bytes.Buffer, ino, mode, nlink uint32, name string, body []byte) {
	fmt.Fprintf(w, "070701%08X%08X%08X%08X%08X%08X%08X%08X%08X%08X%08X%08X%08X",
		ino, mode, 0, 0, nlink, mtime, len(body), 0, 0, 0, 0, len(name)+1, 0)
	w.WriteString(name)
	w.WriteByte(0)
	pad4(w)
	w.Write(body)
	pad4(w)
}

func pad4(w *bytes.Buffer) {
	if r := w.Len() % 4; r != 0 {
		w.Write(make([]byte, 4-r))
	}
}
