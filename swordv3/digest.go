package swordv3

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/util"
	"github.com/pkg/errors"
	"hash"
	"hash/adler32"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

var digestConstructors = map[string]func() hash.Hash{
	constants.DigestSHA512: sha512.New,
	constants.DigestSHA256: sha256.New,
	constants.DigestSHA1:   sha1.New,
	constants.DigestMD5:    md5.New,
	constants.DigestADLER32: func() hash.Hash {
		return adler32.New()
	},
	constants.DigestCRC32C: func() hash.Hash {
		return crc32.New(crc32.MakeTable(crc32.Castagnoli))
	},
}

// DigestNegotiator computes Digest header values using every
// algorithm that both we and the server support.
type DigestNegotiator struct {
	local []string
}

// NewDigestNegotiator returns a negotiator for the given local
// digest formats. Formats we have no hash for are ignored.
// The order of local is the order of pairs in the header.
func NewDigestNegotiator(local []string) *DigestNegotiator {
	known := make([]string, 0, len(local))
	for _, format := range local {
		if _, ok := digestConstructors[format]; ok && !util.StringListContains(known, format) {
			known = append(known, format)
		}
	}
	return &DigestNegotiator{local: known}
}

// LocalFormats returns the formats this negotiator can compute.
func (negotiator *DigestNegotiator) LocalFormats() []string {
	formats := make([]string, len(negotiator.local))
	copy(formats, negotiator.local)
	return formats
}

// Negotiate returns the local formats the server also accepts,
// in local order. An empty intersection is a DigestFormatNotFound
// error carrying both lists.
func (negotiator *DigestNegotiator) Negotiate(serverFormats []string) ([]string, error) {
	matches := make([]string, 0)
	for _, format := range negotiator.local {
		if util.StringListContains(serverFormats, format) {
			matches = append(matches, format)
		}
	}
	if len(matches) == 0 {
		return nil, &ProtocolError{
			Kind:          DigestFormatNotFound,
			ServerFormats: append([]string{}, serverFormats...),
			LocalFormats:  negotiator.LocalFormats(),
		}
	}
	return matches, nil
}

// DigestReader reads r to EOF and returns the Digest header value,
// e.g. "SHA-256=<hex>, MD5=<hex>". All hashes are computed in a
// single pass.
func (negotiator *DigestNegotiator) DigestReader(r io.Reader, serverFormats []string) (string, error) {
	formats, err := negotiator.Negotiate(serverFormats)
	if err != nil {
		return "", err
	}
	hashes := make([]hash.Hash, len(formats))
	writers := make([]io.Writer, len(formats))
	for i, format := range formats {
		hashes[i] = digestConstructors[format]()
		writers[i] = hashes[i]
	}
	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return "", errors.Wrap(err, "computing digest")
	}
	pairs := make([]string, len(formats))
	for i, format := range formats {
		pairs[i] = fmt.Sprintf("%s=%x", format, hashes[i].Sum(nil))
	}
	return strings.Join(pairs, ", "), nil
}

// DigestBytes returns the Digest header value for data.
func (negotiator *DigestNegotiator) DigestBytes(data []byte, serverFormats []string) (string, error) {
	return negotiator.DigestReader(bytes.NewReader(data), serverFormats)
}

// DigestFile returns the Digest header value for the file at path.
func (negotiator *DigestNegotiator) DigestFile(path string, serverFormats []string) (string, error) {
	// Check the negotiation first, so a format mismatch is reported
	// even when the file is missing.
	if _, err := negotiator.Negotiate(serverFormats); err != nil {
		return "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s for digest", path)
	}
	defer file.Close()
	return negotiator.DigestReader(file, serverFormats)
}
