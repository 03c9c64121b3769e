//go:build !nomime
// +build !nomime

// This requires libmagic. Build with -tags=nomime on machines that
// don't have it; galleys must then carry their own MIME types.
package platform

import (
	"fmt"
	"github.com/rakyll/magicmime"
	"regexp"
	"sync"
)

var IsNoMimeBuild = false

// The libmagic database is opened once, on first use.
var openOnce sync.Once
var openErr error

// We need to restrict access to the underlying libmagic C
// library, because it sometimes fails or returns nonsense
// (unprintable characters) when accessed by multiple goroutines
// at once. The calls are fast, so a mutex is not a bottleneck.
var mutex = &sync.Mutex{}

var validMimeType = regexp.MustCompile(`^[\w.+-]+/[\w.+-]+$`)

func openMagic() error {
	openOnce.Do(func() {
		if err := magicmime.Open(magicmime.MAGIC_MIME_TYPE); err != nil {
			openErr = fmt.Errorf("Error opening MimeMagic database: %v", err)
		}
	})
	return openErr
}

// GuessMimeType returns the MIME type of the file at absPath.
// In some cases libmagic returns an empty string or unprintable
// characters, so we default to application/octet-stream and use
// the guess only if it looks legit.
func GuessMimeType(absPath string) (mimeType string, err error) {
	if err = openMagic(); err != nil {
		return "", err
	}
	mimeType = "application/octet-stream"
	mutex.Lock()
	guessedType, _ := magicmime.TypeByFile(absPath)
	mutex.Unlock()
	if guessedType != "" && validMimeType.MatchString(guessedType) {
		mimeType = guessedType
	}
	return mimeType, nil
}

// GuessMimeTypeByBuffer is GuessMimeType for the leading bytes
// of a file.
func GuessMimeTypeByBuffer(buf []byte) (mimeType string, err error) {
	if err = openMagic(); err != nil {
		return "", err
	}
	mimeType = "application/octet-stream"
	mutex.Lock()
	guessedType, _ := magicmime.TypeByBuffer(buf)
	mutex.Unlock()
	if guessedType != "" && validMimeType.MatchString(guessedType) {
		mimeType = guessedType
	}
	return mimeType, nil
}
