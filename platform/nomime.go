//go:build nomime
// +build nomime

// Stub functions for builds without libmagic. Galleys with no
// MIME type are judged by file extension in those builds.
package platform

var IsNoMimeBuild = true

func GuessMimeType(absPath string) (mimeType string, err error) {
	return "", nil
}

func GuessMimeTypeByBuffer(buf []byte) (mimeType string, err error) {
	return "", nil
}
