package fswalk

import (
	"bytes"
	"os"
)

// cacheDirSignature is the canonical 43-byte CACHEDIR.TAG signature
// defined by the Cache Directory Tagging Specification.
const cacheDirSignature = "Signature: 8a477f597d28d172789f06886806bc55"

const cacheDirTagFile = "CACHEDIR.TAG"

// hasCacheDirTag reports whether dir contains a CACHEDIR.TAG file
// whose first bytes match the canonical signature. Only the tag file
// itself is inspected; a directory is never opened twice for this
// check.
func hasCacheDirTag(dirPath string) bool {
	data, err := os.ReadFile(dirPath + string(os.PathSeparator) + cacheDirTagFile)
	if err != nil {
		return false
	}
	if len(data) < len(cacheDirSignature) {
		return false
	}
	return bytes.Equal(data[:len(cacheDirSignature)], []byte(cacheDirSignature))
}
