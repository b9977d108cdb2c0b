package domain

import (
	"bytes"
	"path/filepath"
	"strings"
)

// InputKind selects the pipeline entry stage for one upload.
type InputKind int

const (
	// KindImage goes through detection, classification and encoding.
	KindImage InputKind = iota
	// KindSymbolic is already a Standard MIDI File and goes straight to synthesis.
	KindSymbolic
)

func (k InputKind) String() string {
	if k == KindSymbolic {
		return "symbolic"
	}
	return "image"
}

var smfMagic = []byte("MThd")

// UploadFile is one uploaded file.
type UploadFile struct {
	Name string
	Data []byte
}

// Kind sniffs the SMF header first and falls back to the file extension.
func (f UploadFile) Kind() InputKind {
	if bytes.HasPrefix(f.Data, smfMagic) {
		return KindSymbolic
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".mid", ".midi", ".smf":
		return KindSymbolic
	}
	return KindImage
}

// UploadBatch is an ordered list of uploads; order is preserved into the combined audio.
type UploadBatch struct {
	Files []UploadFile
}

// Len returns the number of files.
func (b UploadBatch) Len() int {
	return len(b.Files)
}
