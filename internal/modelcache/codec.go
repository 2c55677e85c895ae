package modelcache

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
)

// Blob layout: magic, BLAKE3-256 of the uncompressed payload, then the
// xz-compressed payload.
var blobMagic = []byte("JALN1")

const checksumSize = 32

// Injectable for tests.
var (
	xzNewWriter = xz.NewWriter
	xzNewReader = xz.NewReader
	ioReadAll   = io.ReadAll
)

// Encode frames and compresses a serialized model.
func Encode(payload []byte) ([]byte, error) {
	sum := blake3.Sum256(payload)
	var buf bytes.Buffer
	buf.Write(blobMagic)
	buf.Write(sum[:])

	w, err := xzNewWriter(&buf)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create xz writer")
	}
	if _, err := w.Write(payload); err != nil {
		return nil, apperrors.Wrap(err, "failed to compress model")
	}
	if err := w.Close(); err != nil {
		return nil, apperrors.Wrap(err, "failed to finish compression")
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode and verifies the checksum.
func Decode(blob []byte) ([]byte, error) {
	header := len(blobMagic) + checksumSize
	if len(blob) < header || !bytes.Equal(blob[:len(blobMagic)], blobMagic) {
		return nil, apperrors.NewParse("model blob", "", "missing header")
	}
	want := blob[len(blobMagic):header]

	r, err := xzNewReader(bytes.NewReader(blob[header:]))
	if err != nil {
		return nil, &apperrors.ParseError{Format: "model blob", Message: err.Error(), Err: err}
	}
	payload, err := ioReadAll(r)
	if err != nil {
		return nil, &apperrors.ParseError{Format: "model blob", Message: err.Error(), Err: err}
	}
	if sum := blake3.Sum256(payload); !bytes.Equal(sum[:], want) {
		return nil, apperrors.NewParse("model blob", "", "checksum mismatch")
	}
	return payload, nil
}
