// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package codec

import (
	"encoding/binary"
	"errors"
	"image"
	"io"

	"golang.org/x/image/tiff"
)

// maxTIFFPages bounds the IFD chain walk so a corrupt file cannot loop forever.
const maxTIFFPages = 10000

var errNotTIFF = errors.New("not a classic TIFF stream")

// EncodeTIFF writes img as a Deflate-compressed TIFF.
func EncodeTIFF(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// tiffIFDOffsets walks the IFD chain of a classic (non-Big) TIFF and returns
// the offset of every image file directory, one per page.
func tiffIFDOffsets(data []byte) ([]uint32, error) {
	if len(data) < 8 {
		return nil, errNotTIFF
	}
	var bo binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, errNotTIFF
	}
	if bo.Uint16(data[2:4]) != 42 {
		return nil, errNotTIFF
	}

	var offsets []uint32
	seen := make(map[uint32]bool)
	off := bo.Uint32(data[4:8])
	for off != 0 && len(offsets) < maxTIFFPages {
		if seen[off] || int(off)+2 > len(data) {
			break
		}
		seen[off] = true
		offsets = append(offsets, off)

		entries := int(bo.Uint16(data[off : off+2]))
		next := int(off) + 2 + 12*entries
		if next+4 > len(data) {
			break
		}
		off = bo.Uint32(data[next : next+4])
	}
	if len(offsets) == 0 {
		return nil, errNotTIFF
	}
	return offsets, nil
}

// tiffFrames decodes every page of a multi-page TIFF. The decoder only reads
// the first IFD, so each page is decoded from a copy whose header points at
// that page's IFD; all other offsets in the file are absolute and stay valid.
func tiffFrames(data []byte) ([]image.Image, error) {
	offsets, err := tiffIFDOffsets(data)
	if err != nil {
		return nil, err
	}
	if len(offsets) == 1 {
		img, err := decodeTIFF(data)
		if err != nil {
			return nil, err
		}
		return []image.Image{img}, nil
	}

	bo := binary.ByteOrder(binary.LittleEndian)
	if string(data[:2]) == "MM" {
		bo = binary.BigEndian
	}
	patched := make([]byte, len(data))
	copy(patched, data)

	frames := make([]image.Image, 0, len(offsets))
	for _, off := range offsets {
		bo.PutUint32(patched[4:8], off)
		img, err := decodeTIFF(patched)
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}
	return frames, nil
}
