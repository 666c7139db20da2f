package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

const (
	// MinImageDimension is the smallest side length that still yields a
	// meaningful difference hash.
	MinImageDimension = 16

	hashPrefix = "d:"
)

// Hasher computes a SHA-256 checksum for every input and a 64-bit
// difference hash for decodable images.
type Hasher struct{}

func NewHasher() *Hasher {
	return &Hasher{}
}

func (h *Hasher) Hash(fileBytes []byte, mimeType string) (domain.Fingerprints, error) {
	if fileBytes == nil {
		return domain.Fingerprints{}, domain.WrapError(domain.ErrFatal, "hash document", errors.New("file bytes are unreadable"))
	}
	if len(fileBytes) == 0 {
		return domain.Fingerprints{}, domain.WrapError(domain.ErrInvalidInput, "hash document", errors.New("file is empty"))
	}

	fp := domain.Fingerprints{Checksum: Checksum(fileBytes)}
	if !domain.IsImageRepresentable(mimeType) {
		return fp, nil
	}

	phash, err := PerceptualHash(fileBytes)
	if err != nil {
		fp.VisualQualityLow = true
		return fp, nil
	}
	fp.PerceptualHash = phash
	return fp, nil
}

// Checksum returns the lowercase hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PerceptualHash decodes an image (first frame for animated formats) and
// returns its difference hash encoded as "d:<16 hex digits>".
func PerceptualHash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return PerceptualHashImage(img)
}

func PerceptualHashImage(img image.Image) (string, error) {
	bounds := img.Bounds()
	if bounds.Dx() < MinImageDimension || bounds.Dy() < MinImageDimension {
		return "", fmt.Errorf("image %dx%d below minimum %dpx", bounds.Dx(), bounds.Dy(), MinImageDimension)
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", fmt.Errorf("difference hash: %w", err)
	}
	return FormatHash(hash.GetHash()), nil
}

func FormatHash(v uint64) string {
	return fmt.Sprintf("%s%016x", hashPrefix, v)
}

func ParseHash(s string) (*goimagehash.ImageHash, error) {
	if !strings.HasPrefix(s, hashPrefix) {
		return nil, fmt.Errorf("unsupported perceptual hash %q", s)
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, hashPrefix), 16, 64)
	if err != nil {
		return nil, fmt.Errorf("parse perceptual hash %q: %w", s, err)
	}
	return goimagehash.NewImageHash(v, goimagehash.DHash), nil
}

// Distance returns the Hamming distance between two encoded hashes.
func Distance(a, b string) (int, error) {
	ha, err := ParseHash(a)
	if err != nil {
		return 0, err
	}
	hb, err := ParseHash(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}
