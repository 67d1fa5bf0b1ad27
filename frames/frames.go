// Package frames post-processes frame images fetched from the backend:
// perceptual-hash deduplication, stable file naming and writing to disk.
package frames

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/pkg/errors"

	"github.com/nijaru/videochat/client"
)

// Image is a frame image together with where it came from.
type Image struct {
	VideoID     int
	Timestamp   float64
	Data        []byte
	ContentType string
}

// FileName returns the canonical file name of a frame, for example
// "video_3_12.5s.jpg".
func FileName(videoID int, timestamp float64, contentType string) string {
	return fmt.Sprintf("video_%d_%ss.%s", videoID, client.FormatTimestamp(timestamp), extension(contentType))
}

// Name is FileName applied to img.
func (img Image) Name() string {
	return FileName(img.VideoID, img.Timestamp, img.ContentType)
}

func extension(contentType string) string {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch strings.ToLower(mediaType) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

// Dedupe removes near-duplicate images using perceptual hashing (pHash).
// Images whose pHash distance to an already kept image is below threshold are
// dropped; the first of each group wins. A threshold of 0 keeps everything.
// Images that cannot be decoded are always kept.
func Dedupe(images []Image, threshold int) ([]Image, error) {
	if threshold <= 0 || len(images) < 2 {
		return images, nil
	}

	var (
		kept   []Image
		hashes []*goimagehash.ImageHash
	)

	for _, img := range images {
		decoded, _, err := image.Decode(bytes.NewReader(img.Data))
		if err != nil {
			kept = append(kept, img)
			continue
		}

		hash, err := goimagehash.PerceptionHash(decoded)
		if err != nil {
			return nil, errors.Wrapf(err, "hashing %s", img.Name())
		}

		isDup := false
		for _, k := range hashes {
			dist, err := hash.Distance(k)
			if err != nil {
				return nil, errors.Wrap(err, "comparing hashes")
			}
			if dist < threshold {
				isDup = true
				break
			}
		}

		if !isDup {
			kept = append(kept, img)
			hashes = append(hashes, hash)
		}
	}

	return kept, nil
}

// WriteAll writes every image into dir under its FileName and returns the
// written paths in order.
func WriteAll(dir string, images []Image) ([]string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "creating %s", dir)
	}

	paths := make([]string, 0, len(images))
	for _, img := range images {
		path := filepath.Join(dir, img.Name())
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return paths, errors.Wrapf(err, "writing %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
