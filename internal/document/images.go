package document

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	// Decoders for the formats pdfcpu may emit when unpacking embedded
	// images. Registration is all that is needed; image.Decode picks the
	// right one from the stream header.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageFile is one embedded image persisted to disk with its intrinsic
// dimensions taken from the decoded image metadata.
type ImageFile struct {
	Index  int
	Path   string
	Width  int
	Height int
}

// ExtractPageImages extracts the embedded images of a page and persists each
// as a PNG named deterministically from the page and image index
// (page_%06d_img_%03d.png) under destDir. Naming is stable and collision-free
// within a run because page indices are unique and image order within a page
// is fixed by the extractor.
//
// Images that cannot be decoded are skipped; partial results are returned
// with the error so callers can record a warning without losing the rest of
// the page.
func (d *Document) ExtractPageImages(page int, destDir string) ([]ImageFile, error) {
	staging, err := stagingDir(destDir, page)
	if err != nil {
		return nil, fmt.Errorf("failed to create image staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := d.extractPageImagesRaw(page, staging); err != nil {
		return nil, fmt.Errorf("embedded image extraction failed for page %d: %w", page, err)
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return nil, fmt.Errorf("failed to read image staging dir: %w", err)
	}

	// pdfcpu's own names encode the PDF object order; sorting them keeps the
	// per-page image order deterministic across runs.
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		out      []ImageFile
		firstErr error
	)
	imgIdx := 0
	for _, name := range names {
		img, err := decodeImageFile(filepath.Join(staging, name))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to decode embedded image %s: %w", name, err)
			}
			continue
		}

		imgIdx++
		outPath := filepath.Join(destDir, fmt.Sprintf("page_%06d_img_%03d.png", page, imgIdx))
		if err := writePNG(outPath, img); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			imgIdx--
			continue
		}

		bounds := img.Bounds()
		out = append(out, ImageFile{
			Index:  imgIdx,
			Path:   outPath,
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		})
	}

	return out, firstErr
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode image file %s: %w", path, err)
	}
	return nil
}
