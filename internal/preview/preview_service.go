package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/h2non/bimg"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
)

const (
	maxImageSize    = 1024 // longest side of a preview in pixels
	jpegQuality     = 85
	contentTypeJPEG = "image/jpeg"
)

// Store is the part of blob storage previews need.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type renderFunc func(ctx context.Context, pdf []byte) ([]byte, error)

type Service struct {
	store  Store
	render renderFunc
	logger *logrus.Logger
}

func NewService(store Store, logger *logrus.Logger) *Service {
	s := &Service{
		store:  store,
		logger: logger,
	}
	s.render = s.renderFirstPage
	return s
}

// GetOrGeneratePreview returns a JPEG of the first page of v. Generated
// previews are cached next to the PDFs under previews/.
func (s *Service) GetOrGeneratePreview(ctx context.Context, v *domain.Version) ([]byte, error) {
	key := domain.PreviewKey(v.DocumentID, v.VersionNum)
	log := s.logger.WithFields(logrus.Fields{
		"document_id": v.DocumentID,
		"version":     v.VersionNum,
	})

	cached, err := s.store.Get(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, domain.ErrBlobNotFound) {
		log.WithError(err).Warn("Failed to read cached preview")
	}

	pdf, err := s.store.Get(ctx, v.BlobKey)
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			return nil, apperr.NewNotFoundError("PDF not found")
		}
		return nil, apperr.NewUpstreamError("failed to read file from storage", err)
	}

	image, err := s.render(ctx, pdf)
	if err != nil {
		return nil, apperr.NewProcessingError("failed to generate preview", err)
	}

	if _, err := s.store.Put(ctx, key, image, contentTypeJPEG); err != nil {
		log.WithError(err).Warn("Failed to cache preview")
	} else {
		log.Debug("Preview generated")
	}

	return image, nil
}

// renderFirstPage rasterizes page 1 through libvips when it was built with
// poppler, and through pdftoppm otherwise.
func (s *Service) renderFirstPage(ctx context.Context, pdf []byte) ([]byte, error) {
	if bimg.IsTypeSupported(bimg.PDF) {
		img, err := bimg.NewImage(pdf).Convert(bimg.JPEG)
		if err == nil {
			return optimizeImage(img)
		}
		s.logger.WithError(err).Warn("libvips failed to render PDF, trying pdftoppm")
	}
	return renderWithPdftoppm(ctx, pdf)
}

func renderWithPdftoppm(ctx context.Context, pdf []byte) ([]byte, error) {
	tmpPath, err := os.MkdirTemp("", "preview_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpPath)

	pdfPath := filepath.Join(tmpPath, "input.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0644); err != nil {
		return nil, fmt.Errorf("failed to write PDF file: %w", err)
	}

	outputPath := filepath.Join(tmpPath, "output")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-jpeg",
		"-f", "1",
		"-l", "1",
		"-scale-to", strconv.Itoa(maxImageSize),
		"-singlefile",
		pdfPath,
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("failed to convert PDF: %w: %s", err, out)
	}

	img, err := os.ReadFile(outputPath + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to read converted image: %w", err)
	}

	return optimizeImage(img)
}

func optimizeImage(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := calculateNewDimensions(size.Width, size.Height, maxImageSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// calculateNewDimensions scales the longest side down to maxSize keeping the
// aspect ratio. Images already within bounds keep their size.
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}
