package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/law-makers/ordercrawl/internal/site"
	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// Capturer screenshots an element of a page opened out of band
type Capturer interface {
	Capture(ctx context.Context, url, selector string) ([]byte, error)
}

// Thumbnailer stores item thumbnails as <dir>/<storeId>_<itemId>.png
type Thumbnailer struct {
	capturer Capturer
	dir      string
}

// NewThumbnailer creates a Thumbnailer writing under dir
func NewThumbnailer(c Capturer, dir string) *Thumbnailer {
	return &Thumbnailer{capturer: c, dir: dir}
}

// Path returns where the thumbnail of productID is stored
func (t *Thumbnailer) Path(productID string) string {
	return filepath.Join(t.dir, strings.ReplaceAll(productID, "/", "_")+".png")
}

// Save captures the image at imgURL for the item and returns the file path.
// An existing file is kept as is.
func (t *Thumbnailer) Save(ctx context.Context, item models.Item, imgURL string) (string, error) {
	if imgURL == "" {
		return "", fmt.Errorf("no thumbnail for %s", item.ProductID())
	}

	path := t.Path(item.ProductID())
	if _, err := os.Stat(path); err == nil {
		log.Debug().Str("path", path).Msg("Thumbnail already stored")
		return path, nil
	}

	png, err := t.capturer.Capture(ctx, imgURL, site.ImageSelector)
	if err != nil {
		return "", fmt.Errorf("failed to capture thumbnail of %s: %w", item.ProductID(), err)
	}

	if err := os.MkdirAll(t.dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return path, nil
}
