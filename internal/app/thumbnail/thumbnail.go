// Package thumbnail renders downscaled JPEG previews of gallery images and
// keeps them in a disk cache outside the gallery root.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const jpegQuality = 82

// ErrUndecodable means the source bytes are not an image any registered
// decoder understands.
var ErrUndecodable = errors.New("image cannot be decoded")

type Generator struct {
	cacheDir string
	maxPx    int
	log      *slog.Logger
	group    singleflight.Group
}

// New creates cacheDir if needed. maxPx bounds the longest side.
func New(cacheDir string, maxPx int, log *slog.Logger) (*Generator, error) {
	if maxPx <= 0 {
		maxPx = 320
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail cache: %w", err)
	}
	return &Generator{cacheDir: cacheDir, maxPx: maxPx, log: log}, nil
}

// cacheKey changes whenever the source is modified, so stale entries are
// simply never read again.
func (g *Generator) cacheKey(relPath string, modTime time.Time) string {
	name := relPath + "|" + strconv.FormatInt(modTime.UnixNano(), 10) + "|" + strconv.Itoa(g.maxPx)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String() + ".jpg"
}

// Path returns the cached thumbnail for absPath, rendering it on first use.
// Concurrent requests for the same image share one render.
func (g *Generator) Path(absPath, relPath string, modTime time.Time) (string, error) {
	target := filepath.Join(g.cacheDir, g.cacheKey(relPath, modTime))
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	_, err, _ := g.group.Do(target, func() (interface{}, error) {
		if _, err := os.Stat(target); err == nil {
			return nil, nil
		}
		data, err := Render(absPath, g.maxPx)
		if err != nil {
			return nil, err
		}
		if err := writeAtomic(g.cacheDir, target, data); err != nil {
			return nil, err
		}
		g.log.Debug("thumbnail rendered", "rel_path", relPath, "bytes", len(data))
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// Render decodes the image at absPath and encodes a JPEG whose longest side
// is at most maxPx. Smaller images keep their size.
func Render(absPath string, maxPx int) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty bounds %dx%d", ErrUndecodable, w, h)
	}

	nw, nh := fit(w, h, maxPx)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return out.Bytes(), nil
}

func fit(w, h, maxPx int) (int, int) {
	nw, nh := w, h
	if w >= h && w > maxPx {
		nw = maxPx
		nh = int(float64(h) * float64(maxPx) / float64(w))
	} else if h > w && h > maxPx {
		nh = maxPx
		nw = int(float64(w) * float64(maxPx) / float64(h))
	}
	return max(nw, 1), max(nh, 1)
}

func writeAtomic(dir, target string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".thumb-*")
	if err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	return nil
}
