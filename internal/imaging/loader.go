package imaging

import (
	"container/list"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// DefaultCacheSize is how many decoded photographs an ImageCache keeps.
const DefaultCacheSize = 4

// ImageCache provides thread-safe caching of decoded photographs to avoid
// redundant disk reads.
//
// Images are decoded with EXIF orientation applied and, when maxDim is
// positive, shrunk so that neither side exceeds maxDim. Photographs from
// phone cameras are often 4000 pixels or more on the long side; the model
// only ever sees a 640 pixel canvas, so decoding at full size wastes memory.
//
// Entries are keyed by path and checked against the file's modification time
// and size on every Load, so a capture rewritten in place is decoded again.
// At most capacity images are held; the least recently used one is dropped
// first.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewImageCache(1600, imaging.DefaultCacheSize)
//	img, err := cache.Load("/path/to/odometer.jpg")
//	if err != nil {
//	    log.Fatal(err)
//	}
type ImageCache struct {
	mu       sync.Mutex
	maxDim   int
	capacity int
	images   map[string]*list.Element
	order    *list.List // front is most recently used
}

type cacheEntry struct {
	path    string
	modTime time.Time
	size    int64
	img     image.Image
}

// NewImageCache creates an empty cache. A maxDim of zero disables
// downsampling; a non-positive capacity means DefaultCacheSize.
func NewImageCache(maxDim, capacity int) *ImageCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &ImageCache{
		maxDim:   maxDim,
		capacity: capacity,
		images:   make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Supported formats are those registered by disintegration/imaging: JPEG,
// PNG, GIF, TIFF and BMP.
func (c *ImageCache) Load(path string) (image.Image, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	c.mu.Lock()
	if el, ok := c.images[path]; ok {
		e := el.Value.(*cacheEntry)
		if e.modTime.Equal(stat.ModTime()) && e.size == stat.Size() {
			c.order.MoveToFront(el)
			c.mu.Unlock()
			return e.img, nil
		}
		c.remove(el)
	}
	c.mu.Unlock()

	img, err := Decode(path, c.maxDim)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.images[path]; ok {
		c.remove(el)
	}
	c.images[path] = c.order.PushFront(&cacheEntry{
		path:    path,
		modTime: stat.ModTime(),
		size:    stat.Size(),
		img:     img,
	})
	for c.order.Len() > c.capacity {
		c.remove(c.order.Back())
	}
	return img, nil
}

// remove must be called with mu held.
func (c *ImageCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.images, el.Value.(*cacheEntry).path)
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Decode reads the photograph at path, applies its EXIF orientation and
// downsamples it to maxDim.
func Decode(path string, maxDim int) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return Downsample(img, maxDim), nil
}

// Downsample shrinks img so that its longer side is at most maxDim, halving
// repeatedly like a JPEG sample-size decode would. Images already small enough
// and a non-positive maxDim return img unchanged.
func Downsample(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	sample := 1
	for w/sample > maxDim || h/sample > maxDim {
		sample *= 2
	}
	if sample == 1 {
		return img
	}
	return imaging.Resize(img, w/sample, h/sample, imaging.Box)
}

// ImageInfo contains metadata about a loaded photograph.
type ImageInfo struct {
	// Width and Height are the dimensions after orientation and downsampling,
	// which is what the detection pipeline receives.
	Width  int `json:"width"`
	Height int `json:"height"`

	// AspectRatio is Width divided by Height.
	AspectRatio float64 `json:"aspect_ratio"`

	// Format is the detected image format by extension: "png", "jpeg", "gif",
	// "tiff", "bmp" or "unknown".
	Format string `json:"format"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image into the cache and returns its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	case ".tif", ".tiff":
		format = "tiff"
	case ".bmp":
		format = "bmp"
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		AspectRatio:   float64(bounds.Dx()) / float64(bounds.Dy()),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image as the pipeline sees it.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
