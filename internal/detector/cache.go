package detector

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"screenpilot/internal/image"
)

// fingerprint hashes a frame's shape and samples.
func fingerprint(buf *image.PixelBuffer) uint64 {
	var hdr [24]byte
	binary.LittleEndian.PutUint64(hdr[0:], uint64(buf.Width))
	binary.LittleEndian.PutUint64(hdr[8:], uint64(buf.Height))
	binary.LittleEndian.PutUint64(hdr[16:], uint64(buf.Channels))

	h := xxhash.New()
	_, _ = h.Write(hdr[:])
	_, _ = h.Write(buf.Pix)
	return h.Sum64()
}

type cacheEntry struct {
	params   Params
	elements []UIElement
}

// frameCache remembers the results for the most recent distinct frames, so
// an unchanged screen is not re-analysed every cycle. Eviction is FIFO.
type frameCache struct {
	mu      sync.Mutex
	size    int
	entries map[uint64]cacheEntry
	order   []uint64
}

func newFrameCache(size int) *frameCache {
	return &frameCache{size: size, entries: make(map[uint64]cacheEntry)}
}

func cloneElements(in []UIElement) []UIElement {
	if in == nil {
		return nil
	}
	out := make([]UIElement, len(in))
	for i, e := range in {
		out[i] = e.clone()
	}
	return out
}

func (c *frameCache) get(key uint64, params Params) ([]UIElement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.params != params {
		return nil, false
	}
	return cloneElements(e.elements), true
}

func (c *frameCache) put(key uint64, params Params, elements []UIElement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.size <= 0 {
		return
	}
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{params: params, elements: cloneElements(elements)}
	for len(c.order) > c.size {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *frameCache) reset(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = size
	c.entries = make(map[uint64]cacheEntry)
	c.order = nil
}
