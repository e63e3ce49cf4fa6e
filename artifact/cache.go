// Package artifact caches derived blobs scoped per entity URL,
// keyed (url, kind), plus the automatic embedding policy that keeps
// the "embedding" artifact of each entity fresh.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Artifact is a derived blob scoped to an entity URL.
type Artifact struct {
	URL        string         `json:"url"`
	Kind       string         `json:"kind"`
	SourceHash string         `json:"sourceHash"`
	Content    any            `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Cache holds artifacts keyed (url, kind), at most one per key.
type Cache struct {
	mu   sync.RWMutex
	data map[string]map[string]*Artifact // url -> kind -> artifact
	now  func() time.Time
}

func NewCache() *Cache {
	return &Cache{data: make(map[string]map[string]*Artifact), now: time.Now}
}

// URL builds the "<type>/<id>" key used to scope artifacts to an
// entity.
func URL(typeName, id string) string {
	return typeName + "/" + id
}

// Set overwrites the artifact at (url, kind), hashing the content
// itself as the source hash.
func (c *Cache) Set(url, kind string, content any, metadata map[string]any) *Artifact {
	return c.SetWithSourceHash(url, kind, content, ContentHash(content), metadata)
}

// SetWithSourceHash overwrites the artifact at (url, kind) with an
// explicit source hash, for derived artifacts (embeddings) whose hash
// must reflect the input text rather than the stored vector.
func (c *Cache) SetWithSourceHash(url, kind string, content any, sourceHash string, metadata map[string]any) *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds, ok := c.data[url]
	if !ok {
		kinds = make(map[string]*Artifact)
		c.data[url] = kinds
	}
	now := c.now()
	createdAt := now
	if existing, ok := kinds[kind]; ok {
		createdAt = existing.CreatedAt
	}
	a := &Artifact{
		URL: url, Kind: kind, SourceHash: sourceHash,
		Content: content, Metadata: metadata, CreatedAt: createdAt, UpdatedAt: now,
	}
	kinds[kind] = a
	return a
}

// Get returns the latest artifact at (url, kind), or nil.
func (c *Cache) Get(url, kind string) *Artifact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds, ok := c.data[url]
	if !ok {
		return nil
	}
	return kinds[kind]
}

// Delete removes all kinds scoped to url.
func (c *Cache) Delete(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, url)
}

// InvalidateExcept removes every kind scoped to url except keep. The
// embedding survives an update; everything else is dropped since it
// may be stale.
func (c *Cache) InvalidateExcept(url string, keep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds, ok := c.data[url]
	if !ok {
		return
	}
	for kind := range kinds {
		if kind != keep {
			delete(kinds, kind)
		}
	}
}

// List returns every artifact scoped to url.
func (c *Cache) List(url string) []*Artifact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds, ok := c.data[url]
	if !ok {
		return nil
	}
	out := make([]*Artifact, 0, len(kinds))
	for _, a := range kinds {
		out = append(out, a)
	}
	return out
}

// Count returns the total number of stored artifacts, for stats
// endpoints.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, kinds := range c.data {
		n += len(kinds)
	}
	return n
}

// TotalBytes sums the serialized size of every stored artifact's
// content, for stats endpoints.
func (c *Cache) TotalBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, kinds := range c.data {
		for _, a := range kinds {
			total += int64(len(anyToString(a.Content)))
		}
	}
	return total
}

// ContentHash is used as the artifact's SourceHash so re-embedding
// can be skipped when content is unchanged.
func ContentHash(content any) string {
	s, ok := content.(string)
	if !ok {
		s = anyToString(content)
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func anyToString(v any) string {
	var b strings.Builder
	switch t := v.(type) {
	case []float64:
		for i, f := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
	default:
		b.WriteString(strings.TrimSpace(fmt.Sprint(v)))
	}
	return b.String()
}
