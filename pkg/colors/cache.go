// Package colors hands out Google Calendar event colors per task tag, so
// auto-scheduled blocks of the same area of work look alike.
package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Untagged is graphite, used for tasks without tags.
const Untagged = "8"

// Google Calendar event color IDs run from 1 to 11.
const paletteSize = 11

type TagState struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

// Palette assigns colors to tags. Once all colors are taken, the color of the
// least recently used tag is recycled.
type Palette struct {
	Path  string               `json:"-"`
	Tags  map[string]*TagState `json:"tags"`
	now   func() time.Time
	mu    sync.Mutex
	dirty bool
}

func New() *Palette {
	return &Palette{Tags: make(map[string]*TagState), now: time.Now}
}

// Open loads the palette at path, starting empty if the file does not exist.
func Open(path string) (*Palette, error) {
	p := New()
	p.Path = path
	if _, err := os.Stat(path); err == nil {
		if err := p.Load(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Palette) WithClock(now func() time.Time) *Palette {
	p.now = now
	return p
}

func (p *Palette) Load() error {
	f, err := os.Open(p.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := json.NewDecoder(f).Decode(p); err != nil {
		return err
	}
	if p.Tags == nil {
		p.Tags = make(map[string]*TagState)
	}
	return nil
}

// Save writes the palette back to Path if anything changed.
func (p *Palette) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dirty || p.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(p.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(p); err != nil {
		return err
	}
	p.dirty = false
	return nil
}

// ColorFor returns the color of the first tag, assigning one if needed.
func (p *Palette) ColorFor(tags []string) string {
	if len(tags) == 0 || tags[0] == "" {
		return Untagged
	}
	tag := tags[0]

	p.mu.Lock()
	defer p.mu.Unlock()
	if state, ok := p.Tags[tag]; ok {
		state.LastUsed = p.now()
		p.dirty = true
		return state.ColorID
	}
	return p.assign(tag)
}

func (p *Palette) assign(tag string) string {
	used := make(map[string]bool)
	for _, s := range p.Tags {
		used[s.ColorID] = true
	}
	for i := 1; i <= paletteSize; i++ {
		id := strconv.Itoa(i)
		if id == Untagged || used[id] {
			continue
		}
		p.Tags[tag] = &TagState{ColorID: id, LastUsed: p.now()}
		p.dirty = true
		return id
	}

	var oldest string
	for t, s := range p.Tags {
		if oldest == "" || s.LastUsed.Before(p.Tags[oldest].LastUsed) {
			oldest = t
		}
	}
	recycled := p.Tags[oldest].ColorID
	delete(p.Tags, oldest)
	p.Tags[tag] = &TagState{ColorID: recycled, LastUsed: p.now()}
	p.dirty = true
	return recycled
}
