// Package fieldlayout loads and hot-reloads the JSON field-layout files a
// multi-tag AprilTag pipeline solves against: one 3-D pose per fiducial
// tag, expressed in a field-fixed frame.
package fieldlayout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/warpcomdev/asicamera2/internal/servicelog"
)

// MaxFileSize rejects field-layout uploads larger than this, per the
// published contract for the field-layout file format.
const MaxFileSize = 1 << 20 // 1 MiB

// Quaternion is a field tag's orientation, W/X/Y/Z, read case-insensitively
// from JSON.
type Quaternion struct {
	W, X, Y, Z float64
}

// Translation is a field tag's position in meters.
type Translation struct {
	X, Y, Z float64
}

// Tag is one entry in a field layout.
type Tag struct {
	ID          int
	Translation Translation
	Rotation    Quaternion
}

// Layout is a parsed field-layout file: one pose per known tag ID.
type Layout struct {
	Tags []Tag

	byID map[int]Tag
}

// TagByID looks up a tag's known pose, or ok=false if the layout has no
// entry for id.
func (l *Layout) TagByID(id int) (Tag, bool) {
	t, ok := l.byID[id]
	return t, ok
}

// Count returns the number of tags in the layout.
func (l *Layout) Count() int { return len(l.Tags) }

type rawLayout struct {
	Tags []struct {
		ID   int                    `json:"ID"`
		Pose map[string]any         `json:"pose"`
	} `json:"tags"`
}

// Parse decodes a field-layout JSON document. Keys inside rotation.quaternion
// are matched case-insensitively (W/w, X/x, ...), per the published contract.
func Parse(data []byte) (*Layout, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("field layout exceeds %d bytes", MaxFileSize)
	}

	var raw rawLayout
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding field layout: %w", err)
	}

	layout := &Layout{byID: make(map[int]Tag, len(raw.Tags))}
	for _, rt := range raw.Tags {
		translation, err := extractTranslation(rt.Pose)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", rt.ID, err)
		}
		quat, err := extractQuaternion(rt.Pose)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", rt.ID, err)
		}
		tag := Tag{ID: rt.ID, Translation: translation, Rotation: quat}
		layout.Tags = append(layout.Tags, tag)
		layout.byID[rt.ID] = tag
	}
	return layout, nil
}

func extractTranslation(pose map[string]any) (Translation, error) {
	raw, ok := lookupCI(pose, "translation")
	if !ok {
		return Translation{}, fmt.Errorf("missing translation")
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Translation{}, fmt.Errorf("translation is not an object")
	}
	return Translation{
		X: floatCI(m, "x"),
		Y: floatCI(m, "y"),
		Z: floatCI(m, "z"),
	}, nil
}

func extractQuaternion(pose map[string]any) (Quaternion, error) {
	rotRaw, ok := lookupCI(pose, "rotation")
	if !ok {
		return Quaternion{}, fmt.Errorf("missing rotation")
	}
	rot, ok := rotRaw.(map[string]any)
	if !ok {
		return Quaternion{}, fmt.Errorf("rotation is not an object")
	}
	quatRaw, ok := lookupCI(rot, "quaternion")
	if !ok {
		return Quaternion{}, fmt.Errorf("missing rotation.quaternion")
	}
	q, ok := quatRaw.(map[string]any)
	if !ok {
		return Quaternion{}, fmt.Errorf("rotation.quaternion is not an object")
	}
	return Quaternion{
		W: floatCI(q, "w"),
		X: floatCI(q, "x"),
		Y: floatCI(q, "y"),
		Z: floatCI(q, "z"),
	}, nil
}

func lookupCI(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func floatCI(m map[string]any, key string) float64 {
	v, ok := lookupCI(m, key)
	if !ok {
		return 0
	}
	f, _ := v.(float64)
	return f
}

// Load reads and parses a field-layout file from path.
func Load(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Watcher hot-reloads a field-layout file as it changes on disk, using
// fsnotify the way the teacher's driver watcher packages observe
// directories.
type Watcher struct {
	path   string
	logger servicelog.Logger

	mu     sync.RWMutex
	layout *Layout

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher loads path immediately and starts watching it for changes.
func NewWatcher(path string, logger servicelog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = servicelog.Nop()
	}
	layout, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating field layout watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		logger:  logger,
		layout:  layout,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			layout, err := Load(w.path)
			if err != nil {
				w.logger.Error("reloading field layout", servicelog.String("path", w.path), servicelog.Error(err))
				continue
			}
			w.mu.Lock()
			w.layout = layout
			w.mu.Unlock()
			w.logger.Info("field layout reloaded", servicelog.String("path", w.path), servicelog.Int("tags", layout.Count()))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("field layout watch error", servicelog.Error(err))
		case <-w.done:
			return
		}
	}
}

// Current returns the most recently loaded layout.
func (w *Watcher) Current() *Layout {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.layout
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
