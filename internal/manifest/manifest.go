// Package manifest defines the resolved character manifest and its JSON
// form: an array of characters in first-seen order.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gfres/internal/fsutil"
)

// Pair references the normal and destroyed variant of an image, relative
// to its resource root.
type Pair struct {
	Normal  string `json:"normal"`
	Destroy string `json:"destroy"`
}

type Live2D struct {
	Normal  string `json:"normal,omitempty"`
	Destroy string `json:"destroy,omitempty"`
}

func (l *Live2D) Empty() bool {
	return l == nil || (l.Normal == "" && l.Destroy == "")
}

type SpineFiles struct {
	Skel  string `json:"skel"`
	Atlas string `json:"atlas"`
}

type Spine struct {
	Normal *SpineFiles `json:"normal,omitempty"`
	Rest   *SpineFiles `json:"rest,omitempty"`
}

func (s *Spine) Empty() bool {
	return s == nil || (s.Normal == nil && s.Rest == nil)
}

type Skin struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Avatar Pair    `json:"avatar"`
	Image  Pair    `json:"image"`
	Class  int     `json:"class"`
	Dialog string  `json:"dialog,omitempty"`
	Note   string  `json:"note,omitempty"`
	Live2D *Live2D `json:"live2d,omitempty"`
	Spine  *Spine  `json:"spine,omitempty"`
}

type Character struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Avatar     Pair   `json:"avatar"`
	Rank       *int   `json:"rank"`
	Type       *int   `json:"type"`
	LaunchTime string `json:"launch_time"`
	Skins      []Skin `json:"skins"`
}

// Key returns the manifest key of a character: its upper-cased on-disk
// code, taken from its avatar path.
func (c *Character) Key() string {
	if disk, _, ok := strings.Cut(c.Avatar.Normal, "/"); ok && disk != "" {
		return strings.ToUpper(disk)
	}
	return strings.ToUpper(c.Code)
}

// Manifest is an insertion-ordered mapping of key to character. Setting an
// existing key replaces the character in place.
type Manifest struct {
	keys  []string
	chars map[string]*Character
}

func New() *Manifest {
	return &Manifest{chars: map[string]*Character{}}
}

func (m *Manifest) Set(key string, c *Character) {
	if _, ok := m.chars[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.chars[key] = c
}

func (m *Manifest) Get(key string) (*Character, bool) {
	c, ok := m.chars[key]
	return c, ok
}

func (m *Manifest) Keys() []string {
	return append([]string{}, m.keys...)
}

func (m *Manifest) Len() int {
	return len(m.keys)
}

// Characters returns the characters in manifest order.
func (m *Manifest) Characters() []*Character {
	out := make([]*Character, 0, len(m.keys))
	for _, key := range m.keys {
		out = append(out, m.chars[key])
	}
	return out
}

func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Characters())
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var chars []*Character
	if err := json.Unmarshal(data, &chars); err != nil {
		return err
	}
	*m = *New()
	for _, c := range chars {
		if c == nil {
			continue
		}
		m.Set(c.Key(), c)
	}
	return nil
}

// Write replaces the manifest file at path atomically.
func Write(path string, m *Manifest) error {
	if err := fsutil.WriteJSON(path, m.Characters()); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}
