// Package resolve links the character and skin tables to the finished
// resource library and produces the character manifest.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"gfres/internal/apperr"
	"gfres/internal/avatar"
	"gfres/internal/fsutil"
	"gfres/internal/live2d"
	"gfres/internal/manifest"
	"gfres/internal/stage"
	"gfres/internal/tables"
)

const (
	modSuffix        = "mod"
	modClass         = 99
	unknownClass     = -1
	defaultSkinClass = 0
)

// Roots are the resource library directories the manifest refers into.
type Roots struct {
	Avatar   string
	Painting string
	Live2D   string
	Spine    string
}

type Options struct {
	Roots        Roots
	SpecialCodes map[string]string
	DefaultLabel string
	ModLabel     string
	Workers      int
	Logger       *zap.Logger
}

// Report lists what a resolve run produced and every unit it skipped.
type Report struct {
	Characters int
	Skins      int
	Skipped    []error
}

type Resolver struct {
	roots        Roots
	special      map[string]string
	defaultLabel string
	modLabel     string
	workers      int
	logger       *zap.Logger
}

func New(opts Options) *Resolver {
	special := make(map[string]string, len(opts.SpecialCodes))
	for code, disk := range opts.SpecialCodes {
		special[strings.ToUpper(code)] = disk
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		roots:        opts.Roots,
		special:      special,
		defaultLabel: opts.DefaultLabel,
		modLabel:     opts.ModLabel,
		workers:      stage.Workers(opts.Workers),
		logger:       logger,
	}
}

// DiskCode maps a code to its folder name in the resource library.
func (r *Resolver) DiskCode(code string) string {
	if disk, ok := r.special[strings.ToUpper(code)]; ok {
		return disk
	}
	return strings.ToLower(code)
}

// Key is the manifest key of a gun code.
func (r *Resolver) Key(code string) string {
	if disk, ok := r.special[strings.ToUpper(code)]; ok {
		return strings.ToUpper(disk)
	}
	return strings.ToUpper(code)
}

type resolved struct {
	key       string
	character *manifest.Character
	errs      []error
}

// Resolve builds the manifest. Characters resolve concurrently but are
// inserted in gun table order.
func (r *Resolver) Resolve(ctx context.Context, guns []tables.Gun, skins map[string]tables.Skin) (*manifest.Manifest, *Report, error) {
	folders, err := fsutil.SubDirs(r.roots.Avatar)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", r.roots.Avatar, err)
	}

	results := make([]*resolved, len(guns))
	p := pool.New().WithMaxGoroutines(r.workers)
	for idx, gun := range guns {
		idx, gun := idx, gun
		if gun.Code == "" {
			continue
		}
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			results[idx] = r.character(gun, skins, folders)
		})
	}
	p.Wait()

	m := manifest.New()
	report := &Report{}
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, err := range res.errs {
			stage.Skip(r.logger, unitOf(err), err)
		}
		report.Skipped = append(report.Skipped, res.errs...)
		if res.character == nil {
			continue
		}
		m.Set(res.key, res.character)
	}
	for _, c := range m.Characters() {
		report.Skins += len(c.Skins)
	}
	report.Characters = m.Len()

	if err := ctx.Err(); err != nil {
		return m, report, err
	}
	return m, report, nil
}

func (r *Resolver) character(gun tables.Gun, skins map[string]tables.Skin, folders []string) *resolved {
	res := &resolved{key: r.Key(gun.Code)}

	avatars, err := r.avatars(gun.Code)
	if err != nil {
		res.errs = append(res.errs, err)
		return res
	}
	defaultSkin := manifest.Skin{
		Code:   gun.Code,
		Name:   r.defaultLabel,
		Avatar: avatars,
		Class:  defaultSkinClass,
	}
	if err := r.assets(gun.Code, &defaultSkin); err != nil {
		res.errs = append(res.errs, err)
		return res
	}

	c := &manifest.Character{
		Code:       gun.Code,
		Name:       gun.Name,
		Avatar:     avatars,
		Rank:       gun.Rank,
		Type:       gun.Type,
		LaunchTime: gun.LaunchTime,
		Skins:      []manifest.Skin{defaultSkin},
	}

	for _, folder := range MatchSkinFolders(res.key, folders) {
		skin, err := r.skin(res.key, folder, skins)
		if err != nil {
			res.errs = append(res.errs, err)
			continue
		}
		c.Skins = append(c.Skins, *skin)
	}

	res.character = c
	return res
}

// MatchSkinFolders returns the folders that hold a skin of the character
// with the given key: names starting with the key followed by "_" or
// "mod", compared case-insensitively.
func MatchSkinFolders(key string, folders []string) []string {
	re := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(key) + `(_|mod)`)
	var matched []string
	for _, folder := range folders {
		if re.MatchString(folder) {
			matched = append(matched, folder)
		}
	}
	return matched
}

// SkinSuffix is the skin table key of a skin folder.
func SkinSuffix(key, folder string) string {
	return strings.Trim(folder[len(key):], "_")
}

func (r *Resolver) skin(key, folder string, skins map[string]tables.Skin) (*manifest.Skin, error) {
	suffix := SkinSuffix(key, folder)
	record, found := skins[suffix]
	isMod := strings.EqualFold(suffix, modSuffix)

	name := record.Name
	switch {
	case isMod:
		name = r.modLabel
	case !found || name == "":
		name = upperFirst(folder)
	}

	class := unknownClass
	switch {
	case record.Class != nil:
		class = *record.Class
	case isMod:
		class = modClass
	}

	avatars, err := r.avatars(folder)
	if err != nil {
		return nil, err
	}
	skin := &manifest.Skin{
		Code:   folder,
		Name:   name,
		Avatar: avatars,
		Class:  class,
		Dialog: record.Dialog,
		Note:   record.Note,
	}
	if err := r.assets(folder, skin); err != nil {
		return nil, err
	}
	return skin, nil
}

// assets fills in paintings, live2d and spine references of a skin.
func (r *Resolver) assets(code string, skin *manifest.Skin) error {
	image, err := r.paintings(code)
	if err != nil {
		return err
	}
	skin.Image = image
	if l := r.live2D(code); !l.Empty() {
		skin.Live2D = l
	}
	if s := r.spine(code); !s.Empty() {
		skin.Spine = s
	}
	return nil
}

func (r *Resolver) avatars(code string) (manifest.Pair, error) {
	disk := r.DiskCode(code)
	for _, name := range []string{avatar.NormalFile, avatar.BrokenFile} {
		full := filepath.Join(r.roots.Avatar, disk, name)
		if !fsutil.IsFile(full) {
			return manifest.Pair{}, apperr.MissingAsset(code, full, strings.TrimSuffix(name, ".png")+" avatar not found")
		}
	}
	return manifest.Pair{
		Normal:  path.Join(disk, avatar.NormalFile),
		Destroy: path.Join(disk, avatar.BrokenFile),
	}, nil
}

func (r *Resolver) paintings(code string) (manifest.Pair, error) {
	disk := r.DiskCode(code)
	normal := "pic_" + disk + "_HD.png"
	if full := filepath.Join(r.roots.Painting, disk, normal); !fsutil.IsFile(full) {
		return manifest.Pair{}, apperr.MissingAsset(code, full, "normal painting not found")
	}
	destroy := "pic_" + disk + "_D_HD.png"
	if !fsutil.IsFile(filepath.Join(r.roots.Painting, disk, destroy)) {
		destroy = normal
	}
	return manifest.Pair{
		Normal:  path.Join(disk, normal),
		Destroy: path.Join(disk, destroy),
	}, nil
}

func (r *Resolver) live2D(code string) *manifest.Live2D {
	disk := r.DiskCode(code)
	dir := filepath.Join(r.roots.Live2D, disk)
	l := &manifest.Live2D{}
	if fsutil.IsFile(live2d.DescriptorPath(dir, "normal")) {
		l.Normal = path.Join(disk, "normal", "normal.model3.json")
	}
	if fsutil.IsFile(live2d.DescriptorPath(dir, "destroy")) {
		l.Destroy = path.Join(disk, "destroy", "destroy.model3.json")
	}
	return l
}

func (r *Resolver) spine(code string) *manifest.Spine {
	disk := r.DiskCode(code)
	dir := filepath.Join(r.roots.Spine, disk)
	exists := func(name string) bool { return fsutil.IsFile(filepath.Join(dir, name)) }

	s := &manifest.Spine{}
	skel, atlas := disk+".skel", disk+".atlas"
	if exists(skel) && exists(atlas) {
		s.Normal = &manifest.SpineFiles{Skel: path.Join(disk, skel), Atlas: path.Join(disk, atlas)}
	}

	restSkel, restAtlas := disk+"_rest.skel", disk+"_rest.atlas"
	if !exists(restSkel) {
		restSkel = skel
	}
	if !exists(restAtlas) {
		restAtlas = atlas
	}
	if exists(restSkel) && exists(restAtlas) {
		s.Rest = &manifest.SpineFiles{Skel: path.Join(disk, restSkel), Atlas: path.Join(disk, restAtlas)}
	}
	return s
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func unitOf(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Unit
	}
	return ""
}
