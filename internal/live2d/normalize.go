package live2d

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gfres/internal/apperr"
	"gfres/internal/fsutil"
)

const (
	idlePrefix    = "daiji_idle"
	idleGroup     = "Idle"
	motionSuffix  = ".motion3.json"
	defaultFade   = json.Number("0.5")
	ungroupedName = ""
)

// NormalizeModel moves every clip of the unnamed motion group into a group
// derived from its file name and fills in missing fade times. The returned
// bool reports whether the descriptor changed; when it did not, data is
// returned as is.
func NormalizeModel(data []byte) ([]byte, bool, error) {
	root, err := decodeObject(data)
	if err != nil {
		return nil, false, err
	}

	refs, ok := root["FileReferences"].(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("FileReferences is not an object")
	}
	rawMotions, ok := refs["Motions"]
	if !ok {
		return data, false, nil
	}
	motions, ok := rawMotions.(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("FileReferences.Motions is not an object")
	}
	rawClips, ok := motions[ungroupedName]
	if !ok {
		return data, false, nil
	}
	clips, ok := rawClips.([]any)
	if !ok && rawClips != nil {
		return nil, false, fmt.Errorf("unnamed motion group is not an array")
	}

	for i, rawClip := range clips {
		clip, ok := rawClip.(map[string]any)
		if !ok {
			return nil, false, fmt.Errorf("motion %d is not an object", i)
		}
		file, ok := clip["File"].(string)
		if !ok {
			return nil, false, fmt.Errorf("motion %d has no File", i)
		}

		group := MotionGroup(file)
		if group == ungroupedName {
			return nil, false, fmt.Errorf("motion %d file %q has no group name", i, file)
		}
		if _, ok := clip["FadeInTime"]; !ok {
			clip["FadeInTime"] = defaultFade
		}
		if _, ok := clip["FadeOutTime"]; !ok {
			clip["FadeOutTime"] = defaultFade
		}

		var dest []any
		if existing, ok := motions[group]; ok && existing != nil {
			dest, ok = existing.([]any)
			if !ok {
				return nil, false, fmt.Errorf("motion group %q is not an array", group)
			}
		}
		motions[group] = append(dest, clip)
	}
	delete(motions, ungroupedName)

	out, err := fsutil.MarshalJSON(root)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// MotionGroup derives the group name for a motion clip path such as
// "motions/attack_02.motion3.json".
func MotionGroup(file string) string {
	name := file
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	key := strings.TrimSuffix(name, motionSuffix)
	if i := strings.LastIndex(name, "_"); i > 0 {
		key = name[:i]
	}

	if strings.HasPrefix(strings.ToLower(key), idlePrefix) {
		return idleGroup
	}
	return upperFirst(key)
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("descriptor is not an object")
	}
	return root, nil
}

// NormalizeFile normalizes the descriptor at path in place. The file is
// only rewritten when its content changes.
func NormalizeFile(unit, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, apperr.MissingAsset(unit, path, "model descriptor not found")
	}
	if err != nil {
		return false, apperr.MalformedDescriptor(unit, path, err)
	}

	out, changed, err := NormalizeModel(data)
	if err != nil {
		return false, apperr.MalformedDescriptor(unit, path, err)
	}
	if !changed {
		return false, nil
	}
	if err := fsutil.WriteFileAtomic(path, out); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
