// Package tables loads the character and skin script tables. Tables may be
// Lua scripts, JSON or YAML documents.
package tables

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported table format")
	ErrInvalidTable      = errors.New("invalid table")
	ErrInvalidField      = errors.New("invalid field")
)

// luaDataGlobal is read when a Lua chunk returns nothing.
const luaDataGlobal = "data"

type Gun struct {
	Code       string
	Name       string
	Rank       *int
	Type       *int
	LaunchTime string
}

type Skin struct {
	Name   string
	Class  *int
	Dialog string
	Note   string
}

// FieldError reports an integer field whose value could not be parsed. The
// field is left unset on the decoded record.
type FieldError struct {
	Path   string
	Record string
	Field  string
	Value  any
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s %v is not an integer", e.Path, e.Record, e.Field, e.Value)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidField
}

// Load decodes the table at path, choosing the decoder by file extension.
// Mappings decode to *Map, sequences to []any.
func Load(path string) (any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua":
		return loadLua(path)
	case ".json", ".yaml", ".yml":
		return loadYAML(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func loadLua(path string) (any, error) {
	L := lua.NewState()
	defer L.Close()

	top := L.GetTop()
	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("running %s: %w", path, err)
	}

	value := lua.LValue(lua.LNil)
	if L.GetTop() > top {
		value = L.Get(top + 1)
	}
	if value == lua.LNil {
		value = L.GetGlobal(luaDataGlobal)
	}
	if value == lua.LNil {
		return nil, fmt.Errorf("%w: %s returns no table and sets no %q global", ErrInvalidTable, path, luaDataGlobal)
	}
	return fromLua(value)
}

func loadYAML(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return fromYAML(&node)
}

// LoadGuns reads the gun table: a sequence of records, or a mapping whose
// values are records. Table order is kept. Unparseable integer fields are
// returned as *FieldError problems and do not fail the load.
func LoadGuns(path string) ([]Gun, []error, error) {
	raw, err := Load(path)
	if err != nil {
		return nil, nil, err
	}

	var records []any
	switch v := raw.(type) {
	case []any:
		records = v
	case *Map:
		for _, key := range v.Keys {
			records = append(records, v.Values[key])
		}
	default:
		return nil, nil, fmt.Errorf("%w: %s is not a list of guns", ErrInvalidTable, path)
	}

	var problems []error
	guns := make([]Gun, 0, len(records))
	for i, record := range records {
		m, ok := record.(*Map)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s entry %d is not a record", ErrInvalidTable, path, i)
		}
		name := fmt.Sprintf("entry %d", i)
		if code := stringField(m, "code"); code != "" {
			name = "gun " + code
		}
		guns = append(guns, Gun{
			Code:       stringField(m, "code"),
			Name:       stringField(m, "name"),
			Rank:       checkedInt(m, "rank", path, name, &problems),
			Type:       checkedInt(m, "type", path, name, &problems),
			LaunchTime: stringField(m, "launch_time"),
		})
	}
	return guns, problems, nil
}

// LoadSkins reads the skin table keyed by skin suffix. Integer keys become
// their decimal string. A sequence of records is keyed by each record's id.
// Unparseable integer fields are returned as problems, as in LoadGuns.
func LoadSkins(path string) (map[string]Skin, []error, error) {
	raw, err := Load(path)
	if err != nil {
		return nil, nil, err
	}

	var problems []error
	skins := map[string]Skin{}
	add := func(key string, record any) error {
		m, ok := record.(*Map)
		if !ok {
			return fmt.Errorf("%w: %s skin %q is not a record", ErrInvalidTable, path, key)
		}
		skins[key] = Skin{
			Name:   stringField(m, "name"),
			Class:  checkedInt(m, "class", path, "skin "+key, &problems),
			Dialog: stringField(m, "dialog"),
			Note:   stringField(m, "note"),
		}
		return nil
	}

	switch v := raw.(type) {
	case *Map:
		for _, key := range v.Keys {
			if err := add(key, v.Values[key]); err != nil {
				return nil, nil, err
			}
		}
	case []any:
		for i, record := range v {
			m, ok := record.(*Map)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %s entry %d is not a record", ErrInvalidTable, path, i)
			}
			key := stringField(m, "id")
			if key == "" {
				return nil, nil, fmt.Errorf("%w: %s entry %d has no id", ErrInvalidTable, path, i)
			}
			if err := add(key, m); err != nil {
				return nil, nil, err
			}
		}
	case nil:
	default:
		return nil, nil, fmt.Errorf("%w: %s is not a skin mapping", ErrInvalidTable, path)
	}
	return skins, problems, nil
}

func stringField(m *Map, key string) string {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return formatNumber(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(s)
	}
}

func checkedInt(m *Map, key, path, record string, problems *[]error) *int {
	n, ok := intField(m, key)
	if !ok {
		v, _ := m.Get(key)
		*problems = append(*problems, &FieldError{Path: path, Record: record, Field: key, Value: v})
	}
	return n
}

// intField reads an integer field. An absent or null field is nil and ok;
// a present value that is not an integer is nil and not ok.
func intField(m *Map, key string) (*int, bool) {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return nil, true
	}
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, true
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return nil, false
		}
		n = parsed
	default:
		return nil, false
	}
	return &n, true
}
