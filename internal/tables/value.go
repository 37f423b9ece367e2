package tables

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"
)

// Map is a decoded table mapping that keeps its key order.
type Map struct {
	Keys   []string
	Values map[string]any
}

func newMap() *Map {
	return &Map{Values: map[string]any{}}
}

func (m *Map) set(key string, value any) {
	if _, ok := m.Values[key]; !ok {
		m.Keys = append(m.Keys, key)
	}
	m.Values[key] = value
}

func (m *Map) Get(key string) (any, bool) {
	v, ok := m.Values[key]
	return v, ok
}

// fromYAML converts a yaml node tree into Map, []any and scalar values.
func fromYAML(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return fromYAML(node.Content[0])
	case yaml.AliasNode:
		return fromYAML(node.Alias)
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := fromYAML(child)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.MappingNode:
		m := newMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			v, err := fromYAML(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.set(key, v)
		}
		return m, nil
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node", node.Line)
	}
}

// fromLua converts a Lua value. Tables whose keys are exactly 1..n become
// slices; other tables become maps with numeric keys first, in numeric
// order, then string keys in lexical order.
func fromLua(value lua.LValue) (any, error) {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LString:
		return string(v), nil
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case *lua.LTable:
		return fromLuaTable(v)
	default:
		return nil, fmt.Errorf("unsupported lua value of type %s", value.Type())
	}
}

func fromLuaTable(t *lua.LTable) (any, error) {
	type entry struct {
		num   float64
		isNum bool
		key   string
		value lua.LValue
	}
	var entries []entry
	var convErr error
	t.ForEach(func(k, v lua.LValue) {
		switch key := k.(type) {
		case lua.LNumber:
			entries = append(entries, entry{num: float64(key), isNum: true, key: formatNumber(float64(key)), value: v})
		case lua.LString:
			entries = append(entries, entry{key: string(key), value: v})
		default:
			convErr = fmt.Errorf("unsupported lua table key of type %s", k.Type())
		}
	})
	if convErr != nil {
		return nil, convErr
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.isNum != b.isNum {
			return a.isNum
		}
		if a.isNum {
			return a.num < b.num
		}
		return a.key < b.key
	})

	sequence := len(entries) > 0
	for i, e := range entries {
		if !e.isNum || e.num != float64(i+1) {
			sequence = false
			break
		}
	}

	if sequence {
		items := make([]any, 0, len(entries))
		for _, e := range entries {
			v, err := fromLua(e.value)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	}

	m := newMap()
	for _, e := range entries {
		v, err := fromLua(e.value)
		if err != nil {
			return nil, err
		}
		m.set(e.key, v)
	}
	return m, nil
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
