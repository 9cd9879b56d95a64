package markdown

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatter represents the raw YAML Front Matter (without the --- delimiters)
type FrontMatter string

func (f FrontMatter) IsZero() bool {
	return f == ""
}

func (f FrontMatter) AsMap() (map[string]any, error) {
	var attributes = make(map[string]any)
	if err := yaml.Unmarshal([]byte(f), attributes); err != nil {
		return nil, err
	}
	return attributes, nil
}

// GetString returns a top-level scalar attribute as a string.
func (f FrontMatter) GetString(name string) string {
	attributes, err := f.AsMap()
	if err != nil {
		return ""
	}
	if value, ok := attributes[name]; ok {
		switch v := value.(type) {
		case string:
			return v
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}

// GetStrings returns a top-level attribute as a list of strings.
// Scalar values are wrapped in a single-element list (common in Obsidian vaults
// where "tags: value" and "tags: [value]" coexist).
func (f FrontMatter) GetStrings(name string) []string {
	attributes, err := f.AsMap()
	if err != nil {
		return nil
	}
	value, ok := attributes[name]
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case string:
		// Support space-separated values too ("tags: a b")
		return strings.Fields(v)
	case []any:
		var results []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				results = append(results, s)
			}
		}
		return results
	}
	return nil
}

// GetInt returns a top-level attribute as an integer.
func (f FrontMatter) GetInt(name string) (int64, bool) {
	attributes, err := f.AsMap()
	if err != nil {
		return 0, false
	}
	value, ok := attributes[name]
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
