package models

// Taggable is anything that accepts a key/value annotation.
type Taggable interface {
	SetTag(key, value string)
}

type Tag struct {
	Key   string `json:"key" mapstructure:"key" yaml:"key"`
	Value string `json:"value" mapstructure:"value" yaml:"value"`
}

// Tags is the simplest Taggable.
type Tags map[string]string

func (t Tags) SetTag(key, value string) {
	t[key] = value
}

func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

func (t Tags) List() []Tag {
	out := make([]Tag, 0, len(t))
	for k, v := range t {
		out = append(out, Tag{Key: k, Value: v})
	}
	return out
}
