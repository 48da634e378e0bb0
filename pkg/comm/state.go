package comm

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/go-prism/prism/pkg/model"
)

// StateDoc is an immutable JSON state document. Reads resolve gjson paths,
// writes return a new document, so a document handed to a send is never
// mutated behind the transport's back.
type StateDoc struct {
	raw []byte
}

// NewStateDoc returns an empty document.
func NewStateDoc() StateDoc {
	return StateDoc{raw: []byte("{}")}
}

// ParseStateDoc validates raw as a JSON document. Empty input yields an
// empty document.
func ParseStateDoc(raw []byte) (StateDoc, error) {
	if len(raw) == 0 {
		return NewStateDoc(), nil
	}
	if !gjson.ValidBytes(raw) {
		return StateDoc{}, fmt.Errorf("state document is not valid JSON")
	}
	return StateDoc{raw: raw}, nil
}

// Bytes returns the encoded document. The zero StateDoc encodes as "{}".
func (d StateDoc) Bytes() []byte {
	if d.raw == nil {
		return []byte("{}")
	}
	return d.raw
}

func (d StateDoc) String() string { return string(d.Bytes()) }

// Get resolves path within the document. The second return is false when
// the path is absent. Numbers decode as float64, per JSON.
func (d StateDoc) Get(path string) (any, bool) {
	res := gjson.GetBytes(d.Bytes(), path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

// GetString resolves path as a string, empty when absent.
func (d StateDoc) GetString(path string) string {
	return gjson.GetBytes(d.Bytes(), path).String()
}

// Keys returns the document's top-level attribute names in sorted order.
func (d StateDoc) Keys() []string {
	var keys []string
	gjson.ParseBytes(d.Bytes()).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	sort.Strings(keys)
	return keys
}

// Set returns a copy of the document with path set to value.
func (d StateDoc) Set(path string, value any) (StateDoc, error) {
	raw, err := sjson.SetBytes(d.Bytes(), path, value)
	if err != nil {
		return d, err
	}
	return StateDoc{raw: raw}, nil
}

// SetRaw splices pre-encoded JSON into the document at path.
func (d StateDoc) SetRaw(path string, raw []byte) (StateDoc, error) {
	out, err := sjson.SetRawBytes(d.Bytes(), path, raw)
	if err != nil {
		return d, err
	}
	return StateDoc{raw: out}, nil
}

// Map decodes the document into a generic map.
func (d StateDoc) Map() (map[string]any, error) {
	out := make(map[string]any)
	if err := json.Unmarshal(d.Bytes(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// isRoutingKey reports whether key is protocol metadata rather than a
// model attribute.
func isRoutingKey(key string) bool {
	return strings.HasPrefix(key, "_")
}

// FullStateDoc snapshots a model into a state document, routing keys
// included. It is what goes out on comm opens and state requests.
func FullStateDoc(m *model.Model) (StateDoc, error) {
	spec := m.Spec()
	doc := NewStateDoc()
	var err error
	routing := []struct{ key, value string }{
		{KeyModelModule, spec.Module},
		{KeyModelVersion, spec.ModuleVersion},
		{KeyModelName, spec.Model},
		{KeyViewModule, spec.Module},
		{KeyViewVersion, spec.ModuleVersion},
		{KeyViewName, spec.View},
	}
	for _, r := range routing {
		if doc, err = doc.Set(r.key, r.value); err != nil {
			return StateDoc{}, err
		}
	}
	for _, attr := range m.Keys() {
		value, getErr := m.Get(attr)
		if getErr != nil {
			return StateDoc{}, getErr
		}
		if doc, err = doc.Set(attr, value); err != nil {
			return StateDoc{}, err
		}
	}
	return doc, nil
}

// partialStateDoc wraps a single committed attribute.
func partialStateDoc(attr string, value any) (StateDoc, error) {
	return NewStateDoc().Set(attr, value)
}
