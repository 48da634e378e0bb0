package comm

import (
	"reflect"
	"testing"

	"github.com/go-prism/prism/pkg/model"
)

func TestStateDocZeroValueIsEmpty(t *testing.T) {
	var d StateDoc
	if got := d.String(); got != "{}" {
		t.Errorf("zero doc = %q, want {}", got)
	}
	if keys := d.Keys(); len(keys) != 0 {
		t.Errorf("zero doc keys = %v, want none", keys)
	}
}

func TestParseStateDoc(t *testing.T) {
	d, err := ParseStateDoc([]byte(`{"value":"x"}`))
	if err != nil {
		t.Fatalf("ParseStateDoc: %v", err)
	}
	if got, ok := d.Get("value"); !ok || got != "x" {
		t.Errorf("Get(value) = %v, %v", got, ok)
	}

	if _, err := ParseStateDoc([]byte(`{"value":`)); err == nil {
		t.Error("truncated JSON should fail to parse")
	}

	empty, err := ParseStateDoc(nil)
	if err != nil {
		t.Fatalf("ParseStateDoc(nil): %v", err)
	}
	if empty.String() != "{}" {
		t.Errorf("nil input = %q, want {}", empty.String())
	}
}

func TestStateDocSetDoesNotMutate(t *testing.T) {
	base := NewStateDoc()
	a, err := base.Set("selected_link", true)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	b, err := a.Set("selected_link", false)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got, _ := a.Get("selected_link"); got != true {
		t.Errorf("first doc = %v, want true after deriving a second", got)
	}
	if got, _ := b.Get("selected_link"); got != false {
		t.Errorf("second doc = %v, want false", got)
	}
	if base.String() != "{}" {
		t.Errorf("base mutated to %s", base.String())
	}
}

func TestStateDocKeysSorted(t *testing.T) {
	d := NewStateDoc()
	for _, key := range []string{"zeta", "alpha", "mid"} {
		var err error
		if d, err = d.Set(key, 1); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}
	want := []string{"alpha", "mid", "zeta"}
	if got := d.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestStateDocNestedPaths(t *testing.T) {
	d, err := NewStateDoc().SetRaw("content", []byte(`{"event":"click","count":2}`))
	if err != nil {
		t.Fatalf("SetRaw: %v", err)
	}
	if got := d.GetString("content.event"); got != "click" {
		t.Errorf("content.event = %q, want click", got)
	}
	if got, _ := d.Get("content.count"); got != float64(2) {
		t.Errorf("content.count = %v (%T), want 2", got, got)
	}
	if _, ok := d.Get("content.missing"); ok {
		t.Error("absent path should report !ok")
	}
}

func TestStateDocMap(t *testing.T) {
	d, _ := ParseStateDoc([]byte(`{"value":"v","n":3}`))
	m, err := d.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if m["value"] != "v" || m["n"] != float64(3) {
		t.Errorf("Map() = %v", m)
	}
}

func TestFullStateDocCarriesRoutingKeys(t *testing.T) {
	spec := model.Spec{
		Module:        "prism-test",
		ModuleVersion: "1.0.0",
		Model:         "ToggleModel",
		View:          "ToggleView",
	}
	m, err := model.New(spec, model.Schema{
		"selected_link": {Kind: model.KindBool},
		"description":   {Kind: model.KindString, Default: "doc"},
	})
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}

	doc, err := FullStateDoc(m)
	if err != nil {
		t.Fatalf("FullStateDoc: %v", err)
	}
	for key, want := range map[string]string{
		KeyModelModule:  "prism-test",
		KeyModelVersion: "1.0.0",
		KeyModelName:    "ToggleModel",
		KeyViewModule:   "prism-test",
		KeyViewVersion:  "1.0.0",
		KeyViewName:     "ToggleView",
	} {
		if got := doc.GetString(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if got, _ := doc.Get("selected_link"); got != false {
		t.Errorf("selected_link = %v, want schema default false", got)
	}
	if got := doc.GetString("description"); got != "doc" {
		t.Errorf("description = %q, want doc", got)
	}
}

func TestIsRoutingKey(t *testing.T) {
	if !isRoutingKey("_model_name") {
		t.Error("_model_name is protocol metadata")
	}
	if isRoutingKey("selected_link") {
		t.Error("selected_link is a model attribute")
	}
}
