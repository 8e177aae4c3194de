package classify

import (
	"reflect"
	"testing"
)

func TestSet_Deduplicates(t *testing.T) {
	s := NewSet("Block", "Warn", "Block", "")
	s.Add("Warn")
	s.Add("Block")

	if got := s.Values(); !reflect.DeepEqual(got, []string{"Block", "Warn"}) {
		t.Errorf("expected [Block Warn], got %v", got)
	}
	if s.Len() != 2 {
		t.Errorf("expected len 2, got %d", s.Len())
	}
}

func TestSet_IgnoresEmpty(t *testing.T) {
	s := NewSet()
	s.Add("")
	if s.Len() != 0 {
		t.Errorf("empty string must not be inserted, got %v", s.Values())
	}
}

func TestSet_Join(t *testing.T) {
	s := NewSet("PolicyBlock", "XPIA")
	if got := s.Join(";"); got != "PolicyBlock;XPIA" {
		t.Errorf("unexpected join: %q", got)
	}
	if got := NewSet().Join(";"); got != "" {
		t.Errorf("empty set join must be empty, got %q", got)
	}
}

func TestSet_ValuesIsACopy(t *testing.T) {
	s := NewSet("a", "b")
	v := s.Values()
	v[0] = "mutated"
	if s.Values()[0] != "a" {
		t.Error("Values must return a copy")
	}
}
