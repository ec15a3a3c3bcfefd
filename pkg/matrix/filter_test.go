package matrix

import (
	"reflect"
	"testing"
)

func TestApplicable(t *testing.T) {
	plan := &Plan{
		NativeTarget: "host-native",
		Combinations: []Combination{
			{Name: "no-default-features", Flags: []string{"--no-default-features"}},
			{Name: "default-features", Tags: []string{TagRequiresCross}},
			{Name: "extra", Tags: []string{"some-unknown-tag"}},
		},
	}

	tests := []struct {
		name   string
		target Target
		want   []string
	}{
		{
			name:   "native target skips cross-only combinations",
			target: "host-native",
			want:   []string{"no-default-features", "extra"},
		},
		{
			name:   "cross target keeps everything",
			target: "cross-arch",
			want:   []string{"no-default-features", "default-features", "extra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := plan.Applicable(tt.target)
			names := make([]string, 0, len(got))
			for _, comb := range got {
				names = append(names, comb.Name)
			}
			if !reflect.DeepEqual(names, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, names)
			}
		})
	}
}

func TestApplicable_Deterministic(t *testing.T) {
	plan := &Plan{
		NativeTarget: "host-native",
		Combinations: []Combination{
			{Name: "a"},
			{Name: "b", Tags: []string{TagRequiresCross}},
			{Name: "c", Tags: []string{TagRequiresCross}},
		},
	}

	first := plan.Applicable("host-native")
	second := plan.Applicable("host-native")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("filtering is not deterministic: %v vs %v", first, second)
	}
}

func TestApplicable_NoNativeTarget(t *testing.T) {
	plan := &Plan{
		Combinations: []Combination{
			{Name: "a", Tags: []string{TagRequiresCross}},
		},
	}

	// without a native target nothing is ever skipped
	got := plan.Applicable("host-native")
	if len(got) != 1 {
		t.Errorf("expected 1 combination, got %d", len(got))
	}
}
