package batch

import (
	"reflect"
	"testing"

	"github.com/quantaleap/meshbench/internal/config"
)

func TestSelect(t *testing.T) {
	four := []string{"a_A.png", "b_B.png", "c.png", "d.png"}

	cases := []struct {
		name       string
		policy     config.PolicyConfig
		inputs     []string
		want       []string
		wantReason string
	}{
		{
			name:   "single prefers tag A",
			policy: config.PolicyConfig{Kind: "single"},
			inputs: []string{"c.png", "a_A.png"},
			want:   []string{"a_A.png"},
		},
		{
			name:   "single falls back to first",
			policy: config.PolicyConfig{Kind: "single"},
			inputs: []string{"c.png", "d.png"},
			want:   []string{"c.png"},
		},
		{
			name:       "single with no inputs",
			policy:     config.PolicyConfig{Kind: "single"},
			inputs:     nil,
			wantReason: "insufficient_images(min=1)",
		},
		{
			name:   "first_k takes k",
			policy: config.PolicyConfig{Kind: "first_k", K: 2, MinRequired: 2},
			inputs: four,
			want:   []string{"a_A.png", "b_B.png"},
		},
		{
			name:       "first_k under min",
			policy:     config.PolicyConfig{Kind: "first_k", K: 3, MinRequired: 3},
			inputs:     []string{"a.png", "b.png"},
			wantReason: "insufficient_images(min=3)",
		},
		{
			name:   "min_all takes all",
			policy: config.PolicyConfig{Kind: "min_all", NMin: 2},
			inputs: four,
			want:   four,
		},
		{
			name:       "min_all under min",
			policy:     config.PolicyConfig{Kind: "min_all", NMin: 2},
			inputs:     []string{"a.png"},
			wantReason: "insufficient_images(min=2)",
		},
		{
			name:   "min_max truncates to max",
			policy: config.PolicyConfig{Kind: "min_max", NMin: 2, NMax: 3},
			inputs: four,
			want:   four[:3],
		},
		{
			name:       "unknown policy kind",
			policy:     config.PolicyConfig{Kind: "newest"},
			inputs:     four,
			wantReason: "unknown_algo_policy:newest",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, reason := Select(c.policy, c.inputs)
			if reason != c.wantReason {
				t.Fatalf("reason = %q, want %q", reason, c.wantReason)
			}
			if c.wantReason == "" && !reflect.DeepEqual(got, c.want) {
				t.Errorf("selected = %v, want %v", got, c.want)
			}
		})
	}
}

func TestFilters(t *testing.T) {
	item := itemFor("100001", "rose-gold")

	if ok := (Filters{Include: []string{"1000"}}).Match(item); !ok {
		t.Error("substring include should match")
	}
	if ok := (Filters{Include: []string{"10000?"}}).Match(item); !ok {
		t.Error("glob include should match")
	}
	if ok := (Filters{Exclude: []string{"rose*"}}).Match(item); ok {
		t.Error("glob exclude should drop the item")
	}
	if ok := (Filters{Include: []string{"200002"}}).Match(item); ok {
		t.Error("non-matching include should drop the item")
	}

	if err := (Filters{Exclude: []string{"[bad"}}).Validate(); err == nil {
		t.Error("malformed glob pattern should fail validation")
	}
	if err := (Filters{Include: []string{"plain"}}).Validate(); err != nil {
		t.Errorf("plain substring pattern should validate, got %v", err)
	}
}
