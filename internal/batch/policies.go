package batch

import (
	"fmt"

	"github.com/quantaleap/meshbench/internal/config"
	"github.com/quantaleap/meshbench/internal/inputs"
)

// Select applies an algorithm's input-selection policy to a canonically
// ordered input list. It returns the selected inputs and an empty
// reason, or nil and a skip reason naming the violated constraint.
func Select(p config.PolicyConfig, ordered []string) ([]string, string) {
	switch p.Kind {
	case "single":
		if len(ordered) == 0 {
			return nil, insufficient(1)
		}
		for _, ref := range ordered {
			if inputs.TagOf(ref) == "A" {
				return []string{ref}, ""
			}
		}
		return ordered[:1], ""

	case "first_k":
		min := p.MinRequired
		if min == 0 {
			min = p.K
		}
		if len(ordered) < min {
			return nil, insufficient(min)
		}
		return firstN(ordered, p.K), ""

	case "min_all":
		if len(ordered) < p.NMin {
			return nil, insufficient(p.NMin)
		}
		return ordered, ""

	case "min_max":
		if len(ordered) < p.NMin {
			return nil, insufficient(p.NMin)
		}
		return firstN(ordered, p.NMax), ""
	}

	return nil, "unknown_algo_policy:" + p.Kind
}

func insufficient(min int) string {
	return fmt.Sprintf("insufficient_images(min=%d)", min)
}

func firstN(inputs []string, n int) []string {
	if len(inputs) > n {
		return inputs[:n]
	}
	return inputs
}
