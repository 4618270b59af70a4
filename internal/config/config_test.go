package config

import (
	"strings"
	"testing"
	"time"
)

const fullYAML = `
workspace: /srv/meshbench
code_version: v2.1.0

worker:
  deadline_seconds: 600
  retry_delays_seconds: [5, 15]
  heartbeat_seconds: 20
  staleness_seconds: 900

algorithms:
  tripo:
    policy:
      kind: min_max
      n_min: 2
      n_max: 4
    price_usd: 0.35
  meshy:
    adapter: script
    command: "meshy-cli --out {output}"
    policy:
      kind: single
    deadline_seconds: 120

slack:
  token: xoxb-test
  channel: "#bench"

dashboard:
  addr: 0.0.0.0:9000
`

const minimalYAML = `
algorithms:
  tripo: {}
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Workspace != "/srv/meshbench" {
		t.Errorf("Workspace = %q, want /srv/meshbench", cfg.Workspace)
	}
	if cfg.CodeVersion != "v2.1.0" {
		t.Errorf("CodeVersion = %q, want v2.1.0", cfg.CodeVersion)
	}
	if cfg.Worker.DeadlineSeconds != 600 {
		t.Errorf("Worker.DeadlineSeconds = %d, want 600", cfg.Worker.DeadlineSeconds)
	}
	if len(cfg.Worker.RetryDelaysSeconds) != 2 {
		t.Errorf("len(RetryDelaysSeconds) = %d, want 2", len(cfg.Worker.RetryDelaysSeconds))
	}

	tripo := cfg.Algorithms["tripo"]
	if tripo.Policy.Kind != "min_max" || tripo.Policy.NMin != 2 || tripo.Policy.NMax != 4 {
		t.Errorf("tripo policy = %+v, want min_max 2..4", tripo.Policy)
	}
	if tripo.Adapter != "tripo" {
		t.Errorf("tripo.Adapter = %q, want default to algorithm name", tripo.Adapter)
	}
	if tripo.PriceUSD != 0.35 {
		t.Errorf("tripo.PriceUSD = %v, want 0.35", tripo.PriceUSD)
	}

	meshy := cfg.Algorithms["meshy"]
	if meshy.Adapter != "script" {
		t.Errorf("meshy.Adapter = %q, want script", meshy.Adapter)
	}
	if got := cfg.Deadline("meshy"); got != 120*time.Second {
		t.Errorf("Deadline(meshy) = %v, want 120s", got)
	}
	if got := cfg.Deadline("tripo"); got != 600*time.Second {
		t.Errorf("Deadline(tripo) = %v, want worker default 600s", got)
	}

	if cfg.Slack.Channel != "#bench" {
		t.Errorf("Slack.Channel = %q, want #bench", cfg.Slack.Channel)
	}
	if cfg.Dashboard.Addr != "0.0.0.0:9000" {
		t.Errorf("Dashboard.Addr = %q, want 0.0.0.0:9000", cfg.Dashboard.Addr)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Worker.DeadlineSeconds != 480 {
		t.Errorf("default deadline = %d, want 480", cfg.Worker.DeadlineSeconds)
	}
	want := []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}
	got := cfg.RetryDelays()
	if len(got) != len(want) {
		t.Fatalf("RetryDelays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RetryDelays[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if cfg.Worker.StalenessSeconds != 600 {
		t.Errorf("default staleness = %d, want 600", cfg.Worker.StalenessSeconds)
	}
	if cfg.Algorithms["tripo"].Policy.Kind != "single" {
		t.Errorf("default policy kind = %q, want single", cfg.Algorithms["tripo"].Policy.Kind)
	}
}

func TestParse_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no algorithms", "workspace: /tmp\n", "at least one algorithm"},
		{"bad policy kind", "algorithms:\n  x:\n    policy:\n      kind: newest\n", "unknown"},
		{"first_k without k", "algorithms:\n  x:\n    policy:\n      kind: first_k\n", "k must be positive"},
		{"min_max inverted", "algorithms:\n  x:\n    policy:\n      kind: min_max\n      n_min: 3\n      n_max: 2\n", "n_min <= n_max"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("error %q does not mention %q", err, c.want)
			}
		})
	}
}
