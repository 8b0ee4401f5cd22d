package sde

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		sys  SystemInfo
		want SecurityType
	}{
		{"highsec", SystemInfo{SolarSystemID: 30000142, SecurityStatus: 0.9}, SecurityHighsec},
		{"highsec boundary", SystemInfo{SolarSystemID: 1, SecurityStatus: 0.45}, SecurityHighsec},
		{"lowsec", SystemInfo{SolarSystemID: 2, SecurityStatus: 0.4}, SecurityLowsec},
		{"lowsec boundary", SystemInfo{SolarSystemID: 3, SecurityStatus: 0.000001}, SecurityLowsec},
		{"nullsec", SystemInfo{SolarSystemID: 30000001, SecurityStatus: -0.2}, SecurityNullsec},
		{"nullsec zero", SystemInfo{SolarSystemID: 4, SecurityStatus: 0}, SecurityNullsec},
		{"wormhole", SystemInfo{SolarSystemID: 31000005, SecurityStatus: -1.0}, SecurityWormhole},
		{"pochven", SystemInfo{SolarSystemID: 30000592, SecurityStatus: -0.1}, SecurityPochven},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.sys); got != tc.want {
				t.Errorf("Classify(%+v) = %s, want %s", tc.sys, got, tc.want)
			}
		})
	}
}

type staticResolver map[int64]SystemInfo

func (s staticResolver) ResolveSystem(id int64) (SystemInfo, bool) {
	info, ok := s[id]
	return info, ok
}

func TestClassifierClassifySystem(t *testing.T) {
	c := NewClassifier().WithResolver(staticResolver{
		30000142: {SolarSystemID: 30000142, SecurityStatus: 0.9},
	})

	if got := c.ClassifySystem(30000142); got != SecurityHighsec {
		t.Errorf("expected highsec, got %s", got)
	}
	if got := c.ClassifySystem(999); got != SecurityNullsec {
		t.Errorf("unresolved system should default to nullsec, got %s", got)
	}
}

func TestShipCategory(t *testing.T) {
	if got := ShipCategory(541); got != "interdictor" {
		t.Errorf("expected interdictor, got %q", got)
	}
	if got := ShipCategory(0); got != "" {
		t.Errorf("expected empty category for untracked group, got %q", got)
	}
}
