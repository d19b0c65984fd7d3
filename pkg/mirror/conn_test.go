package mirror

import "testing"

func TestDefaultNamespaces(t *testing.T) {
	cases := []struct {
		name      string
		available []string
		want      []string
	}{
		{"prefers default", []string{"kube-system", "default", "app"}, []string{"default"}},
		{"falls back to first", []string{"beta", "alpha"}, []string{"beta"}},
		{"empty cluster", nil, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := defaultNamespaces(tc.available)
			if got == nil {
				t.Fatalf("expected a non-nil scope")
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestConnStateString(t *testing.T) {
	cases := map[ConnState]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateFailed:       "failed",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
