package peering

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/psaab/frrlab/pkg/topology"
)

func mustParse(t *testing.T, input string) *topology.Topology {
	t.Helper()
	topo, err := topology.ParseString(input)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return topo
}

func statements(res *Result) []string {
	var out []string
	for _, n := range res.Neighbors {
		out = append(out, n.Statement())
	}
	return out
}

const interAS = `R1:bgp:a.1
as100
R2:bgp:a.2
as200
lan
a:10.0.0.0/24
`

func TestResolveInterAS(t *testing.T) {
	res := Resolve(mustParse(t, interAS), Options{})

	r1 := res["R1"]
	if r1 == nil {
		t.Fatal("R1 not resolved")
	}
	if r1.AS != 100 {
		t.Errorf("R1 AS = %d, want 100", r1.AS)
	}
	if diff := cmp.Diff([]string{"neighbor 10.0.0.2 remote-as 200"}, statements(r1)); diff != "" {
		t.Errorf("R1 neighbors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.0.0.0/24"}, r1.Advertised); diff != "" {
		t.Errorf("R1 advertised (-want +got):\n%s", diff)
	}

	r2 := res["R2"]
	if diff := cmp.Diff([]string{"neighbor 10.0.0.1 remote-as 100"}, statements(r2)); diff != "" {
		t.Errorf("R2 neighbors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.0.0.0/24"}, r2.Advertised); diff != "" {
		t.Errorf("R2 advertised (-want +got):\n%s", diff)
	}
	if res.Sessions() != 1 {
		t.Errorf("Sessions = %d, want 1", res.Sessions())
	}
}

const intraAS = `R1:bgp:ab.1.1
R3:bgp:b.3
as100
172.16.0.0/16
R2:bgp:a.2
as200
lan
a:10.0.0.0/24
b:10.0.1.0/24
`

func TestResolveIntraASSuppression(t *testing.T) {
	res := Resolve(mustParse(t, intraAS), Options{})

	r1 := res["R1"]
	want := []string{
		"neighbor 10.0.0.2 remote-as 200",
		"neighbor 10.0.1.3 remote-as 100",
	}
	if diff := cmp.Diff(want, statements(r1)); diff != "" {
		t.Errorf("R1 neighbors (-want +got):\n%s", diff)
	}
	// LAN b is shared only with an iBGP peer, so only the manual network and
	// the eBGP LAN are announced.
	if diff := cmp.Diff([]string{"10.0.0.0/24", "172.16.0.0/16"}, r1.Advertised); diff != "" {
		t.Errorf("R1 advertised (-want +got):\n%s", diff)
	}

	r3 := res["R3"]
	if diff := cmp.Diff([]string{"neighbor 10.0.1.1 remote-as 100"}, statements(r3)); diff != "" {
		t.Errorf("R3 neighbors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"172.16.0.0/16"}, r3.Advertised); diff != "" {
		t.Errorf("R3 advertised (-want +got):\n%s", diff)
	}
}

func TestResolveAllSharedVariant(t *testing.T) {
	res := Resolve(mustParse(t, intraAS), Options{Advertise: AdvertiseAllShared})

	want := []string{"10.0.0.0/24", "10.0.1.0/24", "172.16.0.0/16"}
	if diff := cmp.Diff(want, res["R1"].Advertised); diff != "" {
		t.Errorf("R1 advertised (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.0.1.0/24", "172.16.0.0/16"}, res["R3"].Advertised); diff != "" {
		t.Errorf("R3 advertised (-want +got):\n%s", diff)
	}
}

func TestResolveNonBGPIsolation(t *testing.T) {
	input := `R1:ospf+bgp:a.1
R2:ospf:a.2
as100
R3:bgp:a.3
as200
lan
a:10.0.0.0/24
`
	res := Resolve(mustParse(t, input), Options{})
	if _, ok := res["R2"]; ok {
		t.Error("non-BGP machine must not be resolved")
	}
	for _, name := range []string{"R1", "R3"} {
		for _, n := range res[name].Neighbors {
			if n.Peer == "R2" {
				t.Errorf("%s peers with non-BGP machine R2", name)
			}
		}
	}
}

func TestResolveASLessBlock(t *testing.T) {
	input := `R1:bgp:a.1
rip
10.0.0.0/24
R2:bgp:a.2
as200
lan
a:10.0.0.0/24
`
	res := Resolve(mustParse(t, input), Options{})
	if _, ok := res["R1"]; ok {
		t.Error("BGP machine in AS-less block must not be resolved")
	}
	if n := len(res["R2"].Neighbors); n != 0 {
		t.Errorf("R2 should not peer with AS-less R1, got %d neighbors", n)
	}
	if n := len(res["R2"].Advertised); n != 0 {
		t.Errorf("R2 advertised %v, want none", res["R2"].Advertised)
	}
}

func TestResolveDedupAcrossLANs(t *testing.T) {
	input := `R1:bgp:ab.1.1
as100
R2:bgp:ab.2.2
as200
lan
a:10.0.0.0/24
b:10.0.1.0/24
`
	res := Resolve(mustParse(t, input), Options{})

	r1 := res["R1"]
	if diff := cmp.Diff([]string{"neighbor 10.0.0.2 remote-as 200"}, statements(r1)); diff != "" {
		t.Errorf("R1 neighbors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.0.0.0/24", "10.0.1.0/24"}, r1.Advertised); diff != "" {
		t.Errorf("R1 advertised (-want +got):\n%s", diff)
	}
	if res.Sessions() != 1 {
		t.Errorf("Sessions = %d, want 1", res.Sessions())
	}
}

func TestResolveDedupSameAddress(t *testing.T) {
	input := `R1:bgp:a.1
as100
R2:bgp:a.2
R3:bgp:a.2
as200
lan
a:10.0.0.0/24
`
	res := Resolve(mustParse(t, input), Options{})

	if diff := cmp.Diff([]string{"neighbor 10.0.0.2 remote-as 200"}, statements(res["R1"])); diff != "" {
		t.Errorf("R1 neighbors (-want +got):\n%s", diff)
	}
	if got := res["R1"].Neighbors[0].Peer; got != "R2" {
		t.Errorf("kept neighbor for %s, want R2", got)
	}
	want := []string{
		"neighbor 10.0.0.1 remote-as 100",
		"neighbor 10.0.0.2 remote-as 200",
	}
	if diff := cmp.Diff(want, statements(res["R3"])); diff != "" {
		t.Errorf("R3 neighbors (-want +got):\n%s", diff)
	}
}

func TestResolveNeighborOrderIsTextual(t *testing.T) {
	input := `R1:bgp:a.1
as100
R2:bgp:a.20
as200
R3:bgp:a.3
as300
lan
a:10.0.0.0/24
`
	res := Resolve(mustParse(t, input), Options{})
	want := []string{
		"neighbor 10.0.0.20 remote-as 200",
		"neighbor 10.0.0.3 remote-as 300",
	}
	if diff := cmp.Diff(want, statements(res["R1"])); diff != "" {
		t.Errorf("R1 neighbors (-want +got):\n%s", diff)
	}
}

func TestResolveDeterministic(t *testing.T) {
	topo := mustParse(t, intraAS)
	first := Resolve(topo, Options{})
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, Resolve(topo, Options{})); diff != "" {
			t.Fatalf("run %d differs (-first +run):\n%s", i, diff)
		}
	}
}

func TestResolveMachine(t *testing.T) {
	topo := mustParse(t, interAS)
	if ResolveMachine(topo, "nope", Options{}) != nil {
		t.Error("unknown machine should resolve to nil")
	}
	r := ResolveMachine(topo, "R2", Options{})
	if r == nil || r.AS != 200 {
		t.Fatalf("ResolveMachine(R2) = %+v", r)
	}
}

func TestParseAdvertiseMode(t *testing.T) {
	tests := []struct {
		in   string
		want AdvertiseMode
	}{
		{"", AdvertiseInterAS},
		{"inter-as", AdvertiseInterAS},
		{"all-shared", AdvertiseAllShared},
	}
	for _, tt := range tests {
		got, err := ParseAdvertiseMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseAdvertiseMode(%q) = %v, %v", tt.in, got, err)
		}
		if tt.in != "" && got.String() != tt.in {
			t.Errorf("String() = %q, want %q", got.String(), tt.in)
		}
	}
	if _, err := ParseAdvertiseMode("sometimes"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
