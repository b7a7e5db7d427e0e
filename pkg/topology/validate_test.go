package topology

import (
	"strings"
	"testing"
)

func TestCheckClean(t *testing.T) {
	topo, err := ParseString(twoASLab)
	if err != nil {
		t.Fatal(err)
	}
	if warns := topo.Check(); len(warns) != 0 {
		t.Errorf("unexpected warnings: %v", warns)
	}
}

func checkMessages(t *testing.T, input string) string {
	t.Helper()
	topo, err := ParseString(input)
	if err != nil {
		t.Fatal(err)
	}
	var msgs []string
	for _, w := range topo.Check() {
		msgs = append(msgs, w.String())
	}
	return strings.Join(msgs, "\n")
}

func TestCheckWarnings(t *testing.T) {
	all := checkMessages(t, `r1:bgp:ab.1.1
h1:host:c.0
lan
a:10.0.0.0/24
b:10.0.0.0/16
c:10.1.0.0/24
d:10.2.0.0/24
`)
	for _, want := range []string{
		"LAN b (10.0.0.0/16) overlaps LAN a (10.0.0.0/24)",
		"r1 has BGP enabled but its block declares no AS",
		"h1 eth0: 10.1.0.0 is the network or broadcast address of LAN c",
		"LAN d is declared but no machine connects to it",
	} {
		if !strings.Contains(all, want) {
			t.Errorf("missing warning %q in:\n%s", want, all)
		}
	}
}

func TestCheckDuplicateAddress(t *testing.T) {
	all := checkMessages(t, "R1:bgp:a.1\nas100\nR2:bgp:a.2\nR3:bgp:a.2\nas200\nlan\na:10.0.0.0/24\n")
	want := "line 4: R3 eth0: address 10.0.0.2 on LAN a is also used by R2 eth0"
	if all != want {
		t.Errorf("warnings = %q, want %q", all, want)
	}
}

func TestCheckOctetOutsideLAN(t *testing.T) {
	topo, err := ParseString("h1:host:a.200\nlan\na:10.0.0.128/25\n")
	if err != nil {
		t.Fatal(err)
	}
	warns := topo.Check()
	if len(warns) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warns), warns)
	}
	if warns[0].Line != 1 || !strings.Contains(warns[0].Message, "falls outside LAN a") {
		t.Errorf("warning = %v", warns[0])
	}
}
