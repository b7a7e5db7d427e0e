package lab

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/psaab/frrlab/pkg/peering"
	"github.com/psaab/frrlab/pkg/topology"
)

const sampleLab = `# AS100: r1 and r2 run OSPF, r1 speaks eBGP to r3
r1:ospf+bgp:ab.1.1
r2:ospf:bc.2.1
ospf
10.0.1.0/24 0
10.0.2.0/24 0
as100
192.168.100.0/24
r3:bgp:ad.2.1
as200
web:server:c.80
pc:host:d.10
lan
a:10.0.0.0/24
b:10.0.1.0/24
c:10.0.2.0/24
d:10.0.3.0/24
`

func mustParse(t *testing.T, input string) *topology.Topology {
	t.Helper()
	topo, err := topology.ParseString(input)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return topo
}

func loadSample(t *testing.T, input string) *Lab {
	t.Helper()
	return FromTopology("sample", mustParse(t, input), peering.Options{})
}

func render(t *testing.T, l *Lab, opts Options) *Tree {
	t.Helper()
	tree, err := l.Render(context.Background(), opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return tree
}

func TestStartup(t *testing.T) {
	l := loadSample(t, sampleLab)
	topo := l.Topology

	tests := []struct {
		machine string
		want    string
	}{
		{"r1", "ip address add 10.0.0.1/24 dev eth0\nip address add 10.0.1.1/24 dev eth1\nsystemctl start frr\n"},
		{"r3", "ip address add 10.0.0.2/24 dev eth0\nip address add 10.0.3.1/24 dev eth1\nsystemctl start frr\n"},
		{"web", "ip address add 10.0.2.80/24 dev eth0\nsystemctl start apache2\n"},
		{"pc", "ip address add 10.0.3.10/24 dev eth0\n"},
	}
	for _, tt := range tests {
		got, err := Startup(topo, topo.Machine(tt.machine))
		if err != nil {
			t.Errorf("%s: %v", tt.machine, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s startup (-want +got):\n%s", tt.machine, diff)
		}
	}
}

func TestStartupInterfaceIndex(t *testing.T) {
	topo := mustParse(t, "h:host:cab.3.1.2\nlan\na:10.0.0.0/24\nb:10.0.1.0/24\nc:10.0.2.0/24\n")
	m := topo.Machine("h")

	got, err := Startup(topo, m)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != len(m.Connections) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(m.Connections), got)
	}
	for i, c := range m.Connections {
		lan := topo.LAN(c.LAN)
		want := fmt.Sprintf("ip address add %s/%d dev eth%d", lan.HostIP(c.Octet), lan.Mask, i)
		if lines[i] != want {
			t.Errorf("line %d = %q, want %q", i, lines[i], want)
		}
	}
}

func TestStartupBGPHostStartsFRR(t *testing.T) {
	topo := mustParse(t, "h:host+bgp:a.5\nlan\na:10.0.0.0/24\n")
	got, err := Startup(topo, topo.Machine("h"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, "systemctl start frr\n") {
		t.Errorf("startup does not start frr:\n%s", got)
	}
}

func TestStartupInvalidAddress(t *testing.T) {
	topo := mustParse(t, "h:host:a.200\nlan\na:10.0.0.128/25\n")
	if _, err := Startup(topo, topo.Machine("h")); err == nil {
		t.Error("expected error for an address past .255")
	}
}

func TestManifest(t *testing.T) {
	l := loadSample(t, sampleLab)
	got := Manifest(l.Topology.Machines, "")
	want := `r1[0]=a
r1[1]=b
r1[image]="kathara/frr"

r2[0]=b
r2[1]=c
r2[image]="kathara/frr"

r3[0]=a
r3[1]=d
r3[image]="kathara/frr"

web[0]=c
web[image]="kathara/frr"

pc[0]=d
pc[image]="kathara/frr"

`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lab.conf (-want +got):\n%s", diff)
	}
	if custom := Manifest(l.Topology.Machines[:1], "custom/img"); !strings.Contains(custom, `r1[image]="custom/img"`) {
		t.Errorf("custom image not used:\n%s", custom)
	}
}

func TestBuildLayout(t *testing.T) {
	l := loadSample(t, sampleLab)
	tree := render(t, l, Options{})

	want := []string{
		"lab.conf",
		"pc.startup",
		"r1.startup",
		"r1/etc/frr/daemons",
		"r1/etc/frr/frr.conf",
		"r2.startup",
		"r2/etc/frr/daemons",
		"r2/etc/frr/frr.conf",
		"r3.startup",
		"r3/etc/frr/daemons",
		"r3/etc/frr/frr.conf",
		"web.startup",
		"web/var/www/html/index.html",
	}
	if diff := cmp.Diff(want, tree.Paths()); diff != "" {
		t.Errorf("paths (-want +got):\n%s", diff)
	}
	if tree.Root != "sample" {
		t.Errorf("Root = %q, want sample", tree.Root)
	}

	conf, _ := tree.Get("r1/etc/frr/frr.conf")
	for _, want := range []string{
		"router ospf\n network 10.0.1.0/24 area 0\n network 10.0.2.0/24 area 0\n",
		"router bgp 100\n",
		" neighbor 10.0.0.2 remote-as 200\n",
		"  network 10.0.0.0/24\n  network 192.168.100.0/24\n",
	} {
		if !strings.Contains(conf, want) {
			t.Errorf("r1 frr.conf missing %q:\n%s", want, conf)
		}
	}

	if conf, _ := tree.Get("r2/etc/frr/frr.conf"); strings.Contains(conf, "router bgp") {
		t.Errorf("r2 has no BGP but got a bgp stanza:\n%s", conf)
	}
	if index, _ := tree.Get("web/var/www/html/index.html"); index != IndexHTML {
		t.Errorf("index.html = %q", index)
	}
}

func TestBuildDeterministic(t *testing.T) {
	first := render(t, loadSample(t, sampleLab), Options{Jobs: 1})

	for _, jobs := range []int{2, 4, 16} {
		tree := render(t, loadSample(t, sampleLab), Options{Jobs: jobs})
		if diff := cmp.Diff(first.Paths(), tree.Paths()); diff != "" {
			t.Fatalf("jobs=%d paths (-1 job +got):\n%s", jobs, diff)
		}
		for _, p := range first.Paths() {
			a, _ := first.Get(p)
			b, _ := tree.Get(p)
			if a != b {
				t.Errorf("jobs=%d: %s differs", jobs, p)
			}
		}
	}
}

func TestBuildCanceled(t *testing.T) {
	l := loadSample(t, sampleLab)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Render(ctx, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWriterMemFs(t *testing.T) {
	tree := render(t, loadSample(t, sampleLab), Options{})

	fs := afero.NewMemMapFs()
	w := &Writer{Fs: fs}
	root, err := w.Write("/labs", tree)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/labs", "sample"); root != want {
		t.Errorf("root = %q, want %q", root, want)
	}

	for _, p := range tree.Paths() {
		data, err := afero.ReadFile(fs, filepath.Join(root, p))
		if err != nil {
			t.Errorf("%s: %v", p, err)
			continue
		}
		if want, _ := tree.Get(p); string(data) != want {
			t.Errorf("%s content differs", p)
		}
	}

	exists, err := w.Exists("/labs", tree)
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v; want true", exists, err)
	}
}

func TestWriterClean(t *testing.T) {
	tree := render(t, loadSample(t, sampleLab), Options{})

	fs := afero.NewMemMapFs()
	stale := filepath.Join("/labs", "sample", "old.startup")
	if err := afero.WriteFile(fs, stale, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := (&Writer{Fs: fs}).Write("/labs", tree); err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(fs, stale); !ok {
		t.Error("stale file removed without Clean")
	}

	if _, err := (&Writer{Fs: fs, Clean: true}).Write("/labs", tree); err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(fs, stale); ok {
		t.Error("Clean left the stale file behind")
	}
}

func TestLoadBadInputWritesNothing(t *testing.T) {
	osFs := afero.NewOsFs()
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.txt")
	if err := afero.WriteFile(osFs, input, []byte("r1:bgp:az.1.1\nas100\nlan\na:10.0.0.0/24\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(input, peering.Options{})
	if !errors.Is(err, topology.ErrUnresolvedLanReference) {
		t.Errorf("err = %v, want ErrUnresolvedLanReference", err)
	}

	entries, err := afero.ReadDir(osFs, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, only the input file may exist", len(entries))
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "campus.lab")
	if err := afero.WriteFile(afero.NewOsFs(), input, []byte(sampleLab), 0644); err != nil {
		t.Fatal(err)
	}

	l, err := Load(input, peering.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if l.Name != "campus" {
		t.Errorf("Name = %q, want campus", l.Name)
	}
	if len(l.Peering) != 2 {
		t.Errorf("got %d BGP routers, want 2", len(l.Peering))
	}
}

func TestDiff(t *testing.T) {
	tree := render(t, loadSample(t, sampleLab), Options{})
	fs := afero.NewMemMapFs()

	diffs, err := Diff(fs, "/labs", tree)
	if err != nil {
		t.Fatal(err)
	}
	if len(diffs) != tree.Len() {
		t.Fatalf("got %d diffs on an empty fs, want %d", len(diffs), tree.Len())
	}
	for _, d := range diffs {
		if d.Status != Missing {
			t.Errorf("%s: status %v, want Missing", d.Path, d.Status)
		}
	}

	if _, err := (&Writer{Fs: fs}).Write("/labs", tree); err != nil {
		t.Fatal(err)
	}
	if diffs, err = Diff(fs, "/labs", tree); err != nil || len(diffs) != 0 {
		t.Fatalf("after write: %v, %v", diffs, err)
	}

	startup := filepath.Join("/labs", "sample", "pc.startup")
	if err := afero.WriteFile(fs, startup, []byte("ip address add 10.0.3.99/24 dev eth0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, filepath.Join("/labs", "sample", "gone.startup"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	diffs, err = Diff(fs, "/labs", tree)
	if err != nil {
		t.Fatal(err)
	}
	want := []FileDiff{
		{Path: "pc.startup", Status: Changed, Lines: []string{
			"-ip address add 10.0.3.99/24 dev eth0",
			"+ip address add 10.0.3.10/24 dev eth0",
		}},
		{Path: "gone.startup", Status: Stale},
	}
	if diff := cmp.Diff(want, diffs); diff != "" {
		t.Errorf("diffs (-want +got):\n%s", diff)
	}
}

func TestStats(t *testing.T) {
	l := loadSample(t, sampleLab)
	tree := render(t, l, Options{})

	s := NewStats(l, tree, 3*time.Millisecond)
	got := map[string]int{
		"machines":    s.Machines,
		"blocks":      s.Blocks,
		"lans":        s.LANs,
		"bgp routers": s.BGPRouters,
		"sessions":    s.BGPSessions,
		"files":       s.Files,
		"servers":     s.ByKind["server"],
		"bgp kind":    s.ByKind["bgp"],
	}
	want := map[string]int{
		"machines":    5,
		"blocks":      3,
		"lans":        4,
		"bgp routers": 2,
		"sessions":    1,
		"files":       tree.Len(),
		"servers":     1,
		"bgp kind":    1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
}

func TestRootName(t *testing.T) {
	tests := map[string]string{
		"/tmp/x/lab1.txt": "lab1",
		"topo":            "topo",
		"my.lab.conf":     "my.lab",
	}
	for in, want := range tests {
		if got := RootName(in); got != want {
			t.Errorf("RootName(%q) = %q, want %q", in, got, want)
		}
	}
}
