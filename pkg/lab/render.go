// Package lab renders a resolved topology into a Kathara lab tree and
// persists it.
package lab

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vishvananda/netlink"

	"github.com/psaab/frrlab/pkg/topology"
)

const (
	// DefaultImage is the container image every machine runs.
	DefaultImage = "kathara/frr"

	// IndexPath is the web root page of server machines, relative to the
	// machine directory.
	IndexPath = "var/www/html/index.html"

	// ManifestName is the Kathara topology manifest.
	ManifestName = "lab.conf"
)

// IndexHTML is the static page served by server machines.
const IndexHTML = `<!DOCTYPE html><html><head><title>Kathara Web Server</title></head><body><h1>Hello World</h1><p>This is a Kathara lab web server.</p></body></html>`

// StartupName returns the startup script file name for a machine.
func StartupName(machine string) string {
	return machine + ".startup"
}

// Startup renders a machine's startup script: one address per connection
// on eth<i>, then the service the machine runs.
func Startup(topo *topology.Topology, m *topology.Machine) (string, error) {
	var b strings.Builder
	for i := range m.Connections {
		cidr, err := topo.Address(m, i)
		if err != nil {
			return "", err
		}
		addr, err := netlink.ParseAddr(cidr)
		if err != nil {
			return "", fmt.Errorf("%s %s: invalid address %s: %w", m.Name, topology.Interface(i), cidr, err)
		}
		fmt.Fprintf(&b, "ip address add %s dev %s\n", addr.IPNet, topology.Interface(i))
	}
	if svc := service(m); svc != "" {
		fmt.Fprintf(&b, "systemctl start %s\n", svc)
	}
	return b.String(), nil
}

// service returns the systemd unit a machine starts at boot, if any.
func service(m *topology.Machine) string {
	switch {
	case m.RunsFRR():
		return "frr"
	case m.Kind == topology.KindServer:
		return "apache2"
	default:
		return ""
	}
}

// Manifest renders lab.conf: interface-to-LAN bindings and the image line
// for every machine, in declaration order.
func Manifest(machines []*topology.Machine, image string) string {
	if image == "" {
		image = DefaultImage
	}
	var b strings.Builder
	for _, m := range machines {
		for i, c := range m.Connections {
			fmt.Fprintf(&b, "%s[%s]=%s\n", m.Name, strconv.Itoa(i), c.LAN)
		}
		fmt.Fprintf(&b, "%s[image]=%q\n\n", m.Name, image)
	}
	return b.String()
}
