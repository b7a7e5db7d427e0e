// Package frr generates FRR configuration for lab routers and queries
// routing state via vtysh.
package frr

import (
	"fmt"
	"strings"

	"github.com/psaab/frrlab/pkg/peering"
	"github.com/psaab/frrlab/pkg/topology"
)

const (
	// DefaultLogFile is where frr.conf tells FRR to log.
	DefaultLogFile = "/var/log/frr/frr.log"

	// Paths of the generated files, relative to a machine directory.
	DaemonsPath = "etc/frr/daemons"
	ConfPath    = "etc/frr/frr.conf"
)

// section renders one region of frr.conf.
type section func(b *strings.Builder, in *ConfigInput)

// skeletons lists the regions emitted for each machine kind, in order.
// Kinds without an IGP (bgp, and hosts or servers with BGP) only get the
// BGP region.
var skeletons = map[topology.Kind][]section{
	topology.KindRIP:  {writeRIP, writeBGP},
	topology.KindOSPF: {writeOSPF, writeBGP},
	topology.KindBoth: {writeRIP, writeOSPF, writeBGP},
}

var bgpOnly = []section{writeBGP}

// ConfigInput is everything frr.conf depends on.
type ConfigInput struct {
	Machine *topology.Machine
	Block   *topology.Block
	BGP     *peering.Result // nil when the machine has no BGP context
	LogFile string
}

// Config renders frr.conf for a machine.
func Config(in *ConfigInput) string {
	var b strings.Builder
	b.WriteString("!\n! FRRouting configuration file\n!\n")

	regions, ok := skeletons[in.Machine.Kind]
	if !ok {
		regions = bgpOnly
	}
	for _, write := range regions {
		write(&b, in)
	}

	logFile := in.LogFile
	if logFile == "" {
		logFile = DefaultLogFile
	}
	fmt.Fprintf(&b, "log file %s\n", logFile)
	return b.String()
}

func writeRIP(b *strings.Builder, in *ConfigInput) {
	b.WriteString("! RIP Configuration\n!\n")
	b.WriteString("router rip\n")
	if in.Block != nil {
		for _, n := range in.Block.RIPNetworks {
			fmt.Fprintf(b, " network %s\n", n)
		}
	}
	b.WriteString("exit\n!\n")
}

func writeOSPF(b *strings.Builder, in *ConfigInput) {
	b.WriteString("! OSPF Configuration\n!\n")
	b.WriteString("router ospf\n")
	if in.Block != nil {
		for _, n := range in.Block.OSPFNetworks {
			fmt.Fprintf(b, " network %s area %s\n", n.Network, n.Area)
		}
	}
	b.WriteString("exit\n!\n")
}

func writeBGP(b *strings.Builder, in *ConfigInput) {
	bgp := in.BGP
	if bgp == nil {
		return
	}
	b.WriteString("! BGP Configuration\n!\n")
	fmt.Fprintf(b, "router bgp %d\n", bgp.AS)
	b.WriteString(" no bgp network import-check\n")
	b.WriteString(" no bgp ebgp-requires-policy\n")
	for _, n := range bgp.Neighbors {
		fmt.Fprintf(b, " %s\n", n.Statement())
	}
	if len(bgp.Advertised) > 0 {
		b.WriteString(" !\n address-family ipv4 unicast\n")
		for _, net := range bgp.Advertised {
			fmt.Fprintf(b, "  network %s\n", net)
		}
		b.WriteString(" exit-address-family\n")
	}
	b.WriteString("exit\n!\n")
}

// Daemons renders the FRR daemons file: zebra always, bgpd/ospfd/ripd as
// the machine needs them, everything else off.
func Daemons(kind topology.Kind, hasBGP bool) string {
	var b strings.Builder
	b.WriteString("zebra=yes\n")
	fmt.Fprintf(&b, "bgpd=%s\n", yesNo(hasBGP))
	fmt.Fprintf(&b, "ospfd=%s\n", yesNo(kind.RunsOSPF()))
	b.WriteString("ospf6d=no\n")
	fmt.Fprintf(&b, "ripd=%s\n", yesNo(kind.RunsRIP()))
	for _, d := range []string{"ripngd", "isisd", "pimd", "ldpd", "nhrpd", "eigrpd",
		"babeld", "sharpd", "staticd", "pbrd", "bfdd", "fabricd"} {
		fmt.Fprintf(&b, "%s=no\n", d)
	}
	b.WriteString("vtysh_enable=yes\n")
	b.WriteString("zebra_options=\" -s 90000000 --daemon -A 127.0.0.1\"\n")
	b.WriteString("bgpd_options=\"   --daemon -A 127.0.0.1\"\n")
	b.WriteString("ospfd_options=\"  --daemon -A 127.0.0.1\"\n")
	b.WriteString("ripd_options=\"   --daemon -A 127.0.0.1\"\n")
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
