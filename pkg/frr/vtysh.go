package frr

import (
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"

	"github.com/psaab/frrlab/pkg/peering"
)

// Runner executes a vtysh command and returns its stdout.
type Runner func(ctx context.Context, command string) (string, error)

// Vtysh runs a command through the local vtysh binary.
func Vtysh(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "vtysh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("vtysh %q: %w: %s", command, err, stderr.String())
	}
	return stdout.String(), nil
}

// BGPPeerSummary represents a BGP peer in the summary.
type BGPPeerSummary struct {
	Neighbor string
	AS       string
	MsgRcvd  string
	MsgSent  string
	UpDown   string
	State    string // state name, or received prefix count once established
}

// Established reports whether the session is up. FRR prints the received
// prefix count in place of the state name for established sessions.
func (p BGPPeerSummary) Established() bool {
	_, err := strconv.Atoi(p.State)
	return err == nil
}

// ParseBGPSummary parses "show bgp summary" output.
func ParseBGPSummary(output string) []BGPPeerSummary {
	var peers []BGPPeerSummary
	inTable := false
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "Neighbor") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		// Skip the trailing "Total number of neighbors" line.
		if _, err := netip.ParseAddr(fields[0]); err != nil {
			continue
		}
		p := BGPPeerSummary{
			Neighbor: fields[0],
			AS:       fields[2],
		}
		if len(fields) >= 10 {
			p.MsgRcvd = fields[3]
			p.MsgSent = fields[4]
			p.UpDown = fields[8]
			p.State = fields[9]
		}
		peers = append(peers, p)
	}
	return peers
}

// SessionStatus compares one inferred session with the running router.
type SessionStatus struct {
	Expected    peering.Neighbor
	Found       bool
	ASMatch     bool
	Established bool
	State       string
}

// OK reports whether the session exists with the right AS and is up.
func (s SessionStatus) OK() bool {
	return s.Found && s.ASMatch && s.Established
}

// CheckSessions matches the sessions the lab should have against the
// router's BGP summary, in the order of res.Neighbors.
func CheckSessions(res *peering.Result, peers []BGPPeerSummary) []SessionStatus {
	byAddr := make(map[string]BGPPeerSummary, len(peers))
	for _, p := range peers {
		byAddr[p.Neighbor] = p
	}
	out := make([]SessionStatus, 0, len(res.Neighbors))
	for _, n := range res.Neighbors {
		st := SessionStatus{Expected: n}
		if p, ok := byAddr[n.IP]; ok {
			st.Found = true
			st.ASMatch = p.AS == strconv.FormatUint(uint64(n.RemoteAS), 10)
			st.Established = p.Established()
			st.State = p.State
		}
		out = append(out, st)
	}
	return out
}

// QuerySessions fetches the BGP summary with run and checks it against res.
func QuerySessions(ctx context.Context, run Runner, res *peering.Result) ([]SessionStatus, error) {
	if run == nil {
		run = Vtysh
	}
	output, err := run(ctx, "show bgp summary")
	if err != nil {
		return nil, err
	}
	return CheckSessions(res, ParseBGPSummary(output)), nil
}
