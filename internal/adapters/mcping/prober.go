// Package mcping implements secondary.Prober with the Minecraft Server List
// Ping (status) protocol.
package mcping

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mcstatus-io/mcutil/v4/response"
	"github.com/mcstatus-io/mcutil/v4/status"

	"github.com/example/beacon/internal/ports/secondary"
)

const (
	// DefaultPort is the standard Java edition server port.
	DefaultPort = 25565
	// DefaultTimeout bounds a whole probe: dial, handshake and reply.
	DefaultTimeout = 4 * time.Second

	// Servers pad the sample with placeholder entries carrying the nil UUID.
	nilUUID = "00000000-0000-0000-0000-000000000000"
)

// serverStatus is the part of a status reply a snapshot is built from.
type serverStatus struct {
	Online int64
	Max    int64
	Sample []samplePlayer
}

type samplePlayer struct {
	ID   string
	Name string
}

type statusFunc func(ctx context.Context, host string, port uint16) (*serverStatus, error)

// Prober probes Java edition servers.
type Prober struct {
	timeout time.Duration
	status  statusFunc
}

// NewProber creates a prober. A non-positive timeout selects DefaultTimeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{timeout: timeout, status: queryStatus}
}

// Probe makes one status request to address ("host:port").
func (p *Prober) Probe(ctx context.Context, address string) (*secondary.Snapshot, error) {
	snap, err := p.probe(ctx, address)
	if err != nil {
		return nil, &secondary.ProbeError{Address: address, Err: err}
	}
	return snap, nil
}

func (p *Prober) probe(ctx context.Context, address string) (*secondary.Snapshot, error) {
	host, port, err := splitAddress(address)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	st, err := p.status(ctx, host, port)
	if err != nil {
		return nil, err
	}
	return toSnapshot(st), nil
}

// queryStatus runs a modern (1.7+) status request.
func queryStatus(ctx context.Context, host string, port uint16) (*serverStatus, error) {
	resp, err := status.Modern(ctx, host, port)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return fromResponse(resp), nil
}

func fromResponse(resp *response.StatusModern) *serverStatus {
	st := &serverStatus{}
	if resp.Players.Online != nil {
		st.Online = *resp.Players.Online
	}
	if resp.Players.Max != nil {
		st.Max = *resp.Players.Max
	}
	for _, s := range resp.Players.Sample {
		st.Sample = append(st.Sample, samplePlayer{ID: s.ID, Name: s.Name.Clean})
	}
	return st
}

// toSnapshot normalizes a reply. Counts are never negative; placeholder
// sample entries are dropped.
func toSnapshot(st *serverStatus) *secondary.Snapshot {
	snap := &secondary.Snapshot{
		Population: nonNegative(st.Online),
		Capacity:   nonNegative(st.Max),
	}
	for _, s := range st.Sample {
		if s.ID == "" || s.ID == nilUUID {
			continue
		}
		snap.Members = append(snap.Members, secondary.SnapshotMember{ID: s.ID, Name: s.Name})
	}
	return snap
}

func nonNegative(n int64) int {
	if n < 0 {
		return 0
	}
	return int(n)
}

func splitAddress(address string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		// Bare host: use the default port.
		if address == "" {
			return "", 0, errors.New("empty address")
		}
		return address, DefaultPort, nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, uint16(port), nil
}

// Ensure Prober implements the interface.
var _ secondary.Prober = (*Prober)(nil)
