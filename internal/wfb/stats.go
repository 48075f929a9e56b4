// Package wfb runs a wfb-ng style receiver process and turns its textual
// stats stream into typed events. The receiver has already extracted the
// numeric fields from packet headers; no packet framing happens here.
package wfb

import (
	"context"
	"os/exec"
)

const (
	KindRSSI Kind = "rssi"
	KindSNR  Kind = "snr"
)

// Kind says which per-antenna metric an AntennaStat carries.
type Kind string

// Stat is one parsed receiver statistics event.
type Stat interface {
	stat()
}

// AntennaStat is a per-packet metric pair, one value per antenna.
type AntennaStat struct {
	Kind Kind
	Ant1 int
	Ant2 int
}

func (AntennaStat) stat() {}

// FECStat is a per-block set of forward-error-correction counters.
type FECStat struct {
	All       uint32
	Recovered uint32
	Lost      uint32
}

func (FECStat) stat() {}

// Handler produces the receiver command and parses its stats output
type Handler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Parse(line string, stats chan<- Stat) error
	Name() string
}
