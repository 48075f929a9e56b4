package wfb

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Stats line tags emitted by the receiver, one event per line:
//
//	RSSI <ant1> <ant2>
//	SNR <ant1> <ant2>
//	FEC <all> <recovered> <lost>
const (
	tagRSSI = "RSSI"
	tagSNR  = "SNR"
	tagFEC  = "FEC"
)

// statsHandler runs a receiver binary and parses its stats stream.
type statsHandler struct {
	binPath string
	args    []string
	name    string
}

// NewStatsHandler creates a Handler for the given receiver command.
// The command must be resolvable through PATH or be an absolute path.
func NewStatsHandler(command string, args []string) (Handler, error) {
	if command == "" {
		return nil, errors.New("receiver command is required")
	}

	binPath, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("error finding receiver command: %w", err)
	}

	return &statsHandler{binPath: binPath, args: args, name: command}, nil
}

// Cmd returns an exec.Cmd for the receiver process
func (h statsHandler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Parse parses one stats line and sends the resulting event to the channel.
// Values are passed through as parsed; range enforcement is the aggregator's
// concern, not the feed's.
func (h statsHandler) Parse(line string, stats chan<- Stat) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case tagRSSI, tagSNR:
		if len(fields) != 3 {
			return fmt.Errorf("invalid %s line: expected 2 antenna values, got %d", fields[0], len(fields)-1)
		}

		ant1, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid %s antenna 1 value: %w", fields[0], err)
		}
		ant2, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("invalid %s antenna 2 value: %w", fields[0], err)
		}

		kind := KindRSSI
		if fields[0] == tagSNR {
			kind = KindSNR
		}
		stats <- AntennaStat{Kind: kind, Ant1: ant1, Ant2: ant2}

	case tagFEC:
		if len(fields) != 4 {
			return fmt.Errorf("invalid FEC line: expected 3 counters, got %d", len(fields)-1)
		}

		counters := make([]uint32, 3)
		for i, field := range fields[1:] {
			v, err := strconv.ParseUint(field, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid FEC counter %d: %w", i, err)
			}
			counters[i] = uint32(v)
		}
		stats <- FECStat{All: counters[0], Recovered: counters[1], Lost: counters[2]}

	default:
		return fmt.Errorf("unknown stats tag '%s'", fields[0])
	}

	return nil
}

func (h statsHandler) Name() string {
	return h.name
}
