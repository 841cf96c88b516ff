package scanner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"time"

	"rfsentry/internal/logger"
	"rfsentry/internal/models"
)

// btmon prints HCI traffic as text; advertising reports carry an
// Address line followed a few lines later by an RSSI line.
var (
	btAddrRe = regexp.MustCompile(`Address:\s+([0-9A-Fa-f:]{17})`)
	btRSSIRe = regexp.MustCompile(`RSSI:\s+(-?\d+)\s+dBm`)
)

// BluetoothMonitor streams passive BLE/classic sightings from btmon.
type BluetoothMonitor struct {
	sink SightingSink
	log  *logger.Logger
	hb   heartbeat

	// stream opens the btmon output; swapped in tests.
	stream func(ctx context.Context) (io.ReadCloser, error)
	// reset hard-resets the adapter before a restart; swapped in tests.
	reset func(ctx context.Context)
}

func NewBluetoothMonitor(sink SightingSink, log *logger.Logger) *BluetoothMonitor {
	b := &BluetoothMonitor{sink: sink, log: log}
	b.stream = b.btmonStream
	b.reset = b.resetAdapter
	return b
}

func (b *BluetoothMonitor) Name() string        { return "bluetooth" }
func (b *BluetoothMonitor) LastBeat() time.Time { return b.hb.last() }

// Run resets the adapter, attaches to btmon and feeds parsed sightings
// to the sink until the stream ends or ctx is canceled.
func (b *BluetoothMonitor) Run(ctx context.Context) error {
	b.hb.beat(time.Now())
	b.reset(ctx)

	out, err := b.stream(ctx)
	if err != nil {
		return fmt.Errorf("start btmon: %w", err)
	}
	defer func() { _ = out.Close() }()

	p := newBtmonParser()
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s, ok := p.Feed(sc.Text(), time.Now())
		if !ok {
			continue
		}
		b.hb.beat(s.ObservedAt)
		if err := b.sink.OnSighting(s); err != nil {
			b.log.Debugw("bt_sighting_rejected", "device", s.DeviceID, "err", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read btmon: %w", err)
	}
	return ctx.Err()
}

// btmonStream launches the real btmon subprocess.
func (b *BluetoothMonitor) btmonStream(ctx context.Context) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, "btmon", "-t", "-T")
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go func() { _ = cmd.Wait() }()
	return out, nil
}

// resetAdapter cycles the radio. btmon wedges when the adapter firmware
// hangs; an rfkill cycle plus hci reset recovers it.
func (b *BluetoothMonitor) resetAdapter(ctx context.Context) {
	for _, args := range [][]string{
		{"rfkill", "block", "bluetooth"},
		{"rfkill", "unblock", "bluetooth"},
		{"hciconfig", "hci0", "reset"},
	} {
		if err := exec.CommandContext(ctx, args[0], args[1:]...).Run(); err != nil {
			b.log.Debugw("bt_adapter_reset_step_failed", "cmd", args[0], "err", err)
		}
	}
}

// btmonParser pairs an Address line with the next RSSI line. The pair
// resets after each emit so an RSSI without a preceding address is
// ignored.
type btmonParser struct {
	currentAddr string
}

func newBtmonParser() *btmonParser { return &btmonParser{} }

// Feed consumes one btmon output line and emits a sighting when an
// address/RSSI pair completes.
func (p *btmonParser) Feed(line string, now time.Time) (models.Sighting, bool) {
	if m := btAddrRe.FindStringSubmatch(line); m != nil {
		p.currentAddr = m[1]
		return models.Sighting{}, false
	}
	m := btRSSIRe.FindStringSubmatch(line)
	if m == nil || p.currentAddr == "" {
		return models.Sighting{}, false
	}
	rssi := 0
	if _, err := fmt.Sscanf(m[1], "%d", &rssi); err != nil {
		return models.Sighting{}, false
	}
	s := models.Sighting{
		DeviceID:   p.currentAddr,
		Tech:       models.TechBluetooth,
		RSSI:       rssi,
		ObservedAt: now,
	}
	p.currentAddr = ""
	return s, true
}
