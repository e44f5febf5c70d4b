// Package mcu talks to the oven's microcontroller over a serial line.
//
// The MCU owns the thermocouple amplifier, the two buttons and the relay
// pin. It sends one line per event:
//
//	T,<celsius>             temperature sample, e.g. T,142.25
//	F,<OC|SCG|SCV>          native thermocouple fault
//	B,<profile>,<startstop> raw button levels, 1 = pressed
//
// and accepts R1 / R0 to switch the relay.
package mcu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/reflow"
)

const (
	DefaultBaudRate   = 115200
	DefaultStaleAfter = 2 * time.Second
)

var ErrNotConnected = errors.New("mcu: not connected")

// Kind tags a parsed line.
type Kind uint8

const (
	KindTemperature Kind = iota + 1
	KindFault
	KindButtons
)

// Line is one parsed MCU message.
type Line struct {
	Kind      Kind
	Celsius   float64
	Fault     reflow.FaultCode
	Profile   bool
	StartStop bool
}

var faultTokens = map[string]reflow.FaultCode{
	"OC":  reflow.FaultOpenCircuit,
	"SCG": reflow.FaultShortToGround,
	"SCV": reflow.FaultShortToSupply,
}

// ParseLine decodes one line of the MCU protocol.
func ParseLine(s string) (Line, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	switch parts[0] {
	case "T":
		if len(parts) != 2 {
			return Line{}, fmt.Errorf("temperature line: expected 2 fields, got %d", len(parts))
		}
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return Line{}, fmt.Errorf("invalid temperature: %w", err)
		}
		return Line{Kind: KindTemperature, Celsius: v}, nil

	case "F":
		if len(parts) != 2 {
			return Line{}, fmt.Errorf("fault line: expected 2 fields, got %d", len(parts))
		}
		code, ok := faultTokens[parts[1]]
		if !ok {
			return Line{}, fmt.Errorf("unknown fault %q", parts[1])
		}
		return Line{Kind: KindFault, Fault: code}, nil

	case "B":
		if len(parts) != 3 {
			return Line{}, fmt.Errorf("button line: expected 3 fields, got %d", len(parts))
		}
		return Line{Kind: KindButtons, Profile: parts[1] == "1", StartStop: parts[2] == "1"}, nil
	}
	return Line{}, fmt.Errorf("unknown line %q", s)
}

// Options for New.
type Options struct {
	Port       string
	BaudRate   int
	StaleAfter time.Duration
	// Profile and StartStop receive raw button levels; either may be nil.
	Profile   *reflow.ButtonLine
	StartStop *reflow.ButtonLine
	Logger    *logger.Logger
	Now       func() time.Time
}

// Serial implements reflow.Sensor and reflow.Actuator on top of the MCU
// link. The reader goroutine only stores the latest sample and button
// levels; the control loop picks them up on its own schedule.
type Serial struct {
	opts Options
	log  *logger.Logger

	mu        sync.RWMutex
	conn      io.ReadWriteCloser
	connected bool
	done      chan struct{}

	sample     Line
	sampleAt   time.Time
	haveSample bool
	parseErrs  int
}

// New returns an unconnected device.
func New(opts Options) *Serial {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Serial{opts: opts, log: log}
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Connect opens the configured port and starts reading.
func (d *Serial) Connect() error {
	port, err := serial.Open(d.opts.Port, &serial.Mode{BaudRate: d.opts.BaudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.opts.Port, err)
	}
	if err := d.Attach(port); err != nil {
		port.Close()
		return err
	}
	d.log.Infow("mcu_connected", "port", d.opts.Port, "baud", d.opts.BaudRate)
	return nil
}

// Attach starts reading from an already open link.
func (d *Serial) Attach(conn io.ReadWriteCloser) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return fmt.Errorf("already connected")
	}
	d.conn = conn
	d.connected = true
	d.done = make(chan struct{})
	go d.readLines(conn, d.done)
	return nil
}

// Close stops the reader and closes the link. The relay is switched off
// first when possible.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	conn, done := d.conn, d.done
	if _, err := conn.Write([]byte("R0\n")); err != nil {
		d.log.Warnw("relay_off_on_close_failed", "err", err)
	}
	d.conn = nil
	d.connected = false
	d.mu.Unlock()

	err := conn.Close()
	<-done
	if err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}

// IsConnected reports whether the link is open.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// ReadTemperature returns the latest sample. No sample, or one older than
// StaleAfter, is reported as FaultUnknown.
func (d *Serial) ReadTemperature() (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.haveSample || d.opts.Now().Sub(d.sampleAt) > d.opts.StaleAfter {
		return 0, reflow.FaultUnknown
	}
	if d.sample.Kind == KindFault {
		return 0, d.sample.Fault
	}
	return d.sample.Celsius, nil
}

// SetRelay sends R1 or R0.
func (d *Serial) SetRelay(on bool) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.connected {
		return ErrNotConnected
	}
	cmd := "R0\n"
	if on {
		cmd = "R1\n"
	}
	if _, err := d.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("failed to send relay command: %w", err)
	}
	return nil
}

// ParseErrors returns how many lines were rejected.
func (d *Serial) ParseErrors() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.parseErrs
}

func (d *Serial) readLines(r io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		line, err := ParseLine(text)
		if err != nil {
			d.mu.Lock()
			d.parseErrs++
			d.mu.Unlock()
			d.log.Debugw("mcu_line_rejected", "line", text, "err", err)
			continue
		}
		d.store(line)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && d.IsConnected() {
		d.log.Errorw("mcu_read_failed", "err", err)
	}
}

func (d *Serial) store(l Line) {
	switch l.Kind {
	case KindButtons:
		if d.opts.Profile != nil {
			d.opts.Profile.Set(l.Profile)
		}
		if d.opts.StartStop != nil {
			d.opts.StartStop.Set(l.StartStop)
		}
	default:
		d.mu.Lock()
		d.sample = l
		d.sampleAt = d.opts.Now()
		d.haveSample = true
		d.mu.Unlock()
	}
}
