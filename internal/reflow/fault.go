package reflow

import (
	"errors"
	"fmt"
)

// FaultCode classifies a rejected sensor sample. It doubles as the error a
// Sensor returns for native thermocouple faults.
type FaultCode uint8

const (
	FaultNone FaultCode = iota
	FaultOpenCircuit
	FaultShortToGround
	FaultShortToSupply
	FaultOutOfRange
	FaultUnknown
	// FaultManual marks an operator pause, not a sensor problem.
	FaultManual
)

var faultNames = map[FaultCode]string{
	FaultNone:          "NONE",
	FaultOpenCircuit:   "OPEN_CIRCUIT",
	FaultShortToGround: "SHORT_TO_GROUND",
	FaultShortToSupply: "SHORT_TO_SUPPLY",
	FaultOutOfRange:    "OUT_OF_RANGE",
	FaultUnknown:       "UNKNOWN",
	FaultManual:        "MANUAL",
}

func (c FaultCode) String() string {
	if n, ok := faultNames[c]; ok {
		return n
	}
	return fmt.Sprintf("FAULT(%d)", uint8(c))
}

func (c FaultCode) Error() string { return "sensor fault: " + c.String() }

// MarshalText renders the code by name in JSON payloads.
func (c FaultCode) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ParseFaultCode maps a name back to its code.
func ParseFaultCode(s string) (FaultCode, error) {
	for c, n := range faultNames {
		if n == s {
			return c, nil
		}
	}
	return FaultUnknown, fmt.Errorf("unknown fault code %q", s)
}

// classify turns a sensor error into a fault code.
func classify(err error) FaultCode {
	var code FaultCode
	if errors.As(err, &code) && code != FaultNone {
		return code
	}
	return FaultUnknown
}
