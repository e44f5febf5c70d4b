package main

import (
	"fmt"

	"reflow_oven/internal/config"
	"reflow_oven/internal/hardware/mcu"
	"reflow_oven/internal/hardware/sim"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/reflow"
)

// hardware is the sensor/relay pair the loop drives, plus the button
// adapter when the driver provides physical buttons.
type hardware struct {
	sensor reflow.Sensor
	relay  reflow.Actuator
	input  *reflow.InputAdapter
	close  func() error
}

func openHardware(cfg *config.Config, log *logger.Logger) (*hardware, error) {
	switch cfg.Hardware.Driver {
	case config.DriverMCU:
		profile, startStop := &reflow.ButtonLine{}, &reflow.ButtonLine{}
		dev := mcu.New(mcu.Options{
			Port:       cfg.Hardware.SerialPort,
			BaudRate:   cfg.Hardware.BaudRate,
			StaleAfter: cfg.Hardware.StaleAfter,
			Profile:    profile,
			StartStop:  startStop,
			Logger:     log.Named("mcu"),
		})
		if err := dev.Connect(); err != nil {
			return nil, err
		}
		return &hardware{
			sensor: dev,
			relay:  dev,
			input:  reflow.NewInputAdapter(profile, startStop, reflow.DefaultDebounceThreshold),
			close:  dev.Close,
		}, nil

	case config.DriverSim:
		oven := sim.NewOven(cfg.Sim)
		log.Infow("using simulated oven", "ambient", cfg.Sim.Ambient, "lag", cfg.Sim.Lag)
		return &hardware{
			sensor: oven,
			relay:  oven,
			close:  func() error { return oven.SetRelay(false) },
		}, nil
	}
	return nil, fmt.Errorf("unknown hardware driver %q", cfg.Hardware.Driver)
}
