package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reflow_oven/internal/display"
	"reflow_oven/internal/hardware/sim"
	"reflow_oven/internal/pid"
	"reflow_oven/internal/reflow"
)

var (
	simSolder   string
	simMax      time.Duration
	simQuiet    bool
	simStep     time.Duration
	simFaultAt  time.Duration
	simFaultLen int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a full profile against the oven model on a virtual clock",
	Long: `simulate runs one reflow cycle against the simulated oven without
waiting in real time. The probe check is confirmed automatically and a
stage timeline is printed at the end.`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simSolder, "solder", "leaded", "profile to run (leaded, lead-free)")
	f.DurationVar(&simMax, "max", 20*time.Minute, "give up after this much virtual time")
	f.BoolVarP(&simQuiet, "quiet", "q", false, "only print the timeline")
	f.DurationVar(&simStep, "step", reflow.DefaultTick, "virtual loop period")
	f.DurationVar(&simFaultAt, "fault-at", 0, "inject an open-circuit fault at this virtual time")
	f.IntVar(&simFaultLen, "fault-samples", 60, "number of faulted readings to inject")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	var solder reflow.SolderType
	switch simSolder {
	case "leaded":
	case "lead-free":
		solder = reflow.LeadFree
	default:
		return fmt.Errorf("unknown solder %q", simSolder)
	}
	if simStep <= 0 {
		return fmt.Errorf("step must be positive")
	}

	profiles, err := reflow.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		return err
	}

	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := sim.NewClock(start)
	oven := sim.NewOven(cfg.Sim, sim.WithClock(clk.Now))

	out := cmd.OutOrStdout()
	timeline := display.NewTimeline(clk.Now)
	sinks := display.Multi{timeline}
	if !simQuiet {
		console := display.NewConsole(out)
		console.Elapsed = func() time.Duration { return clk.Now().Sub(start) }
		sinks = append(sinks, console)
	}

	sched := reflow.NewScheduler(cfg.Loop.RenderPeriod)
	seq := reflow.NewSequencer(cfg.SequencerConfig(), profiles, pid.New(pid.WithClock(clk.Now)), oven, nil, log.Named("sequencer"))
	loop := reflow.NewLoop(seq, oven, &reflow.Mailbox{}, sched,
		reflow.WithClock(clk.Now),
		reflow.WithDisplay(sinks),
		reflow.WithLogger(log.Named("loop")),
	)

	if solder == reflow.LeadFree {
		loop.Mailbox().Post(reflow.EventSolderToggle)
	}
	loop.Mailbox().Post(reflow.EventStart)

	sinceRender := time.Duration(0)
	started, completed := false, false
	for elapsed := time.Duration(0); elapsed <= simMax; elapsed += simStep {
		if simFaultAt > 0 && elapsed == simFaultAt.Truncate(simStep) {
			oven.InjectFault(reflow.FaultOpenCircuit, simFaultLen)
		}

		st := loop.Tick()
		switch {
		case st.Stage == reflow.StageProbeCheck:
			loop.Mailbox().Post(reflow.EventConfirmProbe)
		case st.Stage == reflow.StageFault && st.Recovered:
			// the operator always chooses to carry on once the probe reads again
			loop.Mailbox().Post(reflow.EventResume)
		}
		if st.Stage.Running() {
			started = true
		}
		if st.Stage == reflow.StageComplete {
			completed = true
		}
		if started && st.Stage == reflow.StageIdle {
			break
		}

		clk.Advance(simStep)
		sinceRender += simStep
		if sinceRender >= sched.Period() {
			sched.Mark()
			sinceRender = 0
		}
	}
	seq.Shutdown(clk.Now())

	fmt.Fprintln(out)
	timeline.Write(out)
	fmt.Fprintf(out, "\nrelay switches: %d\n", oven.Switches())
	if st := seq.Stage(); st != reflow.StageIdle {
		return fmt.Errorf("run did not finish within %s (stage %s)", simMax, st)
	}
	if !completed {
		return fmt.Errorf("run ended without completing")
	}
	return nil
}
