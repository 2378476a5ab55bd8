package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/synteira/rflab/advantest"
	"github.com/synteira/rflab/prologix"
	"github.com/synteira/rflab/rigol"
	"github.com/synteira/rflab/testbench"
)

func need(name, addr string) error {
	if addr == "" {
		return fmt.Errorf("no address for the %s, set instruments.%s", name, strings.ToLower(name))
	}
	return nil
}

// interruptible returns a context cancelled by ^C
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// newPrologix opens the adapter at addr, a serial port or a host
func newPrologix(addr string, gpib int) (*prologix.Controller, error) {
	if err := need("Prologix", addr); err != nil {
		return nil, err
	}
	if strings.HasPrefix(addr, "/dev/") || strings.HasPrefix(strings.ToUpper(addr), "COM") {
		return prologix.NewSerial(addr, gpib), nil
	}
	return prologix.NewTCP(addr, gpib), nil
}

var idnCmd = &cobra.Command{
	Use:   "idn <addr>",
	Short: "identify a Rigol instrument by its *IDN? reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, id, err := rigol.Detect(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s serial %s firmware %s\n", id.Manufacturer, id.Model, id.Serial, id.Firmware)
		return nil
	},
}

func dsa815Cmd() *cobra.Command {
	var out string
	c := &cobra.Command{
		Use:   "dsa815",
		Short: "DSA815 spectrum analyzer",
	}
	trace := &cobra.Command{
		Use:   "trace",
		Short: "apply the analyzer settings and save one trace as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := need("DSA815", cfg.Instruments.DSA815); err != nil {
				return err
			}
			d, err := rigol.NewDSA815(cfg.Instruments.DSA815)
			if err != nil {
				return err
			}
			s, err := d.Apply(cfg.Analyzer)
			if err != nil {
				return err
			}
			log.Printf("center %.3f MHz span %.3f MHz RBW %g Hz VBW %g Hz sweep %.3f s",
				s.Center/1e6, s.Span/1e6, s.RBW, s.VBW, s.SweepTime)
			levels, err := d.Trace()
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return rigol.WriteTraceCSV(w, rigol.TraceFrequencies(s.Center, s.Span, len(levels)), levels)
		},
	}
	trace.Flags().StringVarP(&out, "out", "o", "", "CSV file to write, stdout when empty")
	c.AddCommand(trace)
	return c
}

func dg4102Cmd() *cobra.Command {
	var (
		ch int
		w  = rigol.Waveform{Shape: "sine", Frequency: 1e6, Amplitude: 1}
	)
	c := &cobra.Command{
		Use:   "dg4102",
		Short: "DG4102 function generator",
	}
	c.PersistentFlags().IntVar(&ch, "ch", 1, "output channel")
	apply := &cobra.Command{
		Use:   "apply",
		Short: "program a waveform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := need("DG4102", cfg.Instruments.DG4102); err != nil {
				return err
			}
			g, err := rigol.NewDG4102(cfg.Instruments.DG4102)
			if err != nil {
				return err
			}
			return g.Apply(ch, w)
		},
	}
	apply.Flags().StringVar(&w.Shape, "shape", w.Shape, "sine, square, ramp or pulse")
	apply.Flags().Float64Var(&w.Frequency, "freq", w.Frequency, "frequency, Hz")
	apply.Flags().Float64Var(&w.Amplitude, "amp", w.Amplitude, "amplitude, Vpp")
	apply.Flags().Float64Var(&w.Offset, "offset", w.Offset, "DC offset, V")
	apply.Flags().Float64Var(&w.Phase, "phase", w.Phase, "start phase, degrees")
	output := &cobra.Command{
		Use:       "output on|off",
		Short:     "switch an output",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := need("DG4102", cfg.Instruments.DG4102); err != nil {
				return err
			}
			g, err := rigol.NewDG4102(cfg.Instruments.DG4102)
			if err != nil {
				return err
			}
			return g.SetOutput(ch, args[0] == "on")
		},
	}
	c.AddCommand(apply, output)
	return c
}

func dp832Cmd() *cobra.Command {
	var (
		ch          int
		volts, amps float64
		on          bool
		interval    time.Duration
	)
	c := &cobra.Command{
		Use:   "dp832",
		Short: "DP832 power supply",
	}
	open := func() (*rigol.DP832, error) {
		if err := need("DP832", cfg.Instruments.DP832); err != nil {
			return nil, err
		}
		return rigol.NewDP832(cfg.Instruments.DP832)
	}
	set := &cobra.Command{
		Use:   "set",
		Short: "program a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			return p.Set(ch, volts, amps, on)
		},
	}
	set.Flags().IntVar(&ch, "ch", 1, "output channel")
	set.Flags().Float64Var(&volts, "volts", 3.3, "voltage, V")
	set.Flags().Float64Var(&amps, "amps", 0.1, "current limit, A")
	set.Flags().BoolVar(&on, "on", false, "switch the output on")
	read := &cobra.Command{
		Use:   "read",
		Short: "measure every channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			rs, err := p.ReadAll()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rigol.FormatReadings(rs))
			return nil
		},
	}
	monitor := &cobra.Command{
		Use:   "monitor",
		Short: "measure every channel until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			ctx, cancel := interruptible()
			defer cancel()
			w := cmd.OutOrStdout()
			err = p.Monitor(ctx, interval, func(rs []rigol.Reading) {
				fmt.Fprintf(w, "%s  %s\n", time.Now().Format("15:04:05"), rigol.FormatReadings(rs))
			})
			if uerr := p.Unlock(); err == nil {
				err = uerr
			}
			return err
		},
	}
	monitor.Flags().DurationVar(&interval, "interval", rigol.DefaultMonitorInterval, "time between readings")
	c.AddCommand(set, read, monitor)
	return c
}

func dho924Cmd() *cobra.Command {
	var (
		dir, format string
		crop        bool
	)
	c := &cobra.Command{
		Use:   "dho924",
		Short: "DHO924 oscilloscope",
	}
	shot := &cobra.Command{
		Use:   "screenshot",
		Short: "save the display under the next free RigolDS<n> name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := need("DHO924", cfg.Instruments.DHO924); err != nil {
				return err
			}
			o, err := rigol.NewDHO924(cfg.Instruments.DHO924)
			if err != nil {
				return err
			}
			path, err := o.SaveScreenshot(dir, format, crop)
			if err != nil {
				return err
			}
			log.Printf("screenshot saved to %s", path)
			return nil
		},
	}
	shot.Flags().StringVar(&dir, "dir", ".", "directory of the screenshots")
	shot.Flags().StringVar(&format, "format", "png", "png, bmp or jpg")
	shot.Flags().BoolVar(&crop, "crop", false, "cut the menus away")
	for _, s := range []struct {
		name, short string
		fn          func(*rigol.DHO924) error
	}{
		{"run", "start continuous acquisition", (*rigol.DHO924).Run},
		{"stop", "freeze the display", (*rigol.DHO924).Stop},
		{"single", "arm a single trigger", (*rigol.DHO924).Single},
	} {
		fn := s.fn
		c.AddCommand(&cobra.Command{
			Use:   s.name,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := need("DHO924", cfg.Instruments.DHO924); err != nil {
					return err
				}
				o, err := rigol.NewDHO924(cfg.Instruments.DHO924)
				if err != nil {
					return err
				}
				return fn(o)
			},
		})
	}
	c.AddCommand(shot)
	return c
}

// openR3271 sets up the analyzer behind the Prologix adapter
func openR3271() (*advantest.R3271, error) {
	ctl, err := newPrologix(cfg.Instruments.Prologix, cfg.Instruments.R3271)
	if err != nil {
		return nil, err
	}
	r := advantest.NewR3271(ctl)
	id, err := r.Setup()
	if err != nil {
		return nil, err
	}
	log.Printf("R3271 type %s revision %s", id.Type, id.Revision)
	return r, nil
}

func r3271Cmd() *cobra.Command {
	var out string
	c := &cobra.Command{
		Use:   "r3271",
		Short: "Advantest R3271 spectrum analyzer over GPIB",
	}
	trace := &cobra.Command{
		Use:   "trace",
		Short: "take a sweep and save traces A and B as text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openR3271()
			if err != nil {
				return err
			}
			defer func() {
				if rerr := r.Release(); err == nil {
					err = rerr
				}
			}()
			s, err := r.Spectrum()
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			fmt.Fprintln(w, "Frequency [MHz]\tA [dBm]\tB [dBm]")
			for k, f := range s.Freq {
				if _, err = fmt.Fprintf(w, "%.6f\t%.2f\t%.2f\n", f/1e6, s.A[k], s.B[k]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	trace.Flags().StringVarP(&out, "out", "o", "", "file to write, stdout when empty")
	c.AddCommand(trace)
	return c
}

var vcoCmd = &cobra.Command{
	Use:   "vco",
	Short: "characterize voltage controlled oscillators",
}

var vcoRunCmd = &cobra.Command{
	Use:   "run",
	Short: "sweep the DUT tuning voltage at every supply voltage of the bench config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		for _, inst := range []struct{ name, addr string }{
			{"DG4102", cfg.Instruments.DG4102},
			{"DP832", cfg.Instruments.DP832},
		} {
			if err = need(inst.name, inst.addr); err != nil {
				return err
			}
		}
		gen, err := rigol.NewDG4102(cfg.Instruments.DG4102)
		if err != nil {
			return err
		}
		sup, err := rigol.NewDP832(cfg.Instruments.DP832)
		if err != nil {
			return err
		}
		an, err := openR3271()
		if err != nil {
			return err
		}
		defer func() {
			if rerr := an.Release(); err == nil {
				err = rerr
			}
		}()
		ctx, cancel := interruptible()
		defer cancel()
		b := testbench.Bench{Gen: gen, Supply: sup, Analyzer: an, Config: cfg.Bench, Log: log.Default()}
		paths, err := b.Run(ctx)
		for _, p := range paths {
			log.Printf("sweep written to %s", p)
		}
		return err
	},
}

func init() {
	vcoCmd.AddCommand(vcoRunCmd)
	rootCmd.AddCommand(idnCmd, dsa815Cmd(), dg4102Cmd(), dp832Cmd(), dho924Cmd(), r3271Cmd(), vcoCmd)
}
