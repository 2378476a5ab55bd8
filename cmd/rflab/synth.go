package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synteira/rflab/analogdevices"
	"github.com/synteira/rflab/comm"
	"github.com/synteira/rflab/generichttp/pll"
	"github.com/synteira/rflab/maxim"
	"github.com/synteira/rflab/synth"
)

// output is where a calculation goes besides the report
type output struct {
	hex   string
	patch bool
	load  bool
	json  bool
}

func (o *output) flags(c *cobra.Command) {
	c.Flags().StringVar(&o.hex, "hex", "", "write the registers to this file, one 0x word per line")
	c.Flags().BoolVar(&o.patch, "patch", false, "rewrite the register writes of the firmware source")
	c.Flags().BoolVar(&o.load, "load", false, "program the part through the loader bridge")
	c.Flags().BoolVar(&o.json, "json", false, "print the result as JSON instead of a report")
}

func (o *output) emit(cmd *cobra.Command, r *synth.Report, counters interface{}, out float64, b synth.Bank) error {
	w := cmd.OutOrStdout()
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pll.Result{Counters: counters, Output: out, Registers: b.Strings()}); err != nil {
			return err
		}
	} else {
		r.Registers(b)
		if err := r.Print(w); err != nil {
			return err
		}
	}
	if o.hex != "" {
		f, err := os.Create(o.hex)
		if err != nil {
			return err
		}
		if err = synth.WriteHex(f, b); err != nil {
			f.Close()
			return err
		}
		if err = f.Close(); err != nil {
			return err
		}
		log.Printf("registers written to %s", o.hex)
	}
	if o.patch {
		n, err := synth.PatchFile(cfg.Firmware, b)
		if err != nil {
			return err
		}
		log.Printf("%d register writes patched in %s", n, cfg.Firmware)
	}
	if o.load {
		return load(b)
	}
	return nil
}

// load sends b to the loader bridge.  A port holding a colon is a TCP
// host:port, anything else a serial port.
func load(b synth.Bank) error {
	port := cfg.Loader.Port
	if port == "" {
		return errors.New("no loader port configured, set loader.port")
	}
	isSerial := !strings.Contains(port, ":")
	rd := comm.NewRemoteDevice(port, isSerial, &comm.Terminators{Rx: '\n', Tx: '\n'},
		synth.LoaderSerialConf(port, cfg.Loader.Baud))
	if err := rd.Open(); err != nil {
		return err
	}
	defer rd.Close()
	l := synth.Loader{Conn: rd.Conn, Echo: cfg.Loader.Echo}
	replies, err := l.Load(b)
	for _, r := range replies {
		log.Println(r)
	}
	if err == nil {
		log.Printf("%d registers loaded through %s", len(b), port)
	}
	return err
}

// readDump reads a register dump written by --hex
func readDump(path string) (synth.Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := synth.ReadHex(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%s holds no registers", path)
	}
	return b, nil
}

func loadDumpCmd() *cobra.Command {
	var patch bool
	c := &cobra.Command{
		Use:   "load <dump.txt>",
		Short: "send a register dump made with --hex to the loader bridge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readDump(args[0])
			if err != nil {
				return err
			}
			if patch {
				n, err := synth.PatchFile(cfg.Firmware, b)
				if err != nil {
					return err
				}
				log.Printf("%d register writes patched in %s", n, cfg.Firmware)
			}
			return load(b)
		},
	}
	c.Flags().BoolVar(&patch, "patch", false, "also rewrite the register writes of the firmware source")
	return c
}

// options fills o from the synth.<part> section of the configuration.  The
// keys are the option field names in lower case.
func options(part string, o interface{}) error {
	return k.Unmarshal("synth."+part, o)
}

func mhz(f float64) string {
	return fmt.Sprintf("%.6f MHz", f/1e6)
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "compute synthesizer divider counters and register words",
	Long: `synth computes the counters and registers of a PLL synthesizer.

The settings other than the frequencies come from the synth.<part> section
of the configuration, e.g.

  synth:
    adf4350:
      muxout: digital_lock_detect
      rfpower: 5

The registers can be written to a hex file (--hex), patched into the
firmware source (--patch) or sent to the loader bridge (--load).  A hex
file is sent again later with synth load.`,
}

func adf4360Cmd() *cobra.Command {
	var (
		fout, fref, fstep float64
		o                 output
	)
	c := &cobra.Command{
		Use:   "adf4360",
		Short: "ADF4360-7 integer-N synthesizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := analogdevices.DefaultADF4360Options()
			if err := options("adf4360", &opts); err != nil {
				return err
			}
			c, err := analogdevices.ADF4360Calc(fout, fref, fstep)
			if err != nil {
				return err
			}
			b, err := analogdevices.ADF4360Registers(c, opts)
			if err != nil {
				return err
			}
			r := &synth.Report{Title: "ADF4360-7"}
			r.Section("Given")
			r.Addf("Output    = %s", mhz(fout))
			r.Addf("Reference = %s", mhz(fref))
			r.Addf("Step      = %s", mhz(fstep))
			r.Section("Counters")
			r.Addf("Prescaler = %d/%d", c.Prescaler, c.Prescaler+1)
			r.Addf("R = %d  N = %d  B = %d  A = %d", c.R, c.N, c.B, c.A)
			r.Addf("Band select divider = %d", c.BandSelectDiv)
			r.Addf("Output    = %s", mhz(c.Output()))
			return o.emit(cmd, r, c, c.Output(), b)
		},
	}
	c.Flags().Float64Var(&fout, "out", 646e6, "output frequency, Hz")
	c.Flags().Float64Var(&fref, "ref", 40e6, "reference frequency, Hz")
	c.Flags().Float64Var(&fstep, "step", 5e6, "channel step, Hz")
	o.flags(c)
	return c
}

func adf4350Cmd() *cobra.Command {
	var (
		fout, fref, fstep float64
		mode              string
		o                 output
	)
	c := &cobra.Command{
		Use:   "adf4350",
		Short: "ADF4350 fractional-N synthesizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := analogdevices.DefaultADF4350Options()
			if err := options("adf4350", &opts); err != nil {
				return err
			}
			m, err := analogdevices.ParseMode(mode)
			if err != nil {
				return err
			}
			c, err := analogdevices.ADF4350Calc(fout, fref, fstep, m)
			if err != nil {
				return err
			}
			b, err := analogdevices.ADF4350Registers(c, opts)
			if err != nil {
				return err
			}
			r := &synth.Report{Title: "ADF4350"}
			r.Section("Given")
			r.Addf("Output    = %s", mhz(fout))
			r.Addf("Reference = %s", mhz(fref))
			r.Addf("Step      = %s", mhz(fstep))
			r.Section("Counters")
			r.Addf("Prescaler = %d/%d  doubler = %t  R = %d  R/2 = %t", c.Prescaler, c.Prescaler+1, c.Doubler, c.R, c.RDiv2)
			r.Addf("INT = %d  FRAC = %d  MOD = %d  output divider = %d", c.INT, c.FRAC, c.MOD, c.OutDiv)
			r.Addf("VCO = %s  PFD = %s", mhz(c.VCO), mhz(c.PFD))
			r.Addf("Resolution = %.3f kHz", c.Resolution/1e3)
			r.Addf("Output     = %s", mhz(c.Output()))
			return o.emit(cmd, r, c, c.Output(), b)
		},
	}
	c.Flags().Float64Var(&fout, "out", 335e6, "output frequency, Hz")
	c.Flags().Float64Var(&fref, "ref", 40e6, "reference frequency, Hz")
	c.Flags().Float64Var(&fstep, "step", 200e3, "channel step, Hz")
	c.Flags().StringVar(&mode, "mode", "auto", "auto, integer or fractional")
	o.flags(c)
	return c
}

func adf4106Cmd() *cobra.Command {
	var (
		fvco, fref, fpfd float64
		o                output
	)
	c := &cobra.Command{
		Use:   "adf4106",
		Short: "ADF4106 integer-N PLL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := analogdevices.DefaultADF4106Options()
			if err := options("adf4106", &opts); err != nil {
				return err
			}
			c, err := analogdevices.ADF4106Calc(fvco, fref, fpfd)
			if err != nil {
				return err
			}
			b, err := analogdevices.ADF4106Registers(c, opts)
			if err != nil {
				return err
			}
			r := &synth.Report{Title: "ADF4106"}
			r.Section("Given")
			r.Addf("VCO       = %s", mhz(fvco))
			r.Addf("Reference = %s", mhz(fref))
			r.Addf("PFD       = %s", mhz(fpfd))
			r.Section("Counters")
			r.Addf("Prescaler = %d/%d", c.Prescaler, c.Prescaler+1)
			r.Addf("R = %d  N = %d  B = %d  A = %d", c.R, c.N, c.B, c.A)
			r.Addf("VCO       = %s", mhz(c.Output()))
			return o.emit(cmd, r, c, c.Output(), b)
		},
	}
	c.Flags().Float64Var(&fvco, "vco", 630e6, "VCO frequency, Hz")
	c.Flags().Float64Var(&fref, "ref", 40e6, "reference frequency, Hz")
	c.Flags().Float64Var(&fpfd, "pfd", 10e6, "phase detector frequency, Hz")
	o.flags(c)
	return c
}

func adf4159Cmd() *cobra.Command {
	var (
		ramp = analogdevices.DefaultADF4159Ramp()
		o    output
	)
	c := &cobra.Command{
		Use:   "adf4159",
		Short: "ADF4159 FMCW ramp synthesizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := analogdevices.DefaultADF4159Options()
			if err := options("adf4159", &opts); err != nil {
				return err
			}
			c, err := analogdevices.ADF4159Calc(ramp)
			if err != nil {
				return err
			}
			b, err := analogdevices.ADF4159Registers(c, opts)
			if err != nil {
				return err
			}
			r := &synth.Report{Title: "ADF4159"}
			r.Section("Given")
			r.Addf("VCO       = %s", mhz(ramp.VCO))
			r.Addf("Reference = %s", mhz(ramp.Ref))
			r.Addf("Deviation = %s in %.3f ms, %d steps", mhz(ramp.Deviation), ramp.RampTime*1e3, ramp.Steps)
			r.Section("Counters")
			r.Addf("Prescaler = %d/%d  doubler = %t  R = %d  R/2 = %t", c.Prescaler, c.Prescaler+1, c.Doubler, c.R, c.RDiv2)
			r.Addf("INT = %d  FRAC = %d  PFD = %s", c.INT, c.FRAC, mhz(c.PFD))
			r.Addf("DEV = %d  DEV_OFFSET = %d  CLK1 = %d  CLK2 = %d  steps = %d", c.Dev, c.DevOffset, c.CLK1, c.CLK2, c.Steps)
			r.Addf("Bleed current code = %d", c.Bleed)
			r.Section("Ramp")
			r.Addf("Step deviation = %.3f kHz", c.StepDeviation/1e3)
			r.Addf("Deviation      = %s", mhz(c.RampDeviation))
			r.Addf("Step time      = %.3f us", c.StepTime*1e6)
			r.Addf("Ramp time      = %.3f ms", c.RampTime*1e3)
			return o.emit(cmd, r, c, c.Output(), b)
		},
	}
	c.Flags().Float64Var(&ramp.VCO, "vco", ramp.VCO, "ramp start frequency, Hz")
	c.Flags().Float64Var(&ramp.Ref, "ref", ramp.Ref, "reference frequency, Hz")
	c.Flags().Float64Var(&ramp.Deviation, "deviation", ramp.Deviation, "deviation of one slope, Hz")
	c.Flags().Float64Var(&ramp.RampTime, "time", ramp.RampTime, "duration of one slope, s")
	c.Flags().IntVar(&ramp.Steps, "steps", ramp.Steps, "frequency steps per slope")
	c.Flags().IntVar(&ramp.CLK2, "clk2", ramp.CLK2, "second clock divider")
	c.Flags().BoolVar(&ramp.Doubler, "doubler", ramp.Doubler, "use the reference doubler")
	c.Flags().IntVar(&ramp.R, "r", ramp.R, "reference divider")
	c.Flags().BoolVar(&ramp.RDiv2, "rdiv2", ramp.RDiv2, "use the reference divide by 2")
	c.Flags().BoolVar(&ramp.Triangular, "triangular", ramp.Triangular, "triangular instead of sawtooth ramp")
	o.flags(c)
	return c
}

func adrf6850Cmd() *cobra.Command {
	var (
		flo, fref float64
		doubler   bool
		rdiv      int
		rdiv2     bool
		o         output
	)
	c := &cobra.Command{
		Use:   "adrf6850",
		Short: "ADRF6850 demodulator synthesizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := analogdevices.DefaultADRF6850Options()
			if err := options("adrf6850", &opts); err != nil {
				return err
			}
			c, err := analogdevices.ADRF6850Calc(flo, fref, doubler, rdiv, rdiv2)
			if err != nil {
				return err
			}
			b, err := analogdevices.ADRF6850Registers(c, opts)
			if err != nil {
				return err
			}
			r := &synth.Report{Title: "ADRF6850"}
			r.Section("Given")
			r.Addf("LO        = %s", mhz(flo))
			r.Addf("Reference = %s", mhz(fref))
			r.Section("Counters")
			r.Addf("Doubler = %t  R = %d  R/2 = %t  PFD = %s", c.Doubler, c.R, c.RDiv2, mhz(c.PFD))
			r.Addf("INT = %d  FRAC = %d  RFDIV = %d", c.INT, c.FRAC, c.RFDiv)
			r.Addf("Band clock = %d", c.BandClock)
			r.Addf("LO        = %s", mhz(c.Output()))
			return o.emit(cmd, r, c, c.Output(), b)
		},
	}
	c.Flags().Float64Var(&flo, "lo", 420e6, "LO frequency, Hz")
	c.Flags().Float64Var(&fref, "ref", 20e6, "reference frequency, Hz")
	c.Flags().BoolVar(&doubler, "doubler", true, "use the reference doubler")
	c.Flags().IntVar(&rdiv, "r", 1, "reference divider, 1..31")
	c.Flags().BoolVar(&rdiv2, "rdiv2", false, "use the reference divide by 2")
	o.flags(c)
	return c
}

func max2828Cmd() *cobra.Command {
	var (
		frf, fref float64
		sweep     bool
		o         output
	)
	c := &cobra.Command{
		Use:   "max2828",
		Short: "MAX2828 5 GHz transceiver synthesizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sweep {
				w := cmd.OutOrStdout()
				for _, band := range maxim.MAX2828Bands {
					cs, err := maxim.MAX2828Sweep(band, fref)
					if err != nil {
						return err
					}
					for _, c := range cs {
						b := maxim.MAX2828Registers(c)
						fmt.Fprintf(w, "%7.1f MHz  INT=%3d MSB=0x%04X LSB=%d  %s\n", c.RF/1e6, c.INT, c.MSB, c.LSB, strings.Join(b.Strings(), " "))
					}
				}
				return nil
			}
			c, err := maxim.MAX2828Calc(frf, fref)
			if err != nil {
				return err
			}
			r := &synth.Report{Title: "MAX2828"}
			r.Section("Given")
			r.Addf("RF        = %s", mhz(frf))
			r.Addf("Reference = %s", mhz(fref))
			r.Section("Counters")
			r.Addf("R = %d  PFD = %s", c.R, mhz(c.PFD))
			r.Addf("INT = %d  FRAC = %d  MSB = 0x%04X  LSB = %d", c.INT, c.FRAC, c.MSB, c.LSB)
			r.Addf("RF        = %s", mhz(c.Output()))
			return o.emit(cmd, r, c, c.Output(), maxim.MAX2828Registers(c))
		},
	}
	c.Flags().Float64Var(&frf, "rf", 5180e6, "RF frequency, Hz")
	c.Flags().Float64Var(&fref, "ref", 20e6, "reference frequency, Hz")
	c.Flags().BoolVar(&sweep, "sweep", false, "print the registers of every 802.11a channel")
	o.flags(c)
	return c
}

func max2831Cmd() *cobra.Command {
	var (
		frf, fref float64
		rdiv      int
		sweep     bool
		o         output
	)
	c := &cobra.Command{
		Use:   "max2831",
		Short: "MAX2831 2.4 GHz transceiver synthesizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sweep {
				cs, err := maxim.MAX2831Sweep(maxim.MAX2831Band, fref, rdiv)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, c := range cs {
					b := maxim.MAX2831Registers(c)
					fmt.Fprintf(w, "%6.0f MHz  INT=%3d MSB=0x%04X LSB=%2d  %s\n", c.RF/1e6, c.INT, c.MSB, c.LSB, strings.Join(b.Strings(), " "))
				}
				return nil
			}
			c, err := maxim.MAX2831Calc(frf, fref, rdiv)
			if err != nil {
				return err
			}
			r := &synth.Report{Title: "MAX2831"}
			r.Section("Given")
			r.Addf("RF        = %s", mhz(frf))
			r.Addf("Reference = %s", mhz(fref))
			r.Section("Counters")
			r.Addf("R = %d  PFD = %s", c.R, mhz(c.PFD))
			r.Addf("INT = %d  FRAC = %d  MSB = 0x%04X  LSB = %d", c.INT, c.FRAC, c.MSB, c.LSB)
			r.Addf("RF        = %s", mhz(c.Output()))
			return o.emit(cmd, r, c, c.Output(), maxim.MAX2831Registers(c))
		},
	}
	c.Flags().Float64Var(&frf, "rf", 2437e6, "RF frequency, Hz")
	c.Flags().Float64Var(&fref, "ref", 32e6, "reference frequency, Hz")
	c.Flags().IntVar(&rdiv, "r", 1, "reference divider")
	c.Flags().BoolVar(&sweep, "sweep", false, "print the registers of the characterization sweep")
	o.flags(c)
	return c
}

func init() {
	synthCmd.AddCommand(loadDumpCmd(), adf4106Cmd(), adf4159Cmd(), adf4350Cmd(), adf4360Cmd(),
		adrf6850Cmd(), max2828Cmd(), max2831Cmd())
	rootCmd.AddCommand(synthCmd)
}
