package main

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synteira/rflab/bom"
	"github.com/synteira/rflab/imgcrop"
	"github.com/synteira/rflab/netlist"
	"github.com/synteira/rflab/touchstone"
)

var bomCmd = &cobra.Command{
	Use:   "bom",
	Short: "convert Altium bills of materials",
}

var bomBPICmd = &cobra.Command{
	Use:   "bpi <bom.txt>...",
	Short: "write the purchase list of each BOM beside it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			out, err := bom.ConvertBPI(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			log.Printf("%s -> %s", path, out)
		}
		return nil
	},
}

var bomLOCCmd = &cobra.Command{
	Use:   "loc <bom.txt>...",
	Short: "write the list of components of each BOM beside it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			out, err := bom.ConvertLOC(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			log.Printf("%s -> %s", path, out)
		}
		return nil
	},
}

func netlistCmd() *cobra.Command {
	var (
		part, prefix, out     string
		keepPower, keepPassiv bool
	)
	c := &cobra.Command{
		Use:   "netlist <wirelist.net>",
		Short: "generate the GPIO #defines of a microcontroller from a netlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wl, err := netlist.ParseFile(args[0])
			if err != nil {
				return err
			}
			pins := wl.Part(part)
			if len(pins) == 0 {
				return fmt.Errorf("%s has no pins of part %s", args[0], part)
			}
			f := netlist.Filter{KeepPower: keepPower, KeepPassive: keepPassiv}
			defs, skipped := netlist.Defines(f.Apply(pins), prefix)
			for _, s := range skipped {
				log.Printf("pin %s (%s) on net %q is not a GPIO, skipped", s.Number, s.Name, s.Net)
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				fh, err := os.Create(out)
				if err != nil {
					return err
				}
				defer fh.Close()
				w = fh
			}
			return netlist.WriteHeader(w, defs)
		},
	}
	c.Flags().StringVar(&part, "part", "U1", "reference designator of the microcontroller")
	c.Flags().StringVar(&prefix, "prefix", netlist.DefaultNetPrefix, "prefix stripped from the net names")
	c.Flags().StringVarP(&out, "out", "o", "", "header file to write, stdout when empty")
	c.Flags().BoolVar(&keepPower, "keep-power", false, "keep POWER pins")
	c.Flags().BoolVar(&keepPassiv, "keep-passive", false, "keep PASSIVE pins")
	return c
}

// parseParam turns "21" into (2, 1)
func parseParam(s string) (int, int, error) {
	if len(s) != 2 {
		return 0, 0, fmt.Errorf("parameter %q, expected two port digits such as 21", s)
	}
	i, erri := strconv.Atoi(s[:1])
	j, errj := strconv.Atoi(s[1:])
	if erri != nil || errj != nil {
		return 0, 0, fmt.Errorf("parameter %q, expected two port digits such as 21", s)
	}
	return i, j, nil
}

// readTrace reads one parameter of a Touchstone file, or of a legacy export
// when skip is positive
func readTrace(path, param string, skip int) (touchstone.Trace, error) {
	i, j, err := parseParam(param)
	if err != nil {
		return touchstone.Trace{}, err
	}
	var n *touchstone.Network
	if skip > 0 {
		f, err := os.Open(path)
		if err != nil {
			return touchstone.Trace{}, err
		}
		defer f.Close()
		n, err = touchstone.ReadLegacy(f, skip)
		if err != nil {
			return touchstone.Trace{}, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		n, err = touchstone.ReadFile(path)
		if err != nil {
			return touchstone.Trace{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	return n.Trace(i, j)
}

func printTrace(w io.Writer, t touchstone.Trace) error {
	bw := bufio.NewWriter(w)
	db, ph := t.DB(), t.Phase()
	fmt.Fprintln(bw, "Frequency [MHz]\tMagnitude [dB]\tPhase [deg]")
	for k, f := range t.Freq {
		fmt.Fprintf(bw, "%.6f\t%.3f\t%.2f\n", f/1e6, db[k], ph[k])
	}
	return bw.Flush()
}

func touchstoneCmd() *cobra.Command {
	var (
		param  string
		skip   int
		arinst bool
	)
	c := &cobra.Command{
		Use:   "touchstone",
		Short: "read network analyzer files",
	}
	show := &cobra.Command{
		Use:   "show <file>",
		Short: "print one parameter in dB and degrees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				t   touchstone.Trace
				err error
			)
			if arinst {
				t, err = touchstone.ReadArinstFile(args[0])
			} else {
				t, err = readTrace(args[0], param, skip)
			}
			if err != nil {
				return err
			}
			return printTrace(cmd.OutOrStdout(), t)
		},
	}
	phase := &cobra.Command{
		Use:   "phase <a> <b>",
		Short: "print the phase of a minus the phase of b",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ts [2]touchstone.Trace
			for k, path := range args {
				var err error
				if arinst {
					ts[k], err = touchstone.ReadArinstFile(path)
				} else {
					ts[k], err = readTrace(path, param, skip)
				}
				if err != nil {
					return err
				}
			}
			d, err := touchstone.PhaseDelta(ts[0].Phase(), ts[1].Phase())
			if err != nil {
				return err
			}
			bw := bufio.NewWriter(cmd.OutOrStdout())
			fmt.Fprintln(bw, "Frequency [MHz]\tPhase delta [deg]")
			for k, f := range ts[0].Freq {
				fmt.Fprintf(bw, "%.6f\t%.2f\n", f/1e6, d[k])
			}
			return bw.Flush()
		},
	}
	c.PersistentFlags().StringVarP(&param, "param", "p", "21", "parameter to read, e.g. 11 or 21")
	c.PersistentFlags().IntVar(&skip, "legacy", 0, fmt.Sprintf("read a legacy two port export, skipping this many lines (usually %d)", touchstone.LegacySkipLines))
	c.PersistentFlags().BoolVar(&arinst, "arinst", false, "read Arinst VNA CSV exports")
	c.AddCommand(show, phase)
	return c
}

var vcoShowCmd = &cobra.Command{
	Use:   "show <log>...",
	Short: "summarize VCO sweep logs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, path := range args {
			s, err := touchstone.ReadVCOFile(path)
			if err != nil {
				return err
			}
			lo, hi := s.TuningRange()
			_, pmax := touchstone.Peak(s.Powers())
			fmt.Fprintf(w, "%s\n  %d points, %.3f to %.3f MHz, peak power %.2f dBm\n", path, len(s), lo/1e6, hi/1e6, pmax)
			sens := s.Sensitivity()
			for k, kv := range sens {
				fmt.Fprintf(w, "  %5.2f V  %10.3f MHz  %8.2f MHz/V\n", s[k].Vctl, s[k].Freq/1e6, kv/1e6)
			}
		}
		return nil
	},
}

// parseBox reads x0,y0,x1,y1
func parseBox(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("crop box %q, expected x0,y0,x1,y1", s)
	}
	var v [4]int
	for k, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("crop box %q: %w", s, err)
		}
		v[k] = n
	}
	return image.Rect(v[0], v[1], v[2], v[3]), nil
}

func cropCmd() *cobra.Command {
	var ext, box string
	c := &cobra.Command{
		Use:   "crop <dir>",
		Short: "crop every screenshot in a directory in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseBox(box)
			if err != nil {
				return err
			}
			files, err := imgcrop.Scan(args[0], ext)
			if err != nil {
				return err
			}
			for _, f := range files {
				if err = imgcrop.File(f, r); err != nil {
					return err
				}
				log.Printf("cropped %s", f)
			}
			log.Printf("%d files cropped", len(files))
			return nil
		},
	}
	b := imgcrop.ScreenBox
	c.Flags().StringVar(&ext, "ext", "png", "extension of the files to crop")
	c.Flags().StringVar(&box, "box", fmt.Sprintf("%d,%d,%d,%d", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y), "crop box x0,y0,x1,y1")
	return c
}

func init() {
	bomCmd.AddCommand(bomBPICmd, bomLOCCmd)
	vcoCmd.AddCommand(vcoShowCmd)
	rootCmd.AddCommand(bomCmd, netlistCmd(), touchstoneCmd(), cropCmd())
}
