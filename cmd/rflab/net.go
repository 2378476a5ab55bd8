package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/spf13/cobra"
	"github.com/theckman/yacspin"

	"github.com/synteira/rflab/fetch"
	"github.com/synteira/rflab/generichttp"
	"github.com/synteira/rflab/generichttp/ascii"
	"github.com/synteira/rflab/generichttp/pll"
	"github.com/synteira/rflab/generichttp/supply"
	"github.com/synteira/rflab/netscan"
	"github.com/synteira/rflab/rigol"
)

func newSpinner(msg string) (*yacspin.Spinner, error) {
	return yacspin.New(yacspin.Config{
		Writer:            os.Stderr,
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		Message:           msg,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
}

// spin runs fn behind a spinner showing msg
func spin(msg string, fn func(sp *yacspin.Spinner) error) error {
	sp, err := newSpinner(msg)
	if err != nil {
		return err
	}
	if err = sp.Start(); err != nil {
		return err
	}
	if err = fn(sp); err != nil {
		sp.StopFail()
		return err
	}
	return sp.Stop()
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "ping the local /24 and list the hosts that answer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		local, err := netscan.LocalIPv4()
		if err != nil {
			return err
		}
		hosts, err := netscan.Hosts(local, cfg.Scan.First, cfg.Scan.Last)
		if err != nil {
			return err
		}
		ctx, cancel := interruptible()
		defer cancel()
		s := netscan.Scanner{Timeout: cfg.Scan.Timeout, Lookups: cfg.Scan.Lookups, Network: cfg.Scan.Network}
		var found []netscan.Host
		err = spin(fmt.Sprintf("pinging %d hosts around %s", len(hosts), local), func(*yacspin.Spinner) error {
			found, err = s.Scan(ctx, hosts)
			return err
		})
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		named := color.New(color.FgGreen)
		for _, h := range found {
			if h.Name != "" {
				named.Fprintln(w, h)
			} else {
				fmt.Fprintln(w, h)
			}
		}
		log.Printf("%d of %d hosts answered", len(found), len(hosts))
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <page-url>",
	Short: "download every document a page links to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := interruptible()
		defer cancel()
		links, err := fetch.Page(ctx, nil, args[0], cfg.Fetch.Suffix)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			log.Printf("%s links no %s files", args[0], cfg.Fetch.Suffix)
			return nil
		}
		if err = os.MkdirAll(cfg.Fetch.Dir, 0o755); err != nil {
			return err
		}
		var results []fetch.Result
		err = spin(fmt.Sprintf("downloading %d files", len(links)), func(sp *yacspin.Spinner) error {
			d := fetch.Downloader{
				Dir:       cfg.Fetch.Dir,
				Workers:   cfg.Fetch.Workers,
				UserAgent: cfg.Fetch.UserAgent,
				Progress: func(done, total int) {
					sp.Message(fmt.Sprintf("downloaded %d of %d", done, total))
				},
			}
			results, err = d.Download(links)
			return err
		})
		if err != nil {
			return err
		}
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				log.Printf("%s: %v", r.URL, r.Err)
				continue
			}
			log.Printf("%s -> %s (%d bytes)", r.URL, r.Filename, r.Bytes)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d downloads failed", failed, len(results))
		}
		return nil
	},
}

// buildMux mounts the calculators, and the supply when one is configured
func buildMux(c Config) (chi.Router, error) {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Mount("/synth", generichttp.Router(pll.NewHTTPCalculators()))
	if c.Instruments.DP832 != "" {
		p, err := rigol.NewDP832(c.Instruments.DP832)
		if err != nil {
			return nil, err
		}
		h := supply.NewHTTPSupply(p)
		ascii.InjectRawComm(h, p)
		root.Mount("/dp832", generichttp.Router(h))
	}
	return root, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the calculators and the bench supply over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mux, err := buildMux(cfg)
		if err != nil {
			return err
		}
		log.Println("now listening for requests at ", cfg.Addr)
		return http.ListenAndServe(cfg.Addr, mux)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd, fetchCmd, serveCmd)
}
