// Package fetch downloads the documents a web page links to, such as the
// datasheets or application notes listed on a vendor page.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cavaliercoder/grab"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultWorkers is the number of concurrent downloads
const DefaultWorkers = 3

// Links returns the targets of the anchors in the page read from r whose
// path ends in suffix, resolved against base, without duplicates and in
// page order.  The suffix comparison ignores case.
func Links(r io.Reader, base *url.URL, suffix string) ([]*url.URL, error) {
	suffix = strings.ToLower(suffix)
	seen := make(map[string]bool)
	var out []*url.URL
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return out, nil
			}
			return out, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.A {
				continue
			}
			for _, a := range tok.Attr {
				if a.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(a.Val))
				if err != nil {
					continue
				}
				u := base.ResolveReference(ref)
				if !strings.HasSuffix(strings.ToLower(u.Path), suffix) || seen[u.String()] {
					continue
				}
				seen[u.String()] = true
				out = append(out, u)
			}
		}
	}
}

// Page fetches pageURL and returns its links ending in suffix
func Page(ctx context.Context, client *http.Client, pageURL, suffix string) ([]*url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", pageURL, resp.Status)
	}
	return Links(resp.Body, base, suffix)
}

// Result is the outcome of one download
type Result struct {
	URL      string
	Filename string
	Bytes    int64
	Err      error
}

// Downloader saves files into a directory
type Downloader struct {
	// Dir receives the files, named after the last element of their URL path
	Dir string

	// Workers bounds the concurrent downloads, DefaultWorkers when zero
	Workers int

	// UserAgent is sent with every request when not empty
	UserAgent string

	// Progress is called with the number of finished downloads as they finish
	Progress func(done, total int)
}

// Download fetches every URL and waits for all of them.  The results are in
// the order the downloads finished; a failed download does not stop the
// others.
func (d *Downloader) Download(urls []*url.URL) ([]Result, error) {
	client := grab.NewClient()
	if d.UserAgent != "" {
		client.UserAgent = d.UserAgent
	}
	reqs := make([]*grab.Request, 0, len(urls))
	for _, u := range urls {
		req, err := grab.NewRequest(u.String())
		if err != nil {
			return nil, err
		}
		req.Filename = filepath.Join(d.Dir, path.Base(u.Path))
		reqs = append(reqs, req)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	workers := d.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	respch := client.DoBatch(workers, reqs...)

	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	var (
		pending []*grab.Response
		out     []Result
	)
	for len(out) < len(reqs) {
		select {
		case resp, ok := <-respch:
			if !ok {
				respch = nil // closed, stop selecting on it
				continue
			}
			if resp != nil {
				pending = append(pending, resp)
			}
		case <-t.C:
		}
		kept := pending[:0]
		for _, resp := range pending {
			if !resp.IsComplete() {
				kept = append(kept, resp)
				continue
			}
			out = append(out, Result{
				URL:      resp.Request.URL().String(),
				Filename: resp.Filename,
				Bytes:    int64(resp.BytesTransferred()),
				Err:      resp.Error})
			if d.Progress != nil {
				d.Progress(len(out), len(reqs))
			}
		}
		pending = kept
	}
	return out, nil
}
