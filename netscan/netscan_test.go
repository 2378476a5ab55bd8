package netscan_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/synteira/rflab/netscan"
)

func TestHostsSkipsLocal(t *testing.T) {
	hosts, err := netscan.Hosts(net.ParseIP("192.168.20.5"), 3, 7)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, h := range hosts {
		got = append(got, h.String())
	}
	expected := []string{"192.168.20.3", "192.168.20.4", "192.168.20.6", "192.168.20.7"}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("hosts mismatch (-want +got):\n%s", diff)
	}
}

func TestHostsBadRange(t *testing.T) {
	for _, r := range [][2]int{{0, 10}, {10, 255}, {20, 10}} {
		if _, err := netscan.Hosts(net.ParseIP("10.0.21.57"), r[0], r[1]); err == nil {
			t.Errorf("expected %v to be rejected", r)
		}
	}
	if _, err := netscan.Hosts(net.ParseIP("::1"), 1, 2); err == nil {
		t.Error("expected an IPv6 address to be rejected")
	}
}

func TestResolveBoundedAndSorted(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	s := &netscan.Scanner{
		Lookups: 2,
		LookupAddr: func(ctx context.Context, addr string) ([]string, error) {
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			if addr == "10.0.21.9" {
				return nil, errors.New("no PTR record")
			}
			return []string{"dsa815-" + addr + ".lab."}, nil
		},
	}
	in := []netscan.Host{
		{IP: net.ParseIP("10.0.21.57")},
		{IP: net.ParseIP("10.0.21.9")},
		{IP: net.ParseIP("10.0.21.100")},
		{IP: net.ParseIP("10.0.21.10")},
	}
	got, err := s.Resolve(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, h := range got {
		names = append(names, h.IP.String()+"="+h.Name)
	}
	expected := []string{
		"10.0.21.9=",
		"10.0.21.10=dsa815-10.0.21.10.lab",
		"10.0.21.57=dsa815-10.0.21.57.lab",
		"10.0.21.100=dsa815-10.0.21.100.lab",
	}
	if diff := cmp.Diff(expected, names); diff != "" {
		t.Errorf("resolve mismatch (-want +got):\n%s", diff)
	}
	if maxSeen > 2 {
		t.Errorf("expected at most 2 concurrent lookups, saw %d", maxSeen)
	}
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &netscan.Scanner{LookupAddr: func(ctx context.Context, addr string) ([]string, error) {
		return nil, ctx.Err()
	}}
	if _, err := s.Resolve(ctx, []netscan.Host{{IP: net.ParseIP("10.0.0.1")}}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled got %v", err)
	}
}

func TestHostString(t *testing.T) {
	h := netscan.Host{IP: net.ParseIP("10.0.21.57").To4(), RTT: 1500 * time.Microsecond}
	expected := "10.0.21.57         1.5ms  ?"
	if h.String() != expected {
		t.Errorf("expected %q got %q", expected, h.String())
	}
}
