// Package netscan finds the instruments on a lab subnet.
//
// A /24 range is pinged in one round with go-fastping, every host that answers
// is looked up by reverse DNS on a small worker group, and the results are
// returned in address order.  Raw ICMP needs privileges, set Network to "udp"
// to use unprivileged datagram sockets where the kernel allows them.
package netscan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	fastping "github.com/tatsushid/go-fastping"
)

const (
	// DefaultTimeout is how long a round waits for replies
	DefaultTimeout = time.Second

	// DefaultLookups is the number of concurrent reverse lookups
	DefaultLookups = 16
)

// ErrNoIPv4 is generated when no interface has a usable IPv4 address
var ErrNoIPv4 = errors.New("no non-loopback IPv4 address")

// Host is a host that answered
type Host struct {
	IP   net.IP
	RTT  time.Duration
	Name string // empty when the reverse lookup fails
}

func (h Host) String() string {
	name := h.Name
	if name == "" {
		name = "?"
	}
	return fmt.Sprintf("%-15s %8s  %s", h.IP, h.RTT.Round(time.Microsecond), name)
}

// LocalIPv4 returns the first non-loopback IPv4 address of the machine
func LocalIPv4() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, ErrNoIPv4
}

// Hosts lists the addresses first through last of the /24 holding local,
// leaving out local itself
func Hosts(local net.IP, first, last int) ([]*net.IPAddr, error) {
	ip4 := local.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%s is not an IPv4 address", local)
	}
	if first < 1 || last > 254 || first > last {
		return nil, fmt.Errorf("host range %d-%d, expected 1 <= first <= last <= 254", first, last)
	}
	out := make([]*net.IPAddr, 0, last-first+1)
	for n := first; n <= last; n++ {
		if n == int(ip4[3]) {
			continue
		}
		out = append(out, &net.IPAddr{IP: net.IPv4(ip4[0], ip4[1], ip4[2], byte(n)).To4()})
	}
	return out, nil
}

// Scanner pings a list of hosts
type Scanner struct {
	// Timeout is the wait for replies, DefaultTimeout when zero
	Timeout time.Duration

	// Lookups bounds the concurrent reverse lookups, DefaultLookups when zero
	Lookups int

	// Network is "ip" for raw ICMP (the default) or "udp"
	Network string

	// LookupAddr resolves an address to names, net.DefaultResolver when nil
	LookupAddr func(ctx context.Context, addr string) ([]string, error)
}

// Scan pings hosts once, waits for every reply or the timeout, and then looks
// up the names of the hosts that answered.  A done ctx aborts the round.
func (s *Scanner) Scan(ctx context.Context, hosts []*net.IPAddr) ([]Host, error) {
	if len(hosts) == 0 {
		return nil, nil
	}
	p := fastping.NewPinger()
	p.MaxRTT = s.Timeout
	if p.MaxRTT == 0 {
		p.MaxRTT = DefaultTimeout
	}
	if s.Network != "" {
		if _, err := p.Network(s.Network); err != nil {
			return nil, err
		}
	}
	for _, h := range hosts {
		p.AddIPAddr(h)
	}

	var (
		mu    sync.Mutex
		found = make(map[string]Host)
	)
	p.OnRecv = func(addr *net.IPAddr, rtt time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := found[addr.String()]; !ok {
			found[addr.String()] = Host{IP: addr.IP, RTT: rtt}
		}
	}
	idle := make(chan struct{}, 1)
	p.OnIdle = func() {
		select {
		case idle <- struct{}{}:
		default:
		}
	}
	p.RunLoop()
	select {
	case <-ctx.Done():
		p.Stop()
		return nil, ctx.Err()
	case <-idle:
		p.Stop()
	case <-p.Done():
		if err := p.Err(); err != nil {
			return nil, err
		}
	}

	mu.Lock()
	out := make([]Host, 0, len(found))
	for _, h := range found {
		out = append(out, h)
	}
	mu.Unlock()
	return s.Resolve(ctx, out)
}

// Resolve fills in the names of hosts by reverse lookup and returns them in
// address order
func (s *Scanner) Resolve(ctx context.Context, hosts []Host) ([]Host, error) {
	lookup := s.LookupAddr
	if lookup == nil {
		lookup = net.DefaultResolver.LookupAddr
	}
	n := s.Lookups
	if n <= 0 {
		n = DefaultLookups
	}
	sem := make(chan struct{}, n)
	var wg sync.WaitGroup
	for i := range hosts {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		}
		wg.Add(1)
		go func(h *Host) {
			defer func() { <-sem; wg.Done() }()
			names, err := lookup(ctx, h.IP.String())
			if err == nil && len(names) > 0 {
				h.Name = strings.TrimSuffix(names[0], ".")
			}
		}(&hosts[i])
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(hosts, func(i, j int) bool {
		return bytes.Compare(hosts[i].IP.To16(), hosts[j].IP.To16()) < 0
	})
	return hosts, nil
}
