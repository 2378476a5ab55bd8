package comm_test

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/synteira/rflab/comm"
)

// tcpEchoServer echoes every line back, and returns its address
func tcpEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("could not listen, test aborted", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { io.Copy(conn, conn) }() // one goroutine per connection
		}
	}()
	return ln.Addr().String()
}

func TestPoolToCapacity(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(3, time.Second, comm.BackingOffTCPConnMaker(addr, time.Second))
	for i := 0; i < 3; i++ {
		if _, err := pool.Get(); err != nil {
			t.Fatal("could not get connection:", err)
		}
	}
	if pool.Active() != 3 {
		t.Errorf("expected 3 active got %d", pool.Active())
	}
}

func TestPoolReleasesReuse(t *testing.T) {
	addr := tcpEchoServer(t)
	made := 0
	maker := func() (io.ReadWriteCloser, error) {
		made++
		return net.Dial("tcp", addr)
	}
	pool := comm.NewPool(3, time.Second, maker)
	for i := 0; i < 5; i++ {
		conn, err := pool.Get()
		if err != nil {
			t.Fatal("could not get connection:", err)
		}
		pool.Put(conn)
	}
	if made != 1 {
		t.Errorf("expected a single connection to be reused, made %d", made)
	}
	if pool.Size() != 1 {
		t.Errorf("expected pool size 1 got %d", pool.Size())
	}
}

func TestPoolReleasesExpire(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(2, 10*time.Millisecond, comm.BackingOffTCPConnMaker(addr, time.Second))
	conn, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	pool.Put(conn)
	time.Sleep(200 * time.Millisecond)
	if pool.Size() != 0 {
		t.Errorf("expected idle connections to be reclaimed, size %d", pool.Size())
	}
}

func TestPoolMaintainsSize(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(2, time.Second, comm.BackingOffTCPConnMaker(addr, time.Second))
	var held []io.ReadWriter
	for i := 0; i < 2; i++ {
		rw, err := pool.Get()
		if err != nil {
			t.Fatal("could not get connection:", err)
		}
		held = append(held, rw)
	}
	newConn := make(chan io.ReadWriter, 1)
	go func() {
		rw, _ := pool.Get()
		newConn <- rw
	}()
	select {
	case <-newConn:
		t.Fatal("failed to prevent pool overflow")
	case <-time.After(100 * time.Millisecond):
	}
	pool.Put(held[0])
	select {
	case <-newConn:
	case <-time.After(time.Second):
		t.Fatal("returned connection was not handed to the waiting caller")
	}
}

func TestReturnWithErrorDestroys(t *testing.T) {
	addr := tcpEchoServer(t)
	pool := comm.NewPool(1, time.Second, comm.BackingOffTCPConnMaker(addr, time.Second))
	conn, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	pool.ReturnWithError(conn, io.ErrUnexpectedEOF)
	if pool.Size() != 0 {
		t.Errorf("expected errored connection to be destroyed, size %d", pool.Size())
	}
}

func TestTerminatorRoundTrip(t *testing.T) {
	addr := tcpEchoServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	wrap, err := comm.NewTimeout(comm.NewTerminator(conn, '\n', '\n'), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = io.WriteString(wrap, "*IDN?"); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	n, err := wrap.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf[:n]); got != "*IDN?\n" {
		t.Errorf("expected %q got %q", "*IDN?\n", got)
	}
}

func TestRemoteDeviceSendRecv(t *testing.T) {
	addr := tcpEchoServer(t)
	rd := comm.NewRemoteDevice(addr, false, &comm.Terminators{Rx: '\n', Tx: '\n'}, nil)
	if err := rd.Open(); err != nil {
		t.Fatal(err)
	}
	defer rd.Close()
	resp, err := rd.SendRecv([]byte("++ver"))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "++ver" {
		t.Errorf("expected %s got %s", "++ver", resp)
	}
}

func TestRemoteDeviceNotConnected(t *testing.T) {
	rd := comm.NewRemoteDevice("127.0.0.1:1", false, nil, nil)
	if err := rd.Send([]byte("x")); err != comm.ErrNotConnected {
		t.Errorf("expected ErrNotConnected got %v", err)
	}
}

func TestRemoteDeviceSerialWithoutConf(t *testing.T) {
	rd := comm.NewRemoteDevice("/dev/null", true, nil, nil)
	if err := rd.Open(); err == nil {
		t.Error("expected an error opening a serial device with no config")
	}
}

func TestTerminatorReadAcrossChunks(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	go func() {
		w := bufio.NewWriter(server)
		w.WriteString("12")
		w.Flush()
		w.WriteString("34\n")
		w.Flush()
		server.Close()
	}()
	term := comm.NewTerminator(client, '\n', '\n')
	buf := make([]byte, 16)
	n, err := term.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "1234\n" {
		t.Errorf("expected %q got %q", "1234\n", buf[:n])
	}
}
