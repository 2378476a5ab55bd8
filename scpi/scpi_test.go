package scpi_test

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/synteira/rflab/comm"
	"github.com/synteira/rflab/scpi"
)

// fakeInstrument answers each newline terminated query from table, and
// records every line it receives
func fakeInstrument(t *testing.T, table map[string]string) (*scpi.SCPI, *[]string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	var seen []string
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				rd := bufio.NewReader(c)
				for {
					line, err := rd.ReadString('\n')
					if err != nil {
						return
					}
					line = strings.TrimSpace(line)
					seen = append(seen, line)
					if resp, ok := table[line]; ok {
						c.Write([]byte(resp))
					}
				}
			}(conn)
		}
	}()
	pool := comm.NewPool(1, time.Second, comm.BackingOffTCPConnMaker(ln.Addr().String(), time.Second))
	return &scpi.SCPI{Pool: pool}, &seen
}

func TestReadFloat(t *testing.T) {
	s, _ := fakeInstrument(t, map[string]string{":SENSe:SWEep:TIME?": "3.750000e-02\n"})
	f, err := s.ReadFloat(":SENSe:SWEep:TIME?")
	if err != nil {
		t.Fatal(err)
	}
	if f != 0.0375 {
		t.Errorf("expected %f got %f", 0.0375, f)
	}
}

func TestReadBoolOnOff(t *testing.T) {
	s, _ := fakeInstrument(t, map[string]string{":OUTP? CH1": "ON\n"})
	b, err := s.ReadBool(":OUTP? CH1")
	if err != nil {
		t.Fatal(err)
	}
	if !b {
		t.Error("expected ON to parse as true")
	}
}

func TestHandshakeError(t *testing.T) {
	s, _ := fakeInstrument(t, map[string]string{
		`*CLS; :FOO 1 ;:SYSTem:ERRor?`: "-113,\"Undefined header\"\n"})
	s.Handshaking = true
	err := s.Write(":FOO 1")
	if err == nil {
		t.Fatal("expected the device error to be returned")
	}
	if !strings.Contains(err.Error(), "Undefined header") {
		t.Errorf("expected device error text, got %v", err)
	}
}

func TestHandshakeRigolNoError(t *testing.T) {
	s, _ := fakeInstrument(t, map[string]string{
		`*CLS; :OUTP CH1,ON ;:SYSTem:ERRor?`: "0,\"No error\"\n"})
	s.Handshaking = true
	if err := s.Write(":OUTP CH1,ON"); err != nil {
		t.Errorf("expected Rigol no-error reply to pass, got %v", err)
	}
}

func TestReadBlockBinary(t *testing.T) {
	payload := []byte{0x42, 0x4D, '\n', 0x00, '\n', 0xFF}
	block := append([]byte("#16"), payload...)
	block = append(block, '\n')
	s, _ := fakeInstrument(t, map[string]string{":DISPlay:DATA? BMP": string(block)})
	data, err := s.ReadBlock(":DISPlay:DATA? BMP")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("expected %v got %v", payload, data)
	}
}

func TestDecodeBlockNotBlock(t *testing.T) {
	_, err := scpi.DecodeBlock(bufio.NewReader(strings.NewReader("1.0,2.0\n")))
	if err != scpi.ErrNotBlock {
		t.Errorf("expected ErrNotBlock got %v", err)
	}
}

func TestParseIdentity(t *testing.T) {
	id, err := scpi.ParseIdentity("Rigol Technologies,DSA815,DSA8A123456789,00.01.19.00.02\n")
	if err != nil {
		t.Fatal(err)
	}
	if id.Model != "DSA815" {
		t.Errorf("expected %s got %s", "DSA815", id.Model)
	}
	if id.Serial != "DSA8A123456789" {
		t.Errorf("expected %s got %s", "DSA8A123456789", id.Serial)
	}
}
