package ring

import (
	"net"
	"testing"
)

func TestLoopbackRingAcceptReadWrite(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		t.Fatalf("expected *net.TCPListener")
	}
	lnFile, err := tcpLn.File()
	if err != nil {
		t.Fatalf("listener file: %v", err)
	}
	defer lnFile.Close()
	listenFD := int(lnFile.Fd())

	r := NewLoopbackRing(8)
	defer r.Close()

	if err := r.PrepAccept(listenFD, 1); err != nil {
		t.Fatalf("PrepAccept: %v", err)
	}
	if n, err := r.Submit(); err != nil || n != 1 {
		t.Fatalf("Submit: n=%d err=%v", n, err)
	}

	dialed := make(chan error, 1)
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			dialed <- err
			return
		}
		_, err = c.Write([]byte("hello"))
		dialed <- err
	}()

	res, err := r.WaitOne()
	if err != nil {
		t.Fatalf("WaitOne: %v", err)
	}
	if res.UserData() != 1 {
		t.Fatalf("UserData = %d, want 1", res.UserData())
	}
	if res.Value() < 0 {
		t.Fatalf("accept failed with errno %d", -res.Value())
	}
	connFD := int(res.Value())
	r.Release(res)

	if err := <-dialed; err != nil {
		t.Fatalf("dial/write: %v", err)
	}

	buf := make([]byte, 5)
	if err := r.PrepRead(connFD, buf, 2); err != nil {
		t.Fatalf("PrepRead: %v", err)
	}
	if n, err := r.Submit(); err != nil || n != 1 {
		t.Fatalf("Submit: n=%d err=%v", n, err)
	}
	res, err = r.WaitOne()
	if err != nil {
		t.Fatalf("WaitOne: %v", err)
	}
	if res.UserData() != 2 {
		t.Fatalf("UserData = %d, want 2", res.UserData())
	}
	if int(res.Value()) != 5 {
		t.Fatalf("read %d bytes, want 5", res.Value())
	}
	if string(buf) != "hello" {
		t.Fatalf("read %q, want %q", buf, "hello")
	}
	r.Release(res)

	if err := r.PrepClose(connFD, 3); err != nil {
		t.Fatalf("PrepClose: %v", err)
	}
	if _, err := r.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err = r.WaitOne()
	if err != nil {
		t.Fatalf("WaitOne: %v", err)
	}
	if res.UserData() != 3 {
		t.Fatalf("UserData = %d, want 3", res.UserData())
	}
	r.Release(res)
}

func TestLoopbackRingWriteError(t *testing.T) {
	r := NewLoopbackRing(4)
	defer r.Close()

	if err := r.PrepWrite(-1, []byte("x"), 9); err != nil {
		t.Fatalf("PrepWrite: %v", err)
	}
	if _, err := r.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := r.WaitOne()
	if err != nil {
		t.Fatalf("WaitOne: %v", err)
	}
	if res.UserData() != 9 {
		t.Fatalf("UserData = %d, want 9", res.UserData())
	}
	if res.Value() >= 0 {
		t.Fatalf("expected negative errno, got %d", res.Value())
	}
}
