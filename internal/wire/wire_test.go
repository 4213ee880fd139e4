package wire

import (
	"errors"
	"os"
	"testing"
)

func TestEncoderDecoder_Arguments(t *testing.T) {
	var enc Encoder
	msg := enc.Int32(-7).Uint32(42).Text("uuid-1").Array([]byte{1, 2, 3}).Object(9).Message(5, 2)

	if len(msg.Payload)%4 != 0 {
		t.Fatalf("payload not padded: %d bytes", len(msg.Payload))
	}

	d := NewDecoder(msg)
	if got := d.Int32(); got != -7 {
		t.Fatalf("Int32 = %d", got)
	}
	if got := d.Uint32(); got != 42 {
		t.Fatalf("Uint32 = %d", got)
	}
	if got := d.Text(); got != "uuid-1" {
		t.Fatalf("Text = %q", got)
	}
	if got := d.Array(); len(got) != 3 || got[2] != 3 {
		t.Fatalf("Array = %v", got)
	}
	if got := d.Object(); got != 9 {
		t.Fatalf("Object = %d", got)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecoder_ShortPayloadSticks(t *testing.T) {
	var enc Encoder
	msg := enc.Uint32(1).Message(1, 0)

	d := NewDecoder(msg)
	d.Uint32()
	d.Uint32()
	d.Text()
	if !errors.Is(d.Err(), ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", d.Err())
	}
}

func TestDecoder_ArrayLengthBeyondPayload(t *testing.T) {
	var enc Encoder
	msg := enc.Uint32(1000).Message(1, 0)
	d := NewDecoder(msg)
	if got := d.Array(); got != nil {
		t.Fatalf("expected nil array, got %d bytes", len(got))
	}
	if !errors.Is(d.Err(), ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", d.Err())
	}
}

func TestConnPair_MessagesInOrder(t *testing.T) {
	a, b, err := Pair()
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	defer a.Close()
	defer b.Close()

	go func() {
		for i := 0; i < 50; i++ {
			var enc Encoder
			big := make([]byte, i*997)
			if err := a.WriteMessage(enc.Uint32(uint32(i)).Array(big).Message(3, uint16(i))); err != nil {
				t.Errorf("write %d: %v", i, err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		m, err := b.ReadMessage()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		d := NewDecoder(m)
		if got := d.Uint32(); got != uint32(i) || m.Opcode != uint16(i) || m.Object != 3 {
			t.Fatalf("message %d out of order: %s seq=%d", i, m, got)
		}
		if got := len(d.Array()); got != i*997 {
			t.Fatalf("message %d array len %d", i, got)
		}
	}
}

func TestConnPair_PassesFileDescriptors(t *testing.T) {
	a, b, err := Pair()
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	defer a.Close()
	defer b.Close()

	f, err := os.CreateTemp(t.TempDir(), "fd")
	if err != nil {
		t.Fatalf("temp: %v", err)
	}
	if _, err := f.WriteString("pixels"); err != nil {
		t.Fatalf("write: %v", err)
	}
	defer f.Close()

	var enc Encoder
	if err := a.WriteMessage(enc.Uint32(6).FD(int(f.Fd())).Message(1, DisplayCreateBuffer)); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := b.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	d := NewDecoder(m)
	size := d.Uint32()
	fd := d.FD()
	if err := d.Err(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	received := os.NewFile(uintptr(fd), "received")
	defer received.Close()

	buf := make([]byte, size)
	if _, err := received.ReadAt(buf, 0); err != nil {
		t.Fatalf("read through passed fd: %v", err)
	}
	if string(buf) != "pixels" {
		t.Fatalf("passed fd reads %q", buf)
	}
}

func TestErrorEvent_RoundTrip(t *testing.T) {
	in := &ProtocolError{Object: 12, Code: ErrShellSurfaceExists, Message: "shell surface already exists"}
	out, err := ParseErrorEvent(ErrorEvent(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *out != *in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
	if out.Error() == "" || out.Code.String() != "shell_surface_exists" {
		t.Fatalf("unexpected formatting %q", out.Error())
	}
}
