package strip

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/dokzlo13/softboxd/internal/color"
)

func TestAdapterPowerGating(t *testing.T) {
	drv := NewMemoryDriver(4)
	a := NewAdapter(drv)

	var frame Frame
	color.Fill(frame[:], color.Red)

	if err := a.Push(frame, true); err != nil {
		t.Fatalf("Push on: %v", err)
	}
	if err := a.Push(frame, false); err != nil {
		t.Fatalf("Push off: %v", err)
	}

	frames := drv.Frames()
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	for i, p := range frames[0] {
		if p != color.Red {
			t.Errorf("powered frame pixel %d = %v, want red", i, p)
		}
	}
	for i, p := range frames[1] {
		if !p.IsBlack() {
			t.Errorf("unpowered frame pixel %d = %v, want black", i, p)
		}
	}
	if a.Last() != (Frame{}) {
		t.Errorf("Last() = %v, want blank", a.Last())
	}
	if a.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", a.Writes())
	}
}

func TestMemoryDriverKeepsTail(t *testing.T) {
	drv := NewMemoryDriver(2)
	for i := 0; i < 5; i++ {
		_ = drv.Write([]color.RGB{{R: uint8(i)}})
	}
	frames := drv.Frames()
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0][0].R != 3 || frames[1][0].R != 4 {
		t.Errorf("frames = %v, want the last two writes", frames)
	}
}

func TestEncodePacket(t *testing.T) {
	body := []byte{1, 2, 3}
	pkt := encodePacket(packetSet, body)

	if pkt[0] != packetSet {
		t.Errorf("type = %d, want %d", pkt[0], packetSet)
	}
	if n := binary.LittleEndian.Uint16(pkt[1:3]); n != 3 {
		t.Errorf("length = %d, want 3", n)
	}
	if got := binary.LittleEndian.Uint32(pkt[6:]); got != crc32.ChecksumIEEE(body) {
		t.Errorf("crc = %08x, want %08x", got, crc32.ChecksumIEEE(body))
	}
	if len(pkt) != 10 {
		t.Errorf("len = %d, want 10", len(pkt))
	}
}
