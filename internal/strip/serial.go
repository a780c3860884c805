package strip

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"go.bug.st/serial"

	"github.com/dokzlo13/softboxd/internal/color"
)

// Packet types understood by the LED controller firmware on the other end of the
// serial link.
const (
	packetInitialize byte = 0x00
	packetClear      byte = 0x01
	packetSet        byte = 0x02
)

// SerialDriver streams frames to an LED controller over a serial port.
//
// Every packet is: type(1) | length(2, LE) | body | crc32(body, LE).
type SerialDriver struct {
	port io.ReadWriteCloser
}

// OpenSerial opens the serial port and sends the initialize packet announcing the
// pixel count. Any failure is reported as ErrStripNotReady.
func OpenSerial(device string, baud int) (*SerialDriver, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrStripNotReady, device, err)
	}

	d := &SerialDriver{port: port}

	body := make([]byte, 2)
	binary.LittleEndian.PutUint16(body, NumPixels)
	if err := d.writePacket(packetInitialize, body); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: failed to initialize controller: %v", ErrStripNotReady, err)
	}

	return d, nil
}

// Write sends a set packet carrying the pixels as r,g,b triplets.
func (d *SerialDriver) Write(pixels []color.RGB) error {
	body := make([]byte, 0, len(pixels)*3)
	for _, p := range pixels {
		body = append(body, p.R, p.G, p.B)
	}
	return d.writePacket(packetSet, body)
}

// Close clears the strip and closes the port.
func (d *SerialDriver) Close() error {
	_ = d.writePacket(packetClear, nil)
	return d.port.Close()
}

func (d *SerialDriver) writePacket(typ byte, body []byte) error {
	_, err := d.port.Write(encodePacket(typ, body))
	return err
}

func encodePacket(typ byte, body []byte) []byte {
	buf := make([]byte, 3+len(body)+4)
	buf[0] = typ
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(body)))
	copy(buf[3:], body)
	binary.LittleEndian.PutUint32(buf[3+len(body):], crc32.ChecksumIEEE(body))
	return buf
}
