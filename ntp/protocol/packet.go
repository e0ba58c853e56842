/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// PacketSizeBytes sets the size of NTP packet
const PacketSizeBytes = 48

// ErrPacketSize is returned when buffer can't hold a whole packet
var ErrPacketSize = errors.New("wrong ntp packet size")

// Packet is an SNTP (NTPv4 compatible) packet
/*
http://seriot.ch/ntp.php
https://tools.ietf.org/html/rfc4330
   0                   1                   2                   3
   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
0 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |LI | VN  |Mode |    Stratum     |     Poll      |  Precision   |
4 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Delay                            |
8 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Dispersion                       |
12+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                          Reference ID                         |
16+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                     Reference Timestamp (64)                  +
  |                                                               |
24+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Origin Timestamp (64)                    +
  |                                                               |
32+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Receive Timestamp (64)                   +
  |                                                               |
40+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Transmit Timestamp (64)                  +
  |                                                               |
48+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

Setting = LI | VN  |Mode. Client request example:
00 100 011 (or 0x23)
|  |   +-- client mode (3)
|  + ----- version (4)
+ -------- leap year indicator, 0 no warning
*/
type Packet struct {
	Settings       uint8     // leap year indicator, version number and mode
	Stratum        uint8     // stratum
	Poll           int8      // poll. Power of 2
	Precision      int8      // precision. Power of 2
	RootDelay      uint32    // total delay to the reference clock
	RootDispersion uint32    // total dispersion to the reference clock
	ReferenceID    uint32    // identifier of server or a reference clock
	RefTime        Timestamp // last time local clock was updated
	OrigTime       Timestamp // client time
	RxTime         Timestamp // receive time
	TxTime         Timestamp // transmit time
}

// Leap indicator values
const (
	LeapNoWarning      = 0
	LeapAlarmCondition = 3
)

// Versions
const (
	VersionFirst = 1
	VersionLast  = 4
)

// Modes
const (
	ModeClient = 3
	ModeServer = 4
)

const (
	leapShift    = 6
	versionShift = 3
	versionMask  = 0x07 << versionShift
	modeMask     = 0x07
)

// Leap returns leap indicator
func (p *Packet) Leap() uint8 {
	return p.Settings >> leapShift
}

// Version returns protocol version
func (p *Packet) Version() uint8 {
	return (p.Settings & versionMask) >> versionShift
}

// Mode returns association mode
func (p *Packet) Mode() uint8 {
	return p.Settings & modeMask
}

// SetLeap sets leap indicator, other sub-fields are untouched
func (p *Packet) SetLeap(li uint8) {
	p.Settings = p.Settings&^(0x03<<leapShift) | (li&0x03)<<leapShift
}

// SetVersion sets protocol version, other sub-fields are untouched
func (p *Packet) SetVersion(vn uint8) {
	p.Settings = p.Settings&^versionMask | (vn<<versionShift)&versionMask
}

// SetMode sets association mode, other sub-fields are untouched
func (p *Packet) SetMode(mode uint8) {
	p.Settings = p.Settings&^modeMask | mode&modeMask
}

// Reset zeroes all the fields
func (p *Packet) Reset() {
	*p = Packet{}
}

// ValidSettingsFormat verifies that LI | VN  |Mode fields are set correctly
// check the first byte,include:
// LN:must be 0 or 3
// VN:must be 1,2,3 or 4
// Mode:must be 3
func (p *Packet) ValidSettingsFormat() bool {
	l := p.Leap()
	v := p.Version()
	if l != LeapNoWarning && l != LeapAlarmCondition {
		return false
	}
	if v < VersionFirst || v > VersionLast {
		return false
	}
	return p.Mode() == ModeClient
}

// MarshalBinaryTo marshals packet into provided buffer and returns number of bytes written
func (p *Packet) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < PacketSizeBytes {
		return 0, fmt.Errorf("%w: buffer is %d bytes", ErrPacketSize, len(b))
	}
	b[0] = p.Settings
	b[1] = p.Stratum
	b[2] = byte(p.Poll)
	b[3] = byte(p.Precision)
	binary.BigEndian.PutUint32(b[4:], p.RootDelay)
	binary.BigEndian.PutUint32(b[8:], p.RootDispersion)
	binary.BigEndian.PutUint32(b[12:], p.ReferenceID)
	binary.BigEndian.PutUint64(b[16:], uint64(p.RefTime))
	binary.BigEndian.PutUint64(b[24:], uint64(p.OrigTime))
	binary.BigEndian.PutUint64(b[32:], uint64(p.RxTime))
	binary.BigEndian.PutUint64(b[40:], uint64(p.TxTime))
	return PacketSizeBytes, nil
}

// MarshalBinary converts Packet to []bytes
func (p *Packet) MarshalBinary() ([]byte, error) {
	b := make([]byte, PacketSizeBytes)
	_, err := p.MarshalBinaryTo(b)
	return b, err
}

// UnmarshalBinary parses []byte into Packet.
// Anything past PacketSizeBytes is ignored.
func (p *Packet) UnmarshalBinary(b []byte) error {
	if len(b) < PacketSizeBytes {
		return fmt.Errorf("%w: got %d bytes, need %d", ErrPacketSize, len(b), PacketSizeBytes)
	}
	p.Settings = b[0]
	p.Stratum = b[1]
	p.Poll = int8(b[2])
	p.Precision = int8(b[3])
	p.RootDelay = binary.BigEndian.Uint32(b[4:])
	p.RootDispersion = binary.BigEndian.Uint32(b[8:])
	p.ReferenceID = binary.BigEndian.Uint32(b[12:])
	p.RefTime = Timestamp(binary.BigEndian.Uint64(b[16:]))
	p.OrigTime = Timestamp(binary.BigEndian.Uint64(b[24:]))
	p.RxTime = Timestamp(binary.BigEndian.Uint64(b[32:]))
	p.TxTime = Timestamp(binary.BigEndian.Uint64(b[40:]))
	return nil
}

// Bytes converts Packet to []bytes
func (p *Packet) Bytes() ([]byte, error) {
	return p.MarshalBinary()
}

// BytesToPacket converts []bytes to Packet
func BytesToPacket(ntpPacketBytes []byte) (*Packet, error) {
	packet := &Packet{}
	err := packet.UnmarshalBinary(ntpPacketBytes)
	return packet, err
}

// ReferenceID converts up to 4 ASCII characters into reference ID, padding with spaces.
// Empty string gives zero reference ID.
func ReferenceID(refid string) uint32 {
	if refid == "" {
		return 0
	}
	return binary.BigEndian.Uint32([]byte(fmt.Sprintf("%-4.4s", refid)))
}

// ReadPacket reads incoming NTP packet into buf and parses it
func ReadPacket(conn *net.UDPConn, buf []byte) (*Packet, *net.UDPAddr, error) {
	n, remAddr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	packet, err := BytesToPacket(buf[:n])
	return packet, remAddr, err
}
