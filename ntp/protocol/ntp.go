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

/*
Package protocol implements SNTP packet and basic functions to work with.
It provides quick and transparent translation between 48 bytes and
simply accessible struct, and conversion between wall clock time and
NTP 64-bit fixed-point timestamps.
*/
package protocol

import (
	"fmt"
	"time"
)

const (
	// NTPEpochOffset is the difference between NTP (1900) and Unix (1970) epoch in seconds
	NTPEpochOffset = 2208988800
	// FractionScale is the number of fraction states in a second.
	// Both directions of the conversion scale by 2^32-1, not 2^32.
	FractionScale = 0xFFFFFFFF
	// DefaultPort is the well-known NTP port
	DefaultPort = 123

	usecPerSec = 1000000
	// wallClockLayout is how WallClock renders itself
	wallClockLayout = "2006-01-02 15:04:05.000000"
)

// Timestamp is an NTP 64-bit fixed-point timestamp in host byte order.
// High 32 bits are seconds since NTP epoch, low 32 bits are fractions of a second.
type Timestamp uint64

// NewTimestamp builds Timestamp from seconds and fractions
func NewTimestamp(seconds, fractions uint32) Timestamp {
	return Timestamp(uint64(seconds)<<32 | uint64(fractions))
}

// Seconds returns seconds since NTP epoch
func (t Timestamp) Seconds() uint32 {
	return uint32(t >> 32)
}

// Fraction returns fractional part of a second
func (t Timestamp) Fraction() uint32 {
	return uint32(t)
}

// String returns wire representation in hex, sec.frac
func (t Timestamp) String() string {
	return fmt.Sprintf("%08x.%08x", t.Seconds(), t.Fraction())
}

// WallClock is a local representation of a point in time: seconds since Unix epoch + microseconds
type WallClock struct {
	Sec  int64
	Usec int64
}

// WallClockFromTime converts time.Time into WallClock, truncating to microseconds
func WallClockFromTime(t time.Time) WallClock {
	return WallClock{Sec: t.Unix(), Usec: int64(t.Nanosecond() / 1000)}
}

// Time converts WallClock to time.Time
func (w WallClock) Time() time.Time {
	return time.Unix(w.Sec, w.Usec*1000)
}

// String formats WallClock in local time with microseconds
func (w WallClock) String() string {
	return w.Time().Format(wallClockLayout)
}

// ToWire converts WallClock into NTP timestamp.
// Seconds wrap modulo 2^32, no range checks are performed.
func ToWire(w WallClock) Timestamp {
	seconds := uint32(w.Sec + NTPEpochOffset)
	fractions := uint32((uint64(w.Usec)*FractionScale + usecPerSec/2) / usecPerSec)
	return NewTimestamp(seconds, fractions)
}

// FromWire converts NTP timestamp into WallClock.
// +1 before scaling compensates truncation in ToWire so a round trip stays within 1us.
func FromWire(t Timestamp) WallClock {
	w := WallClock{
		Sec:  int64(t.Seconds()) - NTPEpochOffset,
		Usec: int64(((uint64(t.Fraction())+1)*usecPerSec + FractionScale/2) / FractionScale),
	}
	// fractions within half a microsecond of the next second round up into it
	if w.Usec >= usecPerSec {
		w.Sec++
		w.Usec -= usecPerSec
	}
	return w
}

// Time is converting Unix time to NTP timestamp
func Time(t time.Time) Timestamp {
	return ToWire(WallClockFromTime(t))
}

// Unix is converting NTP timestamp into Unix time
func Unix(t Timestamp) time.Time {
	return FromWire(t).Time()
}
