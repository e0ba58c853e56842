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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	// Unix
	usec  = int64(1700000000)
	uusec = int64(500000)
	// NTP
	nsec  = uint32(3908988800)
	nfrac = uint32(0x80000000)
)

func TestNewTimestamp(t *testing.T) {
	ts := NewTimestamp(0xe2270f77, 0xa204b0d4)
	require.Equal(t, uint32(0xe2270f77), ts.Seconds())
	require.Equal(t, uint32(0xa204b0d4), ts.Fraction())
	require.Equal(t, Timestamp(0xe2270f77a204b0d4), ts)
	require.Equal(t, "e2270f77.a204b0d4", ts.String())
}

func TestToWire(t *testing.T) {
	ts := ToWire(WallClock{Sec: usec, Usec: uusec})
	require.Equal(t, nsec, ts.Seconds())
	require.Equal(t, nfrac, ts.Fraction())
}

func TestToWireZeroFraction(t *testing.T) {
	ts := ToWire(WallClock{Sec: 0, Usec: 0})
	require.Equal(t, uint32(NTPEpochOffset), ts.Seconds())
	require.Equal(t, uint32(0), ts.Fraction())
}

func TestToWireSecondsWrap(t *testing.T) {
	// first second of NTP era 1
	ts := ToWire(WallClock{Sec: 1<<32 - NTPEpochOffset, Usec: 0})
	require.Equal(t, uint32(0), ts.Seconds())
}

func TestFromWire(t *testing.T) {
	w := FromWire(NewTimestamp(nsec, nfrac))
	require.Equal(t, WallClock{Sec: usec, Usec: uusec}, w)
}

func TestFromWireBeforeUnixEpoch(t *testing.T) {
	w := FromWire(NewTimestamp(0, 0))
	require.Equal(t, int64(-NTPEpochOffset), w.Sec)
	require.Equal(t, int64(0), w.Usec)
}

func TestFromWireCarry(t *testing.T) {
	w := FromWire(NewTimestamp(nsec, 0xFFFFFFFF))
	require.Equal(t, WallClock{Sec: usec + 1, Usec: 0}, w)
}

func TestRoundTrip(t *testing.T) {
	seconds := []int64{0, 1, 1585147599, usec, 2085978495}
	for _, sec := range seconds {
		for us := int64(0); us < usecPerSec; us += 997 {
			in := WallClock{Sec: sec, Usec: us}
			out := FromWire(ToWire(in))
			require.Equal(t, in.Sec, out.Sec, "seconds must survive round trip for %+v", in)
			require.InDelta(t, in.Usec, out.Usec, 1, "microseconds must survive round trip for %+v", in)
		}
	}
}

func TestRoundTripEdges(t *testing.T) {
	for _, us := range []int64{0, 1, 499999, 500000, 500001, 999998, 999999} {
		in := WallClock{Sec: usec, Usec: us}
		out := FromWire(ToWire(in))
		require.Equal(t, in.Sec, out.Sec)
		require.InDelta(t, in.Usec, out.Usec, 1)
	}
}

func TestWallClockFromTime(t *testing.T) {
	w := WallClockFromTime(time.Unix(1585147599, 631495778))
	require.Equal(t, WallClock{Sec: 1585147599, Usec: 631495}, w)
	require.True(t, time.Unix(1585147599, 631495000).Equal(w.Time()))
}

func TestWallClockString(t *testing.T) {
	w := WallClock{Sec: usec, Usec: 42}
	require.Equal(t, w.Time().Format("2006-01-02 15:04:05")+".000042", w.String())
}

func TestTimeUnix(t *testing.T) {
	testtime := time.Unix(1585147599, 631495778)
	back := Unix(Time(testtime))

	require.Equal(t, testtime.Unix(), back.Unix())
	// we only carry microseconds
	require.Equal(t, 631495000, back.Nanosecond())
}

func Benchmark_ToWire(b *testing.B) {
	w := WallClock{Sec: usec, Usec: uusec}
	for i := 0; i < b.N; i++ {
		_ = ToWire(w)
	}
}

func Benchmark_FromWire(b *testing.B) {
	ts := NewTimestamp(nsec, nfrac)
	for i := 0; i < b.N; i++ {
		_ = FromWire(ts)
	}
}
