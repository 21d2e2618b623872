// Package ichtime implements the wall-clock representation the HLS engine
// stamps onto playlist entries: a seconds+nanoseconds pair advanced by
// exact sample-rate fractions, and a hand-rolled Gregorian calendar
// breakdown (not time.Time) so that EXT-X-PROGRAM-DATE-TIME output and its
// monotonicity under repeated fractional advances are pinned to this exact
// arithmetic rather than to the host's time package.
package ichtime

import "time"

const nanoPerSec = 1_000_000_000
const nanoPerMilli = 1_000_000
const secPerDay = 86400

// Time is a seconds+nanoseconds instant, always normalized so that
// 0 <= Nanoseconds < 1e9.
type Time struct {
	Seconds     int64
	Nanoseconds int64
}

// Frac is a duration expressed as a fraction of a second, typically
// samples/sampleRate.
type Frac struct {
	Num int64
	Den int64
}

// Now captures the current wall-clock time.
func Now() Time {
	t := time.Now()
	return Time{Seconds: t.Unix(), Nanoseconds: int64(t.Nanosecond())}
}

// Add adds a into t in place. Only defined for non-negative operands.
func (t *Time) Add(a Time) {
	t.Nanoseconds += a.Nanoseconds
	t.Seconds += a.Seconds
	for t.Nanoseconds >= nanoPerSec {
		t.Seconds++
		t.Nanoseconds -= nanoPerSec
	}
}

// AddFrac advances t by f.Num/f.Den seconds.
func (t *Time) AddFrac(f Frac) {
	t.Seconds += f.Num / f.Den
	t.Nanoseconds += (f.Num % f.Den) * nanoPerSec / f.Den
	for t.Nanoseconds >= nanoPerSec {
		t.Seconds++
		t.Nanoseconds -= nanoPerSec
	}
}

// Cmp returns -1, 0, or 1 as a is before, equal to, or after b.
func Cmp(a, b Time) int {
	if a.Seconds == b.Seconds {
		switch {
		case a.Nanoseconds == b.Nanoseconds:
			return 0
		case a.Nanoseconds < b.Nanoseconds:
			return -1
		default:
			return 1
		}
	}
	if a.Seconds < b.Seconds {
		return -1
	}
	return 1
}

// Sub returns a - b, handling the nanosecond-borrow case in either
// direction.
func Sub(a, b Time) Time {
	x, y := a, b
	if x.Nanoseconds < y.Nanoseconds {
		nsec := (y.Nanoseconds-x.Nanoseconds)/nanoPerSec + 1
		y.Nanoseconds -= nanoPerSec * nsec
		y.Seconds += nsec
	}
	if x.Nanoseconds-y.Nanoseconds >= nanoPerSec {
		nsec := (x.Nanoseconds - y.Nanoseconds) / nanoPerSec
		y.Nanoseconds += nanoPerSec * nsec
		y.Seconds -= nsec
	}
	return Time{Seconds: x.Seconds - y.Seconds, Nanoseconds: x.Nanoseconds - y.Nanoseconds}
}

// Broken is a calendar breakdown of a Time, UTC, 1970-based.
type Broken struct {
	Year  int64
	Month uint8 // 1 = January
	Day   uint8
	Hour  uint8
	Min   uint8
	Sec   uint8
	Milli uint16
}

var yearDays = [2]int64{365, 366}

var monDays = [2][12]int64{
	{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
}

func isLeapYear(y int64) int {
	if y%4 == 0 && (y%100 != 0 || y%400 == 0) {
		return 1
	}
	return 0
}

// ToBroken decomposes t into a Gregorian calendar breakdown, the same
// days-since-epoch walk the original implementation performs rather than
// a table-driven proleptic calendar from the standard library.
func ToBroken(t Time) Broken {
	days := t.Seconds / secPerDay
	rem := t.Seconds % secPerDay

	hour := rem / 3600
	rem %= 3600
	min := rem / 60
	sec := rem % 60

	year := int64(1970)
	l := isLeapYear(year)
	for days >= yearDays[l] {
		days -= yearDays[l]
		year++
		l = isLeapYear(year)
	}

	var month int64
	for days >= monDays[l][month] {
		days -= monDays[l][month]
		month++
	}

	return Broken{
		Year:  year,
		Month: uint8(month + 1),
		Day:   uint8(days + 1),
		Hour:  uint8(hour),
		Min:   uint8(min),
		Sec:   uint8(sec),
		Milli: uint16(t.Nanoseconds / nanoPerMilli),
	}
}

// ProgramDateTime formats t per the EXT-X-PROGRAM-DATE-TIME grammar:
// YYYY-MM-DDTHH:MM:SS.mmmZ.
func ProgramDateTime(t Time) string {
	b := ToBroken(t)
	buf := make([]byte, 0, 24)
	buf = appendPadded(buf, int64(b.Year), 4)
	buf = append(buf, '-')
	buf = appendPadded(buf, int64(b.Month), 2)
	buf = append(buf, '-')
	buf = appendPadded(buf, int64(b.Day), 2)
	buf = append(buf, 'T')
	buf = appendPadded(buf, int64(b.Hour), 2)
	buf = append(buf, ':')
	buf = appendPadded(buf, int64(b.Min), 2)
	buf = append(buf, ':')
	buf = appendPadded(buf, int64(b.Sec), 2)
	buf = append(buf, '.')
	buf = appendPadded(buf, int64(b.Milli), 3)
	buf = append(buf, 'Z')
	return string(buf)
}

func appendPadded(buf []byte, v int64, width int) []byte {
	start := len(buf)
	for i := 0; i < width; i++ {
		buf = append(buf, '0')
	}
	for i := width - 1; i >= 0 && v > 0; i-- {
		buf[start+i] = byte('0' + v%10)
		v /= 10
	}
	return buf
}
