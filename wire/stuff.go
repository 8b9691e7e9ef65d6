package wire

// Stuff removes every Sentinel from buf[1:len(buf)-1] in place by turning
// the sentinels into a chain of forward offsets.
//
// buf[0] is the first anchor: on return it holds the distance to the first
// enclosed sentinel. Each replaced sentinel holds the distance to the next
// one, and the final byte (the frame terminator) keeps its Sentinel value.
// Callers reserve buf[0] and put the terminator at buf[len(buf)-1].
//
// Offsets are single bytes; buf must not be longer than MaxFrameLen+1.
func Stuff(buf []byte) {
	last := 0
	for i := 1; i < len(buf); i++ {
		if buf[i] == Sentinel {
			buf[last] = byte(i - last)
			last = i
		}
	}
}

// Unstuff follows the offset chain starting at buf[0] and restores a
// Sentinel at every anchor it visits.
//
// The walk stops when an anchor holds zero (the terminator was reached) or
// when the running index leaves buf. The returned index is where following
// stopped; it can be len(buf) or beyond when the chain points past the
// bytes received so far, which lets a reader unstuff a frame incrementally.
func Unstuff(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}

	next := int(buf[0])
	buf[0] = Sentinel

	step := next
	for next < len(buf) && step != 0 {
		step = int(buf[next])
		buf[next] = Sentinel
		next += step
	}
	return next
}
