package tcp

// WrappingLT reports whether a is "before" b on the sequence-number circle
// Z/2**32, using the half-space convention of RFC 1323 Appendix: a is
// considered before b when the wrapping distance (a-b) mod 2**32 exceeds
// 2**31, i.e. a is in the "past" half of the circle relative to b.
func WrappingLT(a, b Value) bool {
	return Value(a-b) > 1<<31
}

// IsBetweenWrapping reports whether x lies in the strict open interval
// (s, e) on the sequence-number circle.
func IsBetweenWrapping(s, x, e Value) bool {
	return WrappingLT(s, x) && WrappingLT(x, e)
}

// segmentAcceptable implements the inbound sequence acceptance test of RFC
// 793 §3.3, given the segment's starting sequence S, its length in
// sequence-space octets L (payload plus one for SYN plus one for FIN), the
// next-expected sequence R (RCV.NXT) and advertised window W (RCV.WND).
func segmentAcceptable(s Value, l Size, r Value, w Size) bool {
	wend := Add(r, w)
	switch {
	case l == 0 && w == 0:
		return s == r
	case l == 0 && w > 0:
		return IsBetweenWrapping(r-1, s, wend)
	case l > 0 && w == 0:
		return false
	default: // l > 0 && w > 0
		last := Add(s, Size(l-1))
		return IsBetweenWrapping(r-1, s, wend) || IsBetweenWrapping(r-1, last, wend)
	}
}
