package sms

// SegmentInfo describes how a message will be billed
type SegmentInfo struct {
	Encoding Encoding `json:"encoding"`
	Units    int      `json:"units"`
	Segments int      `json:"segments"`
	// PerSegment is the capacity of each segment at this length
	PerSegment int `json:"per_segment"`
}

// Analyze classifies the message and counts its segments
func Analyze(message string) SegmentInfo {
	enc := DetectEncoding(message)
	units := EncodedLength(message, enc)

	single, concat := GSMSingleSegmentLimit, GSMConcatSegmentLimit
	if enc == EncodingUCS2 {
		single, concat = UnicodeSingleSegmentLimit, UnicodeConcatSegmentLimit
	}

	info := SegmentInfo{Encoding: enc, Units: units, PerSegment: single}
	switch {
	case units == 0:
		info.Segments = 0
	case units <= single:
		info.Segments = 1
	default:
		info.PerSegment = concat
		info.Segments = (units + concat - 1) / concat
	}
	return info
}

// CalculateSegments returns the number of carrier segments for message; empty is 0
func CalculateSegments(message string) int {
	return Analyze(message).Segments
}
