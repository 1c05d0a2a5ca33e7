// Package sms implements message templates, GSM-7/UCS-2 segment counting and
// cost estimation for outbound text messages.
package sms

import "unicode/utf16"

// Encoding is the character repertoire a message is sent in
type Encoding string

const (
	EncodingGSM7 Encoding = "GSM-7"
	EncodingUCS2 Encoding = "UCS-2"
)

// Carrier segmentation limits
const (
	GSMSingleSegmentLimit     = 160
	GSMConcatSegmentLimit     = 153
	UnicodeSingleSegmentLimit = 70
	UnicodeConcatSegmentLimit = 67
)

// gsmBasic is the GSM 03.38 default alphabet, escape excluded
const gsmBasic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

// gsmExtended characters are sent as escape + char and cost two units
const gsmExtended = "^{}\\[~]|€\f"

var (
	basicSet    = runeSet(gsmBasic)
	extendedSet = runeSet(gsmExtended)
)

func runeSet(s string) map[rune]struct{} {
	m := make(map[rune]struct{}, len(s))
	for _, r := range s {
		m[r] = struct{}{}
	}
	return m
}

// IsGSMBasic reports whether r is in the GSM-7 default alphabet
func IsGSMBasic(r rune) bool {
	_, ok := basicSet[r]
	return ok
}

// IsGSMExtended reports whether r is in the GSM-7 extension table
func IsGSMExtended(r rune) bool {
	_, ok := extendedSet[r]
	return ok
}

// DetectEncoding returns GSM-7 when every character is in the basic or extended
// tables and UCS-2 as soon as one is not
func DetectEncoding(message string) Encoding {
	for _, r := range message {
		if !IsGSMBasic(r) && !IsGSMExtended(r) {
			return EncodingUCS2
		}
	}
	return EncodingGSM7
}

// EncodedLength returns the billable length of message under enc.
// GSM-7 counts extended characters twice; UCS-2 counts UTF-16 code units, so
// characters outside the BMP such as emoji take two.
func EncodedLength(message string, enc Encoding) int {
	if enc == EncodingUCS2 {
		return len(utf16.Encode([]rune(message)))
	}

	units := 0
	for _, r := range message {
		if IsGSMExtended(r) {
			units += 2
		} else {
			units++
		}
	}
	return units
}
