package ocr

import (
	"strings"
	"unicode"

	"github.com/menta2k/xray-deid/pkg/types"
)

// Layout maps recognized text onto patient fields
type Layout interface {
	Parse(text string) (types.RawFieldSet, error)
}

// Unreadable is the field set standing in for a rendering without any text.
// Birth and gender match what FixedLayout yields for a missing birth line.
var Unreadable = types.RawFieldSet{Birth: "Unk", Gender: types.GenderUnknown}

// FixedLayout reads fields from fixed line positions after stripping
// punctuation and spaces. The birth line ends in the gender letter preceded
// by the birth date; the last line is the capture date-time followed by a
// fixed-length suffix.
type FixedLayout struct {
	NameLine       int
	BirthLine      int
	BirthLength    int
	DateTimeSuffix int
}

// DefaultLayout returns the layout of the label burned in by the capture
// software: name on line one, birth date and gender on line three, capture
// time on the last line
func DefaultLayout() *FixedLayout {
	return &FixedLayout{
		NameLine:       0,
		BirthLine:      2,
		BirthLength:    9,
		DateTimeSuffix: 4,
	}
}

// Parse implements Layout. Missing lines degrade to types.Unknown rather than
// failing; only text without any line is an error.
func (l *FixedLayout) Parse(text string) (types.RawFieldSet, error) {
	lines := Lines(text)
	if len(lines) == 0 {
		return types.RawFieldSet{}, ErrNoText
	}

	name := types.Unknown
	if l.NameLine < len(lines) {
		name = lines[l.NameLine]
	}

	birthGender := []rune(types.Unknown)
	if l.BirthLine < len(lines) {
		birthGender = []rune(lines[l.BirthLine])
	}
	gender := string(birthGender[len(birthGender)-1:])
	birth := birthGender[:len(birthGender)-1]
	if len(birth) > l.BirthLength {
		birth = birth[len(birth)-l.BirthLength:]
	}

	last := []rune(lines[len(lines)-1])
	dateTime := ""
	if len(last) > l.DateTimeSuffix {
		dateTime = string(last[:len(last)-l.DateTimeSuffix])
	}

	return types.RawFieldSet{
		Name:     name,
		Birth:    string(birth),
		DateTime: dateTime,
		Gender:   gender,
	}, nil
}

// Lines strips ASCII punctuation and spaces from text and returns its
// non-empty lines
func Lines(text string) []string {
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || (r < unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r))) {
			return -1
		}
		return r
	}, text)

	var lines []string
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
