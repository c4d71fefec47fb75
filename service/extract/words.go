package extract

import (
	"path/filepath"
	"strings"
	"unicode"
)

// ScannedPDFThreshold is the word count below which a PDF is assumed to be
// an image scan that needs OCR.
const ScannedPDFThreshold = 10

// CountWords counts runs of letters and digits. Apostrophes and hyphens
// join the surrounding run; a run made only of them is not a word.
func CountWords(text string) int {
	count := 0
	inWord := false
	hasAlnum := false

	flush := func() {
		if inWord && hasAlnum {
			count++
		}
		inWord, hasAlnum = false, false
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r):
			inWord = true
			hasAlnum = true
		case r == '\'' || r == '’' || r == '-':
			inWord = true
		default:
			flush()
		}
	}
	flush()
	return count
}

// LikelyScanned reports whether a file is a PDF with too little text to be
// anything but an image scan.
func LikelyScanned(filename string, words int) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf") && words < ScannedPDFThreshold
}
