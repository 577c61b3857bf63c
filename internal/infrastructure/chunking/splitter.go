package chunking

import "strings"

const (
	defaultWindowRunes  = 1600
	defaultOverlapRunes = 320
)

// windowSplitter cuts page text into rune windows that share overlap
// runes with their predecessor.
type windowSplitter struct {
	size    int
	overlap int
}

func newWindowSplitter(size, overlap int) windowSplitter {
	if size <= 0 {
		size = defaultWindowRunes
	}
	if overlap < 0 || overlap >= size {
		overlap = min(defaultOverlapRunes, size/5)
	}
	return windowSplitter{size: size, overlap: overlap}
}

// split drops windows that are blank after trimming. The final window ends
// exactly at the text end.
func (s windowSplitter) split(text string) []string {
	runes := []rune(text)
	stride := s.size - s.overlap

	var windows []string
	for lo := 0; lo < len(runes); lo += stride {
		hi := min(lo+s.size, len(runes))
		if w := strings.TrimSpace(string(runes[lo:hi])); w != "" {
			windows = append(windows, w)
		}
		if hi == len(runes) {
			break
		}
	}
	return windows
}
