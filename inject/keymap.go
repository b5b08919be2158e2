package inject

// Linux input-event-codes for a US layout.
const (
	keyEnter     = 28
	keyLeftCtrl  = 29
	keyLeftShift = 42
	keySpace     = 57
	keyCapsLock  = 58
	keyTab       = 15
	keyV         = 47
)

// a..z in alphabetical order.
var letterCodes = [26]uint16{
	30, 48, 46, 32, 18, 33, 34, 35, 23, 36,
	37, 38, 50, 49, 24, 25, 16, 19, 31, 20,
	22, 47, 17, 45, 21, 44,
}

// 0..9
var digitCodes = [10]uint16{11, 2, 3, 4, 5, 6, 7, 8, 9, 10}

type keystroke struct {
	code  uint16
	shift bool
}

var punctCodes = map[rune]keystroke{
	'.': {52, false}, ',': {51, false}, '/': {53, false},
	';': {39, false}, '\'': {40, false}, '[': {26, false},
	']': {27, false}, '-': {12, false}, '=': {13, false},
	'\\': {43, false}, '`': {41, false},
	'!': {2, true}, '@': {3, true}, '#': {4, true},
	'$': {5, true}, '%': {6, true}, '^': {7, true},
	'&': {8, true}, '*': {9, true}, '(': {10, true},
	')': {11, true}, '_': {12, true}, '+': {13, true},
	'{': {26, true}, '}': {27, true}, '|': {43, true},
	':': {39, true}, '"': {40, true}, '<': {51, true},
	'>': {52, true}, '?': {53, true}, '~': {41, true},
}

func keyFor(r rune) (keystroke, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return keystroke{letterCodes[r-'a'], false}, true
	case r >= 'A' && r <= 'Z':
		return keystroke{letterCodes[r-'A'], true}, true
	case r >= '0' && r <= '9':
		return keystroke{digitCodes[r-'0'], false}, true
	case r == ' ':
		return keystroke{keySpace, false}, true
	case r == '\n':
		return keystroke{keyEnter, false}, true
	case r == '\t':
		return keystroke{keyTab, false}, true
	}
	k, ok := punctCodes[r]
	return k, ok
}

// plan maps text to keystrokes. ok is false when any rune has no key on
// the layout, in which case the caller pastes instead.
func plan(text string) (keys []keystroke, ok bool) {
	keys = make([]keystroke, 0, len(text))
	for _, r := range text {
		if r == '\r' {
			continue
		}
		k, found := keyFor(r)
		if !found {
			return nil, false
		}
		keys = append(keys, k)
	}
	return keys, true
}
