package logbuf

import "regexp"

// ansiSGR matches ANSI CSI select-graphic-rendition sequences such as
// "\x1b[0m" or "\x1b[1;31m". Other escape sequences are left untouched.
var ansiSGR = regexp.MustCompile("\x1b\\[[0-9;]*m")

// Sanitize returns line with every ANSI color/style sequence removed.
// Malformed or unterminated sequences are kept as literal text.
//
// Removal repeats until no sequence is left, so a sequence that only
// appears once an inner one is stripped ("\x1b[\x1b[0mm") is removed as
// well and Sanitize(Sanitize(s)) == Sanitize(s) always holds.
func Sanitize(line string) string {
	for ansiSGR.MatchString(line) {
		line = ansiSGR.ReplaceAllLiteralString(line, "")
	}
	return line
}
