package scanner

// number scans a Lox number literal: a run of decimal digits, optionally
// followed by a '.' and another run of digits. Lox has no hex/octal/binary
// prefixes, no exponents and no digit separators.
func (s *Scanner) number() (lit string) {
	start := s.off

	for isDecimal(s.cur) {
		s.advance()
	}
	if s.cur == '.' && isDecimal(rune(s.peek())) {
		s.advance()
		for isDecimal(s.cur) {
			s.advance()
		}
	}

	return string(s.src[start:s.off])
}

func isDecimal(rn rune) bool {
	return '0' <= rn && rn <= '9'
}
