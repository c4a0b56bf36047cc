package flatfile

// StripQuoting rewrites every non-null column of result in place, removing
// quote and escape syntax, and records the new lengths. With trim set,
// leading and trailing spaces are removed first. The scanned buffer is
// modified; raw views of the row are no longer meaningful afterwards.
func (p *Parser) StripQuoting(result *RowResult, trim bool) {
	n := len(result.columns)
	if cap(result.stripped) < n {
		result.stripped = make([]int, n)
	}
	result.stripped = result.stripped[:n]

	for i, c := range result.columns {
		if !c.valid {
			result.stripped[i] = 0
			continue
		}
		result.stripped[i] = p.StripValue(result.buf[c.offset:c.offset+c.size], trim)
	}
}

// StripValue normalizes a single value in place and returns its new
// length. The write index never passes the read index.
func (p *Parser) StripValue(b []byte, trim bool) int {
	if len(b) == 0 {
		return 0
	}
	size := len(b)
	if trim {
		size = trimSpaces(b)
	}
	b = b[:size]
	if size == 0 {
		return 0
	}

	read := 0
	quoted := p.isQuote(b[0])
	if quoted {
		read++
	}

	switch p.escaping {
	case EscapeDoubledQuote:
		return stripDoubledQuote(b, read, quoted, p.quote)
	case EscapeSeparate:
		return stripSeparateEscape(b, read, quoted, p.quote, p.escape)
	default:
		return stripUnescaped(b, read, quoted, p.quote)
	}
}

// stripDoubledQuote collapses doubled quotes inside a quoted value and
// stops at the closing quote. Unquoted values are copied as they are, so
// a"" stays a"" and stripping twice changes nothing.
func stripDoubledQuote(b []byte, read int, quoted bool, quote byte) int {
	if !quoted {
		return len(b)
	}
	write := 0
	for read < len(b) {
		c := b[read]
		if c == quote {
			read++
			if read < len(b) && b[read] == quote {
				b[write] = quote
				write++
				read++
				continue
			}
			break
		}
		b[write] = c
		write++
		read++
	}
	return write
}

// stripSeparateEscape drops escape characters, keeping the byte that
// follows each one, and stops at the closing quote of a quoted value.
func stripSeparateEscape(b []byte, read int, quoted bool, quote, escape byte) int {
	write := 0
	for read < len(b) {
		c := b[read]
		switch {
		case quoted && c == quote:
			return write
		case c == escape:
			read++
			if read < len(b) {
				b[write] = b[read]
				write++
				read++
			}
		default:
			b[write] = c
			write++
			read++
		}
	}
	return write
}

// stripUnescaped removes the enclosing quotes of a quoted value.
func stripUnescaped(b []byte, read int, quoted bool, quote byte) int {
	if !quoted {
		return len(b)
	}
	end := read
	for end < len(b) && b[end] != quote {
		end++
	}
	return copy(b, b[read:end])
}

// trimSpaces removes leading and trailing spaces by shifting the remaining
// bytes to the front of b.
func trimSpaces(b []byte) int {
	start, end := 0, len(b)
	for start < end && b[start] == space {
		start++
	}
	for end > start && b[end-1] == space {
		end--
	}
	return copy(b, b[start:end])
}
