package flatfile

// column.go holds the column scanners. Positions are absolute offsets into
// the buffer handed to ScanRow, so results can be stored without rebasing.
//
// The delimited scanner has one loop per escaping convention. The loop is
// picked once per column from the parser's Escaping, never per byte.

// ScanColumn scans a single column from the start of buf. maxLength only
// matters to fixed-width parsers.
func (p *Parser) ScanColumn(buf []byte, maxLength int) ColumnResult {
	var res ColumnResult
	p.scanColumn(buf, 0, maxLength, &res)
	return res
}

func (p *Parser) scanColumn(buf []byte, start, maxLength int, res *ColumnResult) {
	if p.fixed {
		t, read := p.scanFixedColumn(buf, start, maxLength)
		res.set(t, start, read-start)
		return
	}

	read := start
	end := len(buf)

	// Quote detection happens after the leading spaces.
	if p.trim {
		for read < end && buf[read] == space {
			read++
		}
	}

	quoted := read < end && p.isQuote(buf[read])
	if quoted {
		read++
	}

	var t Delimiter
	switch p.escaping {
	case EscapeDoubledQuote:
		t, read = p.scanDoubledQuote(buf, read, quoted)
	case EscapeSeparate:
		t, read = p.scanSeparateEscape(buf, read, quoted)
	default:
		t, read = p.scanUnescaped(buf, read, quoted)
	}
	res.set(t, start, read-start)
}

// scanDoubledQuote scans a column where a doubled quote is an embedded
// quote. Inside a quoted region a quote at the end of the buffer is
// ambiguous, so the column is reported incomplete.
func (p *Parser) scanDoubledQuote(buf []byte, read int, quoted bool) (Delimiter, int) {
	end := len(buf)
	escaping := quoted
	for read < end {
		c := buf[read]
		switch {
		case c == p.quote:
			read++
			if escaping {
				if read == end {
					return NoDelimiter, read
				}
				if buf[read] == p.quote {
					read++
					continue
				}
			}
			// Closing quote. Anything up to the next delimiter is literal
			// and cannot reopen quoting.
			quoted = false
			escaping = false
		case quoted:
			read++
		case c == p.fieldDelim:
			return FieldDelimiter, read
		case p.isRowDelim(c):
			return RowDelimiter, read
		default:
			read++
		}
	}
	return NoDelimiter, read
}

// scanSeparateEscape scans a column with a distinct escape character. The
// byte after an escape is always literal, quoted or not.
func (p *Parser) scanSeparateEscape(buf []byte, read int, quoted bool) (Delimiter, int) {
	end := len(buf)
	for read < end {
		c := buf[read]
		switch {
		case p.isQuote(c):
			read++
			quoted = false
		case c == p.escape:
			read++
			if read == end {
				return NoDelimiter, read
			}
			read++
		case quoted:
			read++
		case c == p.fieldDelim:
			return FieldDelimiter, read
		case p.isRowDelim(c):
			return RowDelimiter, read
		default:
			read++
		}
	}
	return NoDelimiter, read
}

// scanUnescaped scans a column with no escape character.
func (p *Parser) scanUnescaped(buf []byte, read int, quoted bool) (Delimiter, int) {
	end := len(buf)
	for read < end {
		c := buf[read]
		switch {
		case p.isQuote(c):
			read++
			quoted = false
		case quoted:
			read++
		case c == p.fieldDelim:
			return FieldDelimiter, read
		case p.isRowDelim(c):
			return RowDelimiter, read
		default:
			read++
		}
	}
	return NoDelimiter, read
}

// scanFixedColumn consumes up to maxLength bytes. A full-width column is
// classified as a row delimiter when one follows immediately, so the row
// boundary is not mistaken for the next column's data.
func (p *Parser) scanFixedColumn(buf []byte, read, maxLength int) (Delimiter, int) {
	end := len(buf)
	remaining := maxLength
	for read < end && remaining > 0 {
		if p.isRowDelim(buf[read]) {
			return RowDelimiter, read
		}
		read++
		remaining--
	}

	if read < end {
		if p.isRowDelim(buf[read]) {
			return RowDelimiter, read
		}
		return MaxLength, read
	}
	return NoDelimiter, read
}
