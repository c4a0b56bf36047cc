package flatfile

// ScanRow scans one row from the start of buf into result. All offsets in
// result refer to buf. On StatusIncompleteColumn the caller must supply a
// buffer holding the whole row and scan again from the row start; nothing
// is carried over between calls.
func (p *Parser) ScanRow(buf []byte, schema *Schema, result *RowResult) {
	bounded := schema.Bounded()
	strict := schema.Strict()
	maxColumns := schema.MaxColumns()

	if bounded {
		result.prepare(buf, schema.ResultColumns())
	} else {
		result.prepare(buf, 0)
	}

	// Leftover delimiter bytes: a CRLF split across two reads leaves the
	// LF at the start of this buffer.
	offset := p.SkipRowDelimiters(buf)

	var col ColumnResult
	col.Next = offset
	rowDelim := false
	for i := 0; i < maxColumns; i++ {
		p.scanColumn(buf, offset, schema.MaxLength(i), &col)

		done := false
		switch col.Type {
		case NoDelimiter:
			result.Status = StatusIncompleteColumn
			done = true
		case RowDelimiter:
			if strict && i+1 != maxColumns {
				if i == 0 {
					result.Status = StatusNoColumnDelimiter
				} else {
					result.Status = StatusTooFewColumns
				}
			}
			done = true
			rowDelim = true
		case FieldDelimiter, MaxLength:
			if strict && i+1 == maxColumns {
				result.Status = StatusTooManyColumns
				done = true
			}
		}

		if bounded {
			if target := schema.Target(i); target != Drop {
				result.setColumn(target, offset, col.Size)
			}
		} else {
			result.addColumn(offset, col.Size)
		}

		offset = col.Next
		if done {
			break
		}
	}

	result.Current = 0
	result.Next = p.scanRowEnd(buf, col.Next, rowDelim, result)
}

// scanRowEnd consumes the delimiter run that ends the row and returns the
// start of the next row.
func (p *Parser) scanRowEnd(buf []byte, read int, rowDelim bool, result *RowResult) int {
	switch result.Status {
	case StatusIncompleteColumn, StatusRowTooLarge:
		return read
	}

	// Columns past the schema, or a lenient row's tail, run up to the
	// next row delimiter.
	if !rowDelim {
		read = p.findRowDelimiter(buf, read)
		if read == len(buf) {
			return read
		}
	}
	result.RowDelimiters++

	return read + p.SkipRowDelimiters(buf[read:])
}

// SkipRowDelimiters returns the length of the run of row delimiter bytes at
// the start of buf.
func (p *Parser) SkipRowDelimiters(buf []byte) int {
	n := 0
	for n < len(buf) && p.isRowDelim(buf[n]) {
		n++
	}
	return n
}

// IndexRowDelimiter returns the index of the first row delimiter byte in
// buf, or -1. Quoting is not considered.
func (p *Parser) IndexRowDelimiter(buf []byte) int {
	if i := p.findRowDelimiter(buf, 0); i < len(buf) {
		return i
	}
	return -1
}

func (p *Parser) findRowDelimiter(buf []byte, read int) int {
	for read < len(buf) && !p.isRowDelim(buf[read]) {
		read++
	}
	return read
}
