// Package flatfile scans delimited and fixed-width flat files directly out
// of caller-owned buffers.
//
// # Scanning
//
// A [Parser] is built once from a [Config] and scans rows against a
// [Schema]:
//
//	p, err := flatfile.NewParser(flatfile.Config{
//	    FieldDelimiter:   ',',
//	    RowDelimiter:     '\n',
//	    Quote:            '"',
//	    Escape:           '"',
//	    TrimLeadingSpace: true,
//	})
//	schema := flatfile.MustSchema(flatfile.Columns(3, 256), flatfile.SchemaOptions{})
//
//	var row flatfile.RowResult
//	p.ScanRow(buf, schema, &row)
//	switch {
//	case row.Status == flatfile.StatusIncompleteColumn:
//	    // read more and rescan from the same row start
//	case row.Status != flatfile.StatusOK:
//	    // malformed row, row.Next still points at the following row
//	}
//	p.StripQuoting(&row, true)
//	buf = buf[row.Next:]
//
// A [RowResult] never copies: its columns are offsets into buf. Row
// delimiters split across reads are absorbed at the start of the next scan,
// so the caller only has to keep the bytes of the current row.
//
// # Statuses
//
// Malformed data is reported through [Status], never through errors or
// panics. A panic from this package is a bug in the package.
//
// The scanner never sets [StatusRowTooLarge]. Whoever supplies the buffer
// owns the row size limit and marks the row with [RowResult.MarkRowTooLarge].
package flatfile
