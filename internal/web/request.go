package web

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/flatload/internal/loader"
)

// Query parameters shared by preview and load requests.
const (
	paramFormat      = "format"
	paramDelimiter   = "delimiter"
	paramQuote       = "quote"
	paramEscape      = "escape"
	paramTrim        = "trim"
	paramWidths      = "widths"
	paramColumns     = "columns"
	paramSchema      = "schema"
	paramHeader      = "header"
	paramLenient     = "lenient"
	paramMatchHeader = "match_header"
	paramReplace     = "replace"
	paramMaxRejected = "max_rejected"
	paramRows        = "rows"
	paramFileName    = "filename"
)

// resolveFormat picks the request's format: the format parameter if given,
// else the one registered for the file extension (after any compression
// suffix), else the server default. Character overrides from the query
// apply on top in every case.
func (s *Server) resolveFormat(q url.Values, fileName string) (loader.Format, error) {
	o, err := parseOverrides(q)
	if err != nil {
		return loader.Format{}, err
	}
	return loader.ChooseFormat(q.Get(paramFormat), fileName, s.defaultFormat, o)
}

func parseOverrides(q url.Values) (loader.Overrides, error) {
	var o loader.Overrides
	chars := []struct {
		param string
		dst   **byte
	}{
		{paramDelimiter, &o.Delimiter},
		{paramQuote, &o.Quote},
		{paramEscape, &o.Escape},
	}
	for _, c := range chars {
		if !q.Has(c.param) {
			continue
		}
		b, err := loader.ParseChar(q.Get(c.param))
		if err != nil {
			return o, fmt.Errorf("%s: %w", c.param, err)
		}
		*c.dst = &b
	}

	if q.Has(paramTrim) {
		trim, err := parseBool(q, paramTrim)
		if err != nil {
			return o, err
		}
		o.Trim = &trim
	}
	return o, nil
}

// loadRequest builds a LoadRequest from the query of a load upload.
func (s *Server) loadRequest(q url.Values, table, fileName string) (loader.LoadRequest, error) {
	req := loader.LoadRequest{
		Table:       table,
		Schema:      q.Get(paramSchema),
		FileName:    fileName,
		MaxRejected: s.cfg.Load.MaxRejected,
	}

	var err error
	if req.Format, err = s.resolveFormat(q, fileName); err != nil {
		return req, err
	}
	if req.Widths, err = parseInts(q, paramWidths); err != nil {
		return req, err
	}
	if cols := q.Get(paramColumns); cols != "" {
		req.Columns = strings.Split(cols, ",")
	}
	if req.HeaderRows, err = parseIntParam(q, paramHeader, 0); err != nil {
		return req, err
	}
	if req.HeaderRows < 0 {
		return req, fmt.Errorf("%w %s: must not be negative", errInvalidParam, paramHeader)
	}
	if req.Lenient, err = parseBool(q, paramLenient); err != nil {
		return req, err
	}
	if req.MaxRejected, err = parseIntParam(q, paramMaxRejected, req.MaxRejected); err != nil {
		return req, err
	}
	if req.MatchHeader, err = parseBool(q, paramMatchHeader); err != nil {
		return req, err
	}
	if req.Replace, err = parseBool(q, paramReplace); err != nil {
		return req, err
	}
	return req, nil
}

// previewRequest builds a PreviewRequest from the query of a preview upload.
func (s *Server) previewRequest(q url.Values, fileName string) (loader.PreviewRequest, error) {
	req := loader.PreviewRequest{FileName: fileName}

	var err error
	if req.Format, err = s.resolveFormat(q, fileName); err != nil {
		return req, err
	}
	if req.Widths, err = parseInts(q, paramWidths); err != nil {
		return req, err
	}
	if req.Rows, err = parseIntParam(q, paramRows, loader.DefaultPreviewRows); err != nil {
		return req, err
	}
	return req, nil
}

// parseIntParam parses an integer query parameter, returning def if absent.
func parseIntParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %q is not an integer", errInvalidParam, name, v)
	}
	return n, nil
}

func parseBool(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w %s: %q is not a boolean", errInvalidParam, name, v)
	}
	return b, nil
}

// parseInts parses a comma-separated integer list such as widths=4,10,2.
func parseInts(q url.Values, name string) ([]int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w %s: %q is not an integer", errInvalidParam, name, p)
		}
		out[i] = n
	}
	return out, nil
}
