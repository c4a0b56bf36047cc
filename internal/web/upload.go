package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// uploadField is the multipart field holding the file.
const uploadField = "file"

// openUpload returns the uploaded file and its name without buffering it.
// A multipart/form-data request carries the file in the "file" field; any
// other body is the file itself, named by the filename query parameter.
// The body is capped at LOAD_MAX_FILE_SIZE and the write deadline lifted,
// since reading a large upload can take longer than SERVER_WRITE_TIMEOUT.
func (s *Server) openUpload(w http.ResponseWriter, r *http.Request) (io.Reader, string, error) {
	clearWriteDeadline(w)
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Load.MaxFileSize))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return s.limitErrors(r.Body), r.URL.Query().Get(paramFileName), nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid multipart form: %v", errInvalidParam, err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, "", errNoFile
		}
		if err != nil {
			return nil, "", s.tooLarge(fmt.Errorf("read multipart form: %w", err))
		}
		if part.FormName() == uploadField {
			return s.limitErrors(part), part.FileName(), nil
		}
		part.Close()
	}
}

// clearWriteDeadline removes the server write timeout for this response.
// Writers without deadline support are left alone.
func clearWriteDeadline(w http.ResponseWriter) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
}

// tooLarge rewrites a body size error into errFileTooLarge with the limit.
func (s *Server) tooLarge(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: exceeds %s", errFileTooLarge, s.cfg.Load.MaxFileSize)
	}
	return err
}

func (s *Server) limitErrors(r io.Reader) io.Reader {
	return &sizeErrReader{r: r, s: s}
}

// sizeErrReader reports an oversized body as errFileTooLarge so the load
// or preview error carries a user-facing message.
type sizeErrReader struct {
	r io.Reader
	s *Server
}

func (e *sizeErrReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF {
		err = e.s.tooLarge(err)
	}
	return n, err
}

// spooledFile is an upload copied to disk. Close removes it.
type spooledFile struct {
	*os.File
}

func (f spooledFile) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); err == nil {
		err = rmErr
	}
	return err
}

// spool copies r to a temporary file in dir and rewinds it, so a load can
// outlive the request that uploaded it.
func spool(dir string, r io.Reader) (io.ReadCloser, int64, error) {
	f, err := os.CreateTemp(dir, "flatload-*.upload")
	if err != nil {
		return nil, 0, fmt.Errorf("spool upload: %w", err)
	}
	sf := spooledFile{f}

	n, err := io.Copy(f, r)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		sf.Close()
		return nil, 0, err
	}
	return sf, n, nil
}

// humanSize formats byte counts for responses and logs.
func humanSize(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(n))
}
