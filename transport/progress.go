package transport

import "io"

// ProgressReader reports the absolute position after every Read.
type ProgressReader struct {
	Reader      io.Reader
	Total       int64
	Transferred int64 // starts at the resume offset
	OnProgress  func(transferred, total int64) error
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.Transferred += int64(n)
		if pr.OnProgress != nil {
			if perr := pr.OnProgress(pr.Transferred, pr.Total); perr != nil {
				return n, perr
			}
		}
	}
	return n, err
}

// copyWithProgress moves src into dst chunk by chunk, reporting the
// absolute position after each chunk. offset is where src starts.
func copyWithProgress(dst io.Writer, src io.Reader, buf []byte, offset, total int64, progress func(done, total int64) error) error {
	done := offset
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			done += int64(n)
			if progress != nil {
				if perr := progress(done, total); perr != nil {
					return perr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
