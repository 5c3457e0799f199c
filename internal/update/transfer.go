package update

import (
	"io"

	"github.com/greenwave/gwupdate/internal/types"
)

// progressWriter counts bytes on their way to disk and reports each chunk.
type progressWriter struct {
	w     io.Writer
	done  int64
	total int64
	emit  func(Event)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if n > 0 {
		p.emit(Event{Phase: types.PhaseDownloading, BytesDone: p.done, BytesTotal: p.total})
	}
	return n, err
}

// transfer streams src into dst as bytes arrive.
func transfer(dst io.Writer, src io.Reader, total int64, emit func(Event)) (int64, error) {
	pw := &progressWriter{w: dst, total: total, emit: emit}
	return io.Copy(pw, src)
}
