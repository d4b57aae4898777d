package cfb

import (
	"errors"
	"fmt"
	"io"
)

// Stream reads one stream of an open compound file. It implements
// io.ReadSeeker over exactly the stream's declared length.
type Stream struct {
	StreamId uint32
	TotalLen uint64
	Position uint64

	chain *Chain
}

func newStream(streamId uint32, totalLen uint64, chain *Chain) *Stream {
	return &Stream{
		StreamId: streamId,
		TotalLen: totalLen,
		chain:    chain,
	}
}

func (s *Stream) Len() uint64 {
	return s.TotalLen
}

func (s *Stream) Read(p []byte) (int, error) {
	if s.Position >= s.TotalLen {
		return 0, io.EOF
	}

	remaining := s.TotalLen - s.Position
	if uint64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := s.chain.Read(p)
	s.Position += uint64(n)
	if errors.Is(err, io.EOF) {
		return n, fmt.Errorf("stream %v ended at %v of %v bytes: %w", s.StreamId, s.Position, s.TotalLen, ErrorTruncated)
	}

	return n, err
}

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(s.Position) + offset
	case io.SeekEnd:
		pos = int64(s.TotalLen) + offset
	default:
		return 0, fmt.Errorf("invalid whence %v", whence)
	}

	if pos < 0 || pos > int64(s.TotalLen) {
		return 0, fmt.Errorf("seek to %v outside stream of %v bytes", pos, s.TotalLen)
	}

	if _, err := s.chain.Seek(pos, io.SeekStart); err != nil {
		return 0, err
	}

	s.Position = uint64(pos)
	return pos, nil
}

func (s *Stream) readAll() ([]byte, error) {
	buf := make([]byte, s.TotalLen-s.Position)
	if _, err := io.ReadFull(s, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
