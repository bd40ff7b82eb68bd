package serial

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strconv"
	"strings"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/gcode"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/pool"
)

var logger = log.GetLogger("serial")

// Sender streams GCode lines, waiting for the firmware's "ok" after each
// one. Lines starting with "echo:" or other status output are skipped.
type Sender struct {
	rw          io.ReadWriter
	pending     []byte
	lineNumbers bool
	lineNo      int
	progress    func(done, total int)
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithLineNumbers prefixes each line with "N<n>" and appends a "*<xor>"
// checksum, as expected by firmwares that verify transmission.
func WithLineNumbers() SenderOption {
	return func(s *Sender) { s.lineNumbers = true }
}

// WithProgress reports sent instructions.
func WithProgress(fn func(done, total int)) SenderOption {
	return func(s *Sender) { s.progress = fn }
}

// NewSender creates a sender over rw. rw may be a *Port or any
// line-oriented connection. A Read returning ErrTimeout is retried.
func NewSender(rw io.ReadWriter, opts ...SenderOption) *Sender {
	s := &Sender{rw: rw}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendLine sends one line and waits for its acknowledgement.
func (s *Sender) SendLine(ctx context.Context, line string) error {
	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)

	if s.lineNumbers {
		s.lineNo++
		buf.WriteByte('N')
		buf.AppendInt(s.lineNo)
		buf.WriteByte(' ')
		buf.WriteString(line)
		sum := checksum(buf.Bytes())
		buf.WriteByte('*')
		buf.AppendInt(int(sum))
	} else {
		buf.WriteString(line)
	}
	buf.WriteByte('\n')

	if _, err := s.rw.Write(buf.Bytes()); err != nil {
		return err
	}

	for {
		reply, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		switch {
		case strings.HasPrefix(reply, "ok"):
			return nil
		case strings.HasPrefix(reply, "Error") || strings.HasPrefix(reply, "error") || strings.HasPrefix(reply, "!!"):
			return errors.New(errors.ErrSerial, "firmware rejected line: "+reply).
				SetToken(line).
				SetContext("line_number", s.lineNo)
		default:
			logger.Debug("firmware: %s", reply)
		}
	}
}

// Send streams every instruction of modules and returns how many were
// acknowledged. Cancellation is checked between lines.
func (s *Sender) Send(ctx context.Context, modules []gcode.InstructionModule) (int, error) {
	total := 0
	for i := range modules {
		total += len(modules[i].Instructions)
	}

	sent := 0
	for i := range modules {
		for _, in := range modules[i].Instructions {
			if err := ctx.Err(); err != nil {
				return sent, err
			}
			if err := s.SendLine(ctx, in.ToGCode()); err != nil {
				return sent, err
			}
			sent++
			if s.progress != nil {
				s.progress(sent, total)
			}
		}
	}
	logger.Info("sent %d instructions", sent)
	return sent, nil
}

// readLine returns the next non-empty reply line without terminator.
func (s *Sender) readLine(ctx context.Context) (string, error) {
	chunk := make([]byte, 256)
	for {
		if idx := bytes.IndexByte(s.pending, '\n'); idx >= 0 {
			line := strings.TrimSpace(string(s.pending[:idx]))
			s.pending = s.pending[idx+1:]
			if line != "" {
				return line, nil
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := s.rw.Read(chunk)
		s.pending = append(s.pending, chunk[:n]...)
		if err != nil {
			if stderrors.Is(err, ErrTimeout) {
				continue
			}
			return "", err
		}
	}
}

// checksum is the XOR of all bytes of a numbered line.
func checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum ^= c
	}
	return sum
}

// FormatNumbered renders a line the way WithLineNumbers sends it.
func FormatNumbered(n int, line string) string {
	body := "N" + strconv.Itoa(n) + " " + line
	return body + "*" + strconv.Itoa(int(checksum([]byte(body))))
}
