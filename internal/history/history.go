// Package history implements the client's undoable stack of applied
// filters, mirrored 1:1 to a durable counter-prefixed text file. The
// mirror's first line holds the frame count left-padded to a fixed
// width so it can be rewritten in place; each remaining line holds one
// filter string, oldest first.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/logferry/logferry/internal/model"
)

const (
	headerPrefix = "Total filters: "
	headerFormat = "Total filters: %10d\n"
	headerSize   = int64(len(headerPrefix) + 10 + 1)
)

var (
	// ErrNoHistory reports a pop on an empty stack. No state changes.
	ErrNoHistory = errors.New("history: no history to undo")

	// ErrCorrupted reports a mirror file whose counter disagrees with
	// its line count, or a partially applied rewrite. Further mutation
	// is refused until the file is manually resolved.
	ErrCorrupted = errors.New("history: mirror file corrupted")
)

// Frame is one applied filter action: the resulting view plus the raw
// filter string that produced it.
type Frame struct {
	Results []model.LogEntry
	Filter  string
}

// Stack mirrors every push and pop to the file it was opened with. The
// mirror is owned exclusively by this process; result sets live only in
// memory and restore empty when an existing mirror is reopened.
type Stack struct {
	mu        sync.Mutex
	file      *os.File
	frames    []Frame
	offsets   []int64 // start offset of each filter line
	size      int64   // current end-of-file offset
	corrupted bool
}

// Open opens or creates the mirror file at path and restores the stack
// recorded in it. A counter/line-count mismatch is ErrCorrupted.
func Open(path string) (*Stack, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("history: open mirror: %w", err)
	}

	s := &Stack{file: f}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("history: stat mirror: %w", err)
	}

	if info.Size() == 0 {
		if err := s.writeHeader(0); err != nil {
			f.Close()
			return nil, err
		}
		s.size = headerSize
		return s, nil
	}

	if err := s.restore(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stack) restore() error {
	if _, err := s.file.Seek(0, 0); err != nil {
		return fmt.Errorf("history: seek mirror: %w", err)
	}

	scanner := bufio.NewScanner(s.file)
	if !scanner.Scan() {
		return fmt.Errorf("%w: missing counter line", ErrCorrupted)
	}
	header := scanner.Text()
	if !strings.HasPrefix(header, headerPrefix) {
		return fmt.Errorf("%w: bad counter line %q", ErrCorrupted, header)
	}
	count, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, headerPrefix)))
	if err != nil || count < 0 {
		return fmt.Errorf("%w: bad counter %q", ErrCorrupted, header)
	}

	offset := int64(len(header)) + 1
	for scanner.Scan() {
		line := scanner.Text()
		s.frames = append(s.frames, Frame{Filter: line})
		s.offsets = append(s.offsets, offset)
		offset += int64(len(line)) + 1
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("history: read mirror: %w", err)
	}
	s.size = offset

	if count != len(s.frames) {
		return fmt.Errorf("%w: counter says %d frames, file holds %d", ErrCorrupted, count, len(s.frames))
	}
	return nil
}

func (s *Stack) writeHeader(count int) error {
	header := fmt.Sprintf(headerFormat, count)
	if _, err := s.file.WriteAt([]byte(header), 0); err != nil {
		return fmt.Errorf("history: rewrite counter: %w", err)
	}
	return nil
}

// Push appends f to the stack and mirrors it durably: the filter line
// is appended first, then the counter is rewritten, so any partial
// application is detectable as a counter/line-count mismatch.
func (s *Stack) Push(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupted {
		return ErrCorrupted
	}

	line := []byte(f.Filter + "\n")
	if _, err := s.file.WriteAt(line, s.size); err != nil {
		s.corrupted = true
		return fmt.Errorf("history: append filter line: %w", err)
	}
	if err := s.writeHeader(len(s.frames) + 1); err != nil {
		s.corrupted = true
		return err
	}
	if err := s.file.Sync(); err != nil {
		s.corrupted = true
		return fmt.Errorf("history: sync mirror: %w", err)
	}

	s.offsets = append(s.offsets, s.size)
	s.size += int64(len(line))
	s.frames = append(s.frames, f)
	return nil
}

// Pop removes the most recent frame from the stack and the mirror,
// restoring the view to the prior frame. Popping an empty stack is
// ErrNoHistory and leaves all state untouched.
func (s *Stack) Pop() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupted {
		return Frame{}, ErrCorrupted
	}
	if len(s.frames) == 0 {
		return Frame{}, ErrNoHistory
	}

	last := len(s.frames) - 1
	newSize := s.offsets[last]
	if err := s.file.Truncate(newSize); err != nil {
		s.corrupted = true
		return Frame{}, fmt.Errorf("history: truncate mirror: %w", err)
	}
	if err := s.writeHeader(last); err != nil {
		s.corrupted = true
		return Frame{}, err
	}
	if err := s.file.Sync(); err != nil {
		s.corrupted = true
		return Frame{}, fmt.Errorf("history: sync mirror: %w", err)
	}

	f := s.frames[last]
	s.frames = s.frames[:last]
	s.offsets = s.offsets[:last]
	s.size = newSize
	return f, nil
}

// CurrentView returns the top frame's result set, or an empty set when
// the stack is empty.
func (s *Stack) CurrentView() []model.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return []model.LogEntry{}
	}
	return s.frames[len(s.frames)-1].Results
}

// Depth returns the number of filter/query actions on the stack.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Filters returns the filter strings on the stack, oldest first.
func (s *Stack) Filters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Filter
	}
	return out
}

// Close closes the mirror file.
func (s *Stack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
