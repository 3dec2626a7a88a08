package service

import (
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/calmstack/jobkeep/internal/job"
)

// DefaultTailLines is the tail length used when the caller asks for zero.
const DefaultTailLines = 20

// Get returns a copy of the job record, or nil when the id is
// unknown. A RUNNING record with no live handle (e.g. after a restart that
// skipped reload reclassification) is logged as an inconsistency but not
// corrected here; correction is the monitor's exclusive responsibility.
func (s *Service) Get(id string) *job.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return nil
	}
	if rec.Status == job.StatusRunning {
		if _, live := s.handles[id]; !live {
			slog.Warn("job reports RUNNING but has no live handle", "job", id)
		}
	}
	return rec.Clone()
}

// List returns copies of all records, ordered by creation time then
// id so output is stable.
func (s *Service) List() []*job.Record {
	s.mu.Lock()
	out := make([]*job.Record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, rec.Clone())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FullLog reads the job's log file from disk, so log size never grows the
// service's memory footprint beyond one read. maxChars > 0 keeps only the
// trailing maxChars characters. A job without a log file yet yields "".
func (s *Service) FullLog(id string, maxChars int) (string, error) {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	var path string
	if ok {
		path = rec.OutputLogPath
	}
	s.mu.Unlock()
	if !ok {
		return "", job.ErrNotFound
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	content := string(b)
	if maxChars > 0 && len(content) > maxChars {
		cut := len(content) - maxChars
		// Advance to the next rune boundary so the suffix never starts
		// mid-sequence.
		for cut < len(content) && !utf8.RuneStart(content[cut]) {
			cut++
		}
		content = content[cut:]
	}
	return content, nil
}

// LogTail returns the last n lines of the full log; n <= 0 means
// DefaultTailLines.
func (s *Service) LogTail(id string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultTailLines
	}
	content, err := s.FullLog(id, 0)
	if err != nil {
		return nil, err
	}
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return []string{}, nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
