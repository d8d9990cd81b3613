package capi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JournalDate selects a past day's journal.
type JournalDate struct {
	Year  int
	Month int
	Day   int
}

// ParseJournalDate accepts all three parts or none. All zero means today.
func ParseJournalDate(year, month, day int) (*JournalDate, error) {
	if year == 0 && month == 0 && day == 0 {
		return nil, nil
	}
	if year == 0 || month == 0 || day == 0 {
		return nil, fmt.Errorf("year, month and day must be given together")
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return nil, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return &JournalDate{Year: year, Month: month, Day: day}, nil
}

// Path is the URL suffix, e.g. "/2025/01/31".
func (d JournalDate) Path() string {
	return fmt.Sprintf("/%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

func (d JournalDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// CountJournalEvents counts events in a journal payload. CAPI serves one JSON
// object per line; a JSON array is accepted as well.
func CountJournalEvents(payload []byte) int {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return 0
	}
	if trimmed[0] == '[' {
		var events []json.RawMessage
		if err := json.Unmarshal(trimmed, &events); err == nil {
			return len(events)
		}
	}

	n := 0
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 64*1024), maxBodyBytes)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			n++
		}
	}
	return n
}
