package job

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/platinummonkey/eventlens/pkg/events"
)

// maxLineSize bounds a single NDJSON record
const maxLineSize = 16 << 20

// ReadRecords decodes raw records from either a JSON array or
// newline-delimited JSON objects. Numbers are kept as json.Number so that
// large integer timestamps survive decoding exactly. Blank NDJSON lines are
// skipped. A malformed document is an error; semantically invalid records
// are left for the processor to reject.
func ReadRecords(r io.Reader) ([]events.Record, error) {
	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	if first == '[' {
		return readArray(br)
	}
	return readLines(br)
}

// ReadRecordsFile reads records from path
func ReadRecordsFile(path string) ([]events.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func readArray(r io.Reader) ([]events.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []events.Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode record array: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after record array")
	}
	return records, nil
}

func readLines(r io.Reader) ([]events.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []events.Record
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var rec events.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}
