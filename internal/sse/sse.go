// Package sse reads the data records of a text/event-stream body.
package sse

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// MaxEventSize bounds a single record. Generator outputs such as
// images can be large.
const MaxEventSize = 16 * 1024 * 1024

// Read calls fn with the data of each record in r until fn returns false
// or the stream ends. Multi-line data is joined with "\n". The slice
// passed to fn is only valid for the duration of the call.
//
// A record still open when the stream ends is delivered too.
func Read(r io.Reader, fn func(data []byte) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxEventSize)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line ends the record
			if data.Len() > 0 {
				if !fn(data.Bytes()) {
					return nil
				}
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(line[len("data:"):], " "))
		}
		// Comments and the event, id and retry fields are not used.
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	if data.Len() > 0 {
		fn(data.Bytes())
	}
	return nil
}

// ReadAll returns the data of every record in r, one record per line.
func ReadAll(r io.Reader) ([]byte, error) {
	var out bytes.Buffer
	err := Read(r, func(data []byte) bool {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.Write(data)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
