package schedule

import (
	"bufio"
	"io"
	"strings"
)

// tokenizeRows splits CSV text into logical rows. A quote character toggles
// the in-quotes state and is dropped, so quoted fields may span physical
// lines (the newline is kept) and contain commas. Fields are trimmed.
// Lines have no length limit; callers bound the input size.
func tokenizeRows(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)

	var (
		rows    [][]string
		row     []string
		field   strings.Builder
		inQuote bool
	)

	for {
		raw, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		if readErr == io.EOF && raw == "" {
			break
		}
		line := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")

		for _, ch := range line {
			switch {
			case ch == '"':
				inQuote = !inQuote
			case ch == ',' && !inQuote:
				row = append(row, strings.TrimSpace(field.String()))
				field.Reset()
			default:
				field.WriteRune(ch)
			}
		}

		if readErr == io.EOF {
			break
		}

		// Quoted field continues on the next physical line
		if inQuote {
			field.WriteByte('\n')
			continue
		}

		row = append(row, strings.TrimSpace(field.String()))
		rows = append(rows, row)
		row = nil
		field.Reset()
	}

	// Last line without a newline, or an unterminated quote: keep what we have
	if inQuote || field.Len() > 0 || len(row) > 0 {
		row = append(row, strings.TrimSpace(field.String()))
		rows = append(rows, row)
	}

	return rows, nil
}
