package foldseek

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const structureSuffix = ".pdb"

// ParseListing reads a FASTA-style representative listing and returns the
// structure names, in listing order: for every header line (starting with
// '>') the text up to the first ".pdb". Sequence lines are skipped. A
// header without ".pdb" is an error.
func ParseListing(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if !strings.HasPrefix(text, ">") {
			continue
		}
		end := strings.Index(text, structureSuffix)
		if end < 0 {
			return nil, fmt.Errorf("listing line %d: header %q has no %s name", line, text, structureSuffix)
		}
		names = append(names, text[1:end])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading listing: %w", err)
	}
	return names, nil
}
