// toc.go implements the table-of-contents component: a plain-text listing
// of every component kind present for a generation, written last and
// renamed atomically so its presence is the commit signal.
package sstable

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/aalhour/sstablewriter/internal/vfs"
)

// WriteTOC writes one component-kind name per line to sink.
func WriteTOC(sink *SequentialSink, kinds []ComponentKind) error {
	var buf strings.Builder
	for _, k := range kinds {
		buf.WriteString(k.String())
		buf.WriteByte('\n')
	}
	return sink.Write([]byte(buf.String()))
}

// ReadTOC reads the TOC file at path and returns the listed component
// kinds.
func ReadTOC(fs vfs.FS, path string) ([]ComponentKind, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var kinds []ComponentKind
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		kind, err := parseComponentKind(line)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, scanner.Err()
}

func parseComponentKind(name string) (ComponentKind, error) {
	for _, k := range []ComponentKind{Data, PrimaryIndex, Summary, Filter, Statistics, CompressionInfo, Crc, Digest, Toc} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("sstable: unknown TOC component kind %q", name)
}
