// Package fetcher pulls candidate stream entries from a third-party
// Icecast-style directory listing (a YP XML document).
package fetcher

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Entry is one candidate stream from the directory listing: a listen URL plus
// the metadata the submitter declared. Declared values are untrusted; the
// prober's own findings take precedence during ingestion.
type Entry struct {
	Name       string `xml:"server_name"`
	ListenURL  string `xml:"listen_url"`
	Genre      string `xml:"genre"`
	ServerType string `xml:"server_type"`
	Bitrate    string `xml:"bitrate"`
}

type directoryDoc struct {
	XMLName xml.Name `xml:"directory"`
	Entries []Entry  `xml:"entry"`
}

// ParseDirectory reads a YP XML document and returns its entries. Entries
// without a listen URL are dropped; everything else is passed through for the
// ingestion job to validate.
func ParseDirectory(r io.Reader) ([]Entry, error) {
	var doc directoryDoc
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode directory: %w", err)
	}

	entries := doc.Entries[:0]
	for _, e := range doc.Entries {
		e.ListenURL = strings.TrimSpace(e.ListenURL)
		if e.ListenURL == "" {
			continue
		}
		e.Name = strings.TrimSpace(e.Name)
		e.Genre = strings.TrimSpace(e.Genre)
		entries = append(entries, e)
	}
	return entries, nil
}
