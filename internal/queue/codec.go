package queue

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"linkdrain/internal/types"
)

// The wire format is semicolon-delimited CSV with a header row. Column names
// match the source lists this system ingests; Domain is optional.
const (
	colItemID  = "UrlId"
	colLongURL = "longUrl"
	colDomain  = "Domain"
	colShort   = "shortUrl"

	delimiter = ';'
)

// DecodeItems parses a work list from its CSV encoding. Column order is not
// significant; UrlId and longUrl are required columns, Domain is optional.
// Row order is preserved.
func DecodeItems(r io.Reader) ([]types.WorkItem, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("codec: failed to read header: %w", err)
	}

	idx := map[string]int{}
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	idIdx, ok := idx[colItemID]
	if !ok {
		return nil, fmt.Errorf("codec: missing required column %q", colItemID)
	}
	urlIdx, ok := idx[colLongURL]
	if !ok {
		return nil, fmt.Errorf("codec: missing required column %q", colLongURL)
	}
	domainIdx, hasDomain := idx[colDomain]

	var items []types.WorkItem
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("codec: failed to read row %d: %w", len(items)+2, err)
		}
		item := types.WorkItem{
			ItemID:  record[idIdx],
			LongURL: record[urlIdx],
		}
		if hasDomain && domainIdx < len(record) {
			item.Domain = record[domainIdx]
		}
		items = append(items, item)
	}
	return items, nil
}

// EncodeItems serializes a work list in the wire format, preserving order.
// An empty list still produces a header row so round-trips are lossless.
func EncodeItems(items []types.WorkItem) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = delimiter

	if err := cw.Write([]string{colItemID, colLongURL, colDomain}); err != nil {
		return nil, fmt.Errorf("codec: failed to write header: %w", err)
	}
	for _, item := range items {
		if err := cw.Write([]string{item.ItemID, item.LongURL, item.Domain}); err != nil {
			return nil, fmt.Errorf("codec: failed to write row for item %s: %w", item.ItemID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("codec: flush failed: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeResults serializes the final artifact: one row per original item, in
// original order, with the joined short URL as the last column. Rows with a
// missing result carry an empty shortUrl value rather than being dropped.
func EncodeResults(rows []types.ResultRow) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = delimiter

	if err := cw.Write([]string{colItemID, colLongURL, colDomain, colShort}); err != nil {
		return nil, fmt.Errorf("codec: failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.ItemID, row.LongURL, row.Domain, row.ShortURL}); err != nil {
			return nil, fmt.Errorf("codec: failed to write row for item %s: %w", row.ItemID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("codec: flush failed: %w", err)
	}
	return buf.Bytes(), nil
}
