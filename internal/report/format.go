package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format selects how the block list itself is written.
type Format string

const (
	FormatText Format = "text"
	FormatIDs  Format = "ids"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"

	errMessageUnknownFormat = "unknown output format"
	unknownFormatErrorFmt   = "%w %q (want text, ids, csv or json)"
	writeErrorFormat        = "write %s report: %w"
	summaryHeaderFormat     = "Seed: %s (%s mode)\n"
	summaryTargetFormat     = "Target: %s [%s]\n"
	summaryDimensionFormat  = "  %-18s %d\n"
	summaryCandidatesFormat = "Candidates: %d\n"
	summaryExcludedFormat   = "Protected and excluded: %d\n"
	summaryBlockListFormat  = "Accounts to block: %d\n"
	textRecordFormat        = "%s\t%s\n"
	interactionsHeading     = "Interactions:\n"
	protectiveHeading       = "Protected:\n"
)

var csvHeader = []string{"id", "handle", "display_name"}

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New(errMessageUnknownFormat)

// ParseFormat maps a flag value to a Format.
func ParseFormat(value string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(value)))
	switch format {
	case FormatText, FormatIDs, FormatCSV, FormatJSON:
		return format, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf(unknownFormatErrorFmt, ErrUnknownFormat, value)
	}
}

// WriteSummary writes the per-set counts.
func WriteSummary(writer io.Writer, summary Summary) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, summaryHeaderFormat, summary.Seed, summary.Mode)
	if summary.Target.AccountID != "" {
		fmt.Fprintf(&builder, summaryTargetFormat, accountLabel(summary.Target), summary.Target.AccountID)
	}
	builder.WriteString(interactionsHeading)
	for _, dimension := range summary.Interactions {
		fmt.Fprintf(&builder, summaryDimensionFormat, dimension.Name, dimension.Count)
	}
	builder.WriteString(protectiveHeading)
	for _, dimension := range summary.Protective {
		fmt.Fprintf(&builder, summaryDimensionFormat, dimension.Name, dimension.Count)
	}
	fmt.Fprintf(&builder, summaryCandidatesFormat, summary.Candidates)
	fmt.Fprintf(&builder, summaryExcludedFormat, summary.Excluded)
	fmt.Fprintf(&builder, summaryBlockListFormat, len(summary.BlockList))

	if _, err := io.WriteString(writer, builder.String()); err != nil {
		return fmt.Errorf(writeErrorFormat, "summary", err)
	}
	return nil
}

// WriteBlockList writes the block list members in format.
func WriteBlockList(writer io.Writer, summary Summary, format Format) error {
	var err error
	switch format {
	case FormatText:
		err = writeText(writer, summary)
	case FormatIDs:
		err = writeIDs(writer, summary)
	case FormatCSV:
		err = writeCSV(writer, summary)
	case FormatJSON:
		err = writeJSONLines(writer, summary)
	default:
		return fmt.Errorf(unknownFormatErrorFmt, ErrUnknownFormat, string(format))
	}
	if err != nil {
		return fmt.Errorf(writeErrorFormat, format, err)
	}
	return nil
}

func writeText(writer io.Writer, summary Summary) error {
	for _, record := range summary.BlockList {
		if _, err := fmt.Fprintf(writer, textRecordFormat, record.AccountID, accountLabel(record)); err != nil {
			return err
		}
	}
	return nil
}

func writeIDs(writer io.Writer, summary Summary) error {
	for _, accountID := range summary.BlockListIDs() {
		if _, err := fmt.Fprintln(writer, accountID); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(writer io.Writer, summary Summary) error {
	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(csvHeader); err != nil {
		return err
	}
	for _, record := range summary.BlockList {
		if err := csvWriter.Write([]string{record.AccountID, record.UserName, record.DisplayName}); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func writeJSONLines(writer io.Writer, summary Summary) error {
	encoder := json.NewEncoder(writer)
	for _, record := range summary.BlockList {
		if err := encoder.Encode(record); err != nil {
			return err
		}
	}
	return nil
}
