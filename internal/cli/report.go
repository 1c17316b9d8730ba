package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/cdnkeeper/internal/tiering"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

type reportRow struct {
	Key          string `json:"key" yaml:"key"`
	Size         int64  `json:"size" yaml:"size"`
	StorageClass string `json:"storage_class" yaml:"storage_class"`
	Outcome      string `json:"outcome" yaml:"outcome"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

type reportDoc struct {
	RunID   string      `json:"run_id" yaml:"run_id"`
	Bucket  string      `json:"bucket" yaml:"bucket"`
	Prefix  string      `json:"prefix" yaml:"prefix"`
	Target  string      `json:"target" yaml:"target"`
	Changed int         `json:"changed" yaml:"changed"`
	Skipped int         `json:"skipped" yaml:"skipped"`
	Failed  int         `json:"failed" yaml:"failed"`
	Objects []reportRow `json:"objects" yaml:"objects"`
}

func newReportDoc(r *tiering.Report) reportDoc {
	doc := reportDoc{
		RunID:   r.RunID,
		Bucket:  r.Bucket,
		Prefix:  r.Prefix,
		Target:  r.Target.String(),
		Changed: r.Changed,
		Skipped: r.Skipped,
		Failed:  r.Failed,
		Objects: make([]reportRow, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		row := reportRow{
			Key:          res.Entry.Key,
			Size:         res.Entry.Size,
			StorageClass: res.Entry.StorageClass.String(),
			Outcome:      string(res.Outcome),
		}
		if res.Err != nil {
			row.Outcome = "failed"
			row.Error = res.Err.Error()
		}
		doc.Objects = append(doc.Objects, row)
	}
	return doc
}

func checkOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML, "":
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeReport(w io.Writer, r *tiering.Report, format string) error {
	if err := checkOutputFormat(format); err != nil {
		return err
	}
	doc := newReportDoc(r)

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}

	rows := make([][]string, 0, len(doc.Objects))
	for _, o := range doc.Objects {
		rows = append(rows, []string{o.Key, strconv.FormatInt(o.Size, 10), o.StorageClass, o.Outcome, o.Error})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Key", "Size", "Class", "Outcome", "Error").
		Rows(rows...)

	fmt.Fprintln(w, t)
	fmt.Fprintf(w, "run %s: %d changed, %d skipped, %d failed (target %s)\n",
		doc.RunID, doc.Changed, doc.Skipped, doc.Failed, doc.Target)
	return nil
}
