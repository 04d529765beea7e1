package render

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/coctel/internal/aggregate"
	"github.com/ppiankov/coctel/internal/report"
)

// Document is the JSON shape of a report result.
type Document struct {
	Report  string         `json:"report"`
	Title   string         `json:"title,omitempty"`
	Dims    []string       `json:"dims"`
	Percent string         `json:"percent"`
	Total   int            `json:"total"`
	Rows    []DocumentRow  `json:"rows"`
	Ranking []DocumentRank `json:"ranking,omitempty"`
}

type DocumentRow struct {
	Key     map[string]string `json:"key"`
	Count   int               `json:"count"`
	Percent float64           `json:"percent"`
}

type DocumentRank struct {
	Rank  int     `json:"rank"`
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// NewDocument converts a result. Percentages are rounded to precision.
func NewDocument(res report.Result, precision int) Document {
	t := res.Table
	doc := Document{
		Report:  res.Spec.Name,
		Title:   res.Spec.Title,
		Dims:    make([]string, len(t.Dims)),
		Percent: t.Policy.Mode.String(),
		Total:   t.Total(),
		Rows:    make([]DocumentRow, 0, len(t.Rows)),
	}
	for i, d := range t.Dims {
		doc.Dims[i] = string(d)
	}
	for _, r := range t.Rows {
		key := make(map[string]string, len(t.Dims))
		for i, d := range t.Dims {
			key[string(d)] = r.Key[i]
		}
		doc.Rows = append(doc.Rows, DocumentRow{
			Key:     key,
			Count:   r.Count,
			Percent: aggregate.Round(r.Percent, precision),
		})
	}
	for _, e := range res.Ranking {
		doc.Ranking = append(doc.Ranking, DocumentRank{
			Rank:  e.Rank,
			Key:   e.Key,
			Value: aggregate.Round(e.Value, precision),
		})
	}
	return doc
}

// JSONFormatter formats a report as JSON.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes the report as JSON to w.
func (f *JSONFormatter) Format(w io.Writer, in Input) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(in.Result, in.Precision))
}
