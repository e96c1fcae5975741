package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/sanonone/kektormatch/pkg/engine"
)

// ErrMissingColumn is returned when the CSV header lacks a configured field.
var ErrMissingColumn = errors.New("missing column")

// CSVConfig names the header fields of a class hierarchy file and how the
// resulting nodes are labelled and keyed.
type CSVConfig struct {
	NameField        string
	ParentField      string
	DescriptionField string
	Label            string
	KeyProperty      string
}

// DefaultCSVConfig returns the column layout of an SES class file.
func DefaultCSVConfig() CSVConfig {
	return CSVConfig{
		NameField:        "Name",
		ParentField:      "Parent",
		DescriptionField: "Description",
		Label:            "ses_class",
		KeyProperty:      "ses_class",
	}
}

// ImportCSV reads a class hierarchy: one row per class with its name, its
// parent's name and a description. Each class becomes a node keyed by name
// (existing nodes with the same label and key are reused) and gets a
// "subcategory of" edge to its parent. Parents that never appear as a row
// are created with the key property only.
func ImportCSV(ctx context.Context, r io.Reader, g Graph, cfg CSVConfig) (Stats, error) {
	var stats Stats
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return stats, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, 3)
	for _, field := range []string{cfg.NameField, cfg.ParentField, cfg.DescriptionField} {
		i := slices.Index(header, field)
		if i < 0 {
			return stats, fmt.Errorf("%w: %q", ErrMissingColumn, field)
		}
		col[field] = i
	}

	type row struct{ name, parent, desc string }
	var rows []row
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read row: %w", err)
		}
		cell := func(field string) string {
			if i := col[field]; i < len(rec) {
				return rec[i]
			}
			return ""
		}
		if name := cell(cfg.NameField); name != "" {
			rows = append(rows, row{name: name, parent: cell(cfg.ParentField), desc: cell(cfg.DescriptionField)})
		}
	}

	byName := make(map[string]uint64)
	for _, id := range g.NodesByLabel(cfg.Label) {
		n, err := g.GetNode(id)
		if err != nil {
			return stats, err
		}
		if key, ok := n.Properties[cfg.KeyProperty]; ok {
			byName[key] = id
		}
	}

	getOrCreate := func(name string) (uint64, error) {
		if id, ok := byName[name]; ok {
			return id, nil
		}
		id, err := g.AddNode([]string{cfg.Label}, map[string]string{cfg.KeyProperty: name})
		if err != nil {
			return 0, err
		}
		byName[name] = id
		stats.Nodes++
		return id, nil
	}

	for _, rw := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		id, err := getOrCreate(rw.name)
		if err != nil {
			return stats, err
		}
		if err := g.PutNode(nodeWith(g, id, cfg, rw.name, rw.desc)); err != nil {
			return stats, err
		}
		if rw.parent == "" {
			continue
		}
		parentID, err := getOrCreate(rw.parent)
		if err != nil {
			return stats, err
		}
		if _, err := g.AddEdge(id, parentID, engine.RelSubcategoryOf, nil); err != nil {
			return stats, err
		}
		stats.Edges++
	}

	slog.Info("[Loader] Class hierarchy imported", "classes", len(rows), "nodes", stats.Nodes, "edges", stats.Edges)
	return stats, nil
}

// nodeWith returns node id with the class properties set on top of what it
// already carries.
func nodeWith(g Graph, id uint64, cfg CSVConfig, name, desc string) engine.Node {
	n := engine.Node{ID: id, Labels: []string{cfg.Label}, Properties: map[string]string{}}
	if existing, err := g.GetNode(id); err == nil {
		n.Labels = append(existing.Labels, cfg.Label)
		for k, v := range existing.Properties {
			n.Properties[k] = v
		}
	}
	n.Properties[cfg.KeyProperty] = name
	n.Properties["description"] = desc
	return n
}
