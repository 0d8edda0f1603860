// Package export writes the fact tables as a Hive-partitioned Parquet lake.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/storepulse/storepulse/internal/aws"
	"github.com/storepulse/storepulse/internal/table"
)

// DefaultPartition names the directory holding rows with a null
// partition key.
const DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

const partFile = "part-00000.parquet"

// Spec describes how one fact table is laid out in the lake.
type Spec struct {
	Name       string
	Partitions []string
	schema     interface{}
	record     func(t *table.Table, i int) interface{}
}

// Lake layouts of the fact tables.
var (
	FactSales = Spec{
		Name:       "fact_sales",
		Partitions: []string{"sale_year", "sale_month"},
		schema:     new(SaleRecord),
		record:     saleRecord,
	}
	FactInventory = Spec{
		Name:       "fact_inventory",
		Partitions: []string{"inventory_year", "inventory_month"},
		schema:     new(InventoryRecord),
		record:     inventoryRecord,
	}
)

// Result describes an exported table.
type Result struct {
	Table      string `json:"table"`
	Directory  string `json:"directory"`
	Rows       int    `json:"rows"`
	Partitions int    `json:"partitions"`
	S3URI      string `json:"s3_uri,omitempty"`
}

// Exporter writes fact tables under Directory/<table>/k=v/.../part-00000.parquet.
type Exporter struct {
	Logger    *slog.Logger
	Directory string

	// Uploader mirrors each exported table to S3 when set.
	Uploader *aws.LakeUploader
}

// Export writes t according to spec. The table directory is built next to
// its final location and swapped in once every partition is written, so a
// failed export leaves the previous one intact.
func (e *Exporter) Export(ctx context.Context, spec Spec, t *table.Table) (*Result, error) {
	log := e.Logger.With("stage", "export", "table", spec.Name)
	for _, p := range spec.Partitions {
		if !t.Has(p) {
			return nil, fmt.Errorf("exporting %s: partition column %q missing", spec.Name, p)
		}
	}
	if err := os.MkdirAll(e.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	tmp, err := os.MkdirTemp(e.Directory, "."+spec.Name+".tmp-")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	groups := partition(t, spec.Partitions)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, dir := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(tmp, dir, partFile)
		if err := writeParquet(path, spec, t, groups[dir]); err != nil {
			return nil, fmt.Errorf("exporting %s/%s: %w", spec.Name, dir, err)
		}
		log.Debug("partition written", "partition", dir, "rows", len(groups[dir]))
	}

	final := filepath.Join(e.Directory, spec.Name)
	if err := swapDir(tmp, final); err != nil {
		return nil, fmt.Errorf("replacing %s: %w", final, err)
	}

	res := &Result{Table: spec.Name, Directory: final, Rows: t.Len(), Partitions: len(keys)}
	log.Info("table exported", "rows", res.Rows, "partitions", res.Partitions, "directory", final)

	if e.Uploader != nil {
		up, err := e.Uploader.UploadTable(ctx, spec.Name, final)
		if err != nil {
			return nil, err
		}
		res.S3URI = up.URI
		log.Info("table uploaded", "uri", up.URI, "files", up.Files)
	}
	return res, nil
}

// partition groups row indexes by their k=v/k=v directory.
func partition(t *table.Table, cols []string) map[string][]int {
	groups := make(map[string][]int)
	parts := make([]string, len(cols))
	for i := range t.Rows {
		for j, c := range cols {
			v := strings.TrimSpace(t.Value(i, c))
			if v == "" {
				v = DefaultPartition
			}
			parts[j] = c + "=" + v
		}
		dir := filepath.Join(parts...)
		groups[dir] = append(groups[dir], i)
	}
	return groups
}

func writeParquet(path string, spec Spec, t *table.Table, rows []int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, spec.schema, 1)
	if err != nil {
		return fmt.Errorf("creating parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, i := range rows {
		if err := pw.Write(spec.record(t, i)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finishing parquet file: %w", err)
	}
	return nil
}

// swapDir moves src into dst, replacing any existing dst.
func swapDir(src, dst string) error {
	var old string
	if _, err := os.Stat(dst); err == nil {
		old = dst + ".old"
		if err := os.RemoveAll(old); err != nil {
			return err
		}
		if err := os.Rename(dst, old); err != nil {
			return err
		}
	}
	if err := os.Rename(src, dst); err != nil {
		if old != "" {
			_ = os.Rename(old, dst)
		}
		return err
	}
	if old != "" {
		return os.RemoveAll(old)
	}
	return nil
}
