package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/report"
)

const (
	kindCycle      = "payroll_cycle"
	kindSettlement = "exit_settlement"
)

type line struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// JSONLinesExporter appends one JSON document per finalized snapshot.
type JSONLinesExporter struct {
	mu  sync.Mutex
	enc *json.Encoder
	c   io.Closer
}

var _ report.Exporter = (*JSONLinesExporter)(nil)

func NewJSONLinesExporter(w io.Writer) *JSONLinesExporter {
	return &JSONLinesExporter{enc: json.NewEncoder(w)}
}

// OpenJSONLinesExporter opens path for appending, creating it if needed.
func OpenJSONLinesExporter(path string) (*JSONLinesExporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open report export file: %w", err)
	}
	e := NewJSONLinesExporter(f)
	e.c = f
	return e, nil
}

func (e *JSONLinesExporter) ExportCycle(ctx context.Context, snap report.CycleSnapshot) error {
	return e.write(ctx, kindCycle, snap)
}

func (e *JSONLinesExporter) ExportSettlement(ctx context.Context, snap report.ExitSnapshot) error {
	return e.write(ctx, kindSettlement, snap)
}

func (e *JSONLinesExporter) write(ctx context.Context, kind string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enc.Encode(line{Kind: kind, Data: data}); err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}
	return nil
}

func (e *JSONLinesExporter) Close() error {
	if e.c == nil {
		return nil
	}
	return e.c.Close()
}
