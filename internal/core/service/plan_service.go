package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/guillermoBallester/cleansweep/internal/core/domain"
	"github.com/guillermoBallester/cleansweep/internal/core/port"
	"go.opentelemetry.io/otel/trace"
)

// KeyDescription reports which keys a purge of a table would use by default.
type KeyDescription struct {
	Table        string             `json:"table"`
	Columns      []string           `json:"columns"`
	PrimaryKey   []string           `json:"primary_key"`
	PrimaryName  string             `json:"primary_key_name,omitempty"`
	TraversalKey string             `json:"traversal_key,omitempty"`
	Indexes      []domain.IndexInfo `json:"indexes"`
}

// PlanService answers read-only planning questions. Calls are serialized
// because they share one database session.
type PlanService struct {
	mu     sync.Mutex
	conn   port.Connection
	logger *slog.Logger
	tracer trace.Tracer
}

func NewPlanService(conn port.Connection, logger *slog.Logger, tracer trace.Tracer) *PlanService {
	return &PlanService{conn: conn, logger: logger, tracer: tracer}
}

func (s *PlanService) DescribeKeys(ctx context.Context, table string) (*KeyDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, err := LoadTableSchema(ctx, s.conn, table, domain.SchemaOptions{})
	if err != nil {
		return nil, err
	}
	desc := &KeyDescription{
		Table:       schema.Name,
		Columns:     schema.ColumnNames(),
		PrimaryKey:  schema.PrimaryKey.ColumnNames(),
		PrimaryName: schema.PrimaryKey.Name,
		Indexes:     schema.Indexes,
	}
	if schema.TraversingKey != nil {
		desc.TraversalKey = schema.TraversingKey.Name
	}
	return desc, nil
}

// Plan returns the dry-run report for opts without changing any data.
func (s *PlanService) Plan(ctx context.Context, opts Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts.DryRun = true
	// Health thresholds only matter while rows are being changed.
	opts.MaxHistory, opts.MaxReplLag = 0, 0

	runner, err := NewPurgeRunner(ctx, s.conn, nil, opts, s.logger, s.tracer, nil, nil)
	if err != nil {
		return "", err
	}
	return runner.PrintQueries(ctx)
}
