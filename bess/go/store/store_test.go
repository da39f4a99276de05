package store

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgproto3/v2"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/types"
)

// execRecord is one statement captured by the fakes below.
type execRecord struct {
	sql  string
	args []interface{}
}

// fakeTx records every statement executed inside a transaction.
type fakeTx struct {
	execs []execRecord
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error)                 { return t, nil }
func (t *fakeTx) BeginFunc(ctx context.Context, f func(pgx.Tx) error) error { return f(t) }
func (t *fakeTx) Commit(ctx context.Context) error                          { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error                        { return nil }
func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execRecord{sql: sql, args: args})
	return nil, nil
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return &emptyRows{}, nil
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row { return nil }
func (t *fakeTx) QueryFunc(ctx context.Context, sql string, args []interface{}, scans []interface{}, f func(pgx.QueryFuncRow) error) (pgconn.CommandTag, error) {
	return nil, nil
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

// emptyRows is a pgx.Rows over zero rows.
type emptyRows struct{}

func (r *emptyRows) Close()                                         {}
func (r *emptyRows) Err() error                                     { return nil }
func (r *emptyRows) CommandTag() pgconn.CommandTag                  { return nil }
func (r *emptyRows) FieldDescriptions() []pgproto3.FieldDescription { return nil }
func (r *emptyRows) Next() bool                                     { return false }
func (r *emptyRows) Scan(dest ...interface{}) error                 { return nil }
func (r *emptyRows) Values() ([]interface{}, error)                 { return nil, nil }
func (r *emptyRows) RawValues() [][]byte                            { return nil }

// fakePool records statements executed outside any transaction and hands
// BeginFunc callbacks the recording fakeTx.
type fakePool struct {
	tx    fakeTx
	execs []execRecord
}

func (p *fakePool) Close() {}
func (p *fakePool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, execRecord{sql: sql, args: args})
	return nil, nil
}
func (p *fakePool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return &emptyRows{}, nil
}
func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}
func (p *fakePool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error)                    { return &p.tx, nil }
func (p *fakePool) BeginFunc(ctx context.Context, f func(pgx.Tx) error) error {
	return f(&p.tx)
}

func TestSaveExtractionResult_SingleTransaction(t *testing.T) {
	fp := &fakePool{}
	s := NewForPool(fp)
	procID := uuid.New()
	res := &ExtractionResult{
		CandidateID: 42,
		Procedure: &types.Procedure{
			ID:              procID,
			MunicipalityKey: "12065084",
			Title:           "Aufstellungsbeschluss B-Plan 7",
			ProcedureType:   types.BPlanAufstellung,
			LegalBasis:      types.LegalBasisUnknown,
			Components:      types.ComponentsUnclear,
		},
		Source: &types.Source{
			ProcedureID: &procID,
			CandidateID: 42,
			URL:         "https://www.testdorf.de/bplan-7",
			SourceType:  types.SourceMunicipal,
		},
	}
	require.NoError(t, s.SaveExtractionResult(context.Background(), res))

	// Everything, the candidate's DONE flip included, ran inside the one
	// transaction; nothing went through the pool directly.
	require.Empty(t, fp.execs)
	var sawProcedure, sawSource, sawDone bool
	for _, e := range fp.tx.execs {
		switch {
		case strings.Contains(e.sql, "INSERT INTO procedures"):
			sawProcedure = true
		case strings.Contains(e.sql, "INSERT INTO sources"):
			sawSource = true
		case strings.Contains(e.sql, "UPDATE candidates"):
			sawDone = true
			require.Equal(t, int64(42), e.args[0])
			require.Equal(t, string(types.CandidateDone), e.args[1])
		}
	}
	require.True(t, sawProcedure)
	require.True(t, sawSource)
	require.True(t, sawDone)
}

func TestSaveExtractionResult_NoCandidate(t *testing.T) {
	fp := &fakePool{}
	s := NewForPool(fp)
	res := &ExtractionResult{
		Procedure: &types.Procedure{ID: uuid.New(), MunicipalityKey: "12065084"},
	}
	require.NoError(t, s.SaveExtractionResult(context.Background(), res))
	for _, e := range fp.tx.execs {
		require.NotContains(t, e.sql, "UPDATE candidates")
	}
}
