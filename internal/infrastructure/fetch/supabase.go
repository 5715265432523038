package fetch

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// Table describes how a category is read from the hosted database.
type Table struct {
	Name        string
	OrderColumn string

	// SubjectColumn filters rows by the key's subject. Empty reads the
	// whole table, which is only used for small reference tables.
	SubjectColumn string

	// Filters are extra equality filters.
	Filters map[string]string

	// SinceToday restricts rows to those whose column is today or later.
	SinceToday string

	// Single returns the first row instead of the row list.
	Single bool
}

// DefaultTables maps each category to the table the record screen reads.
var DefaultTables = map[record.Category]Table{
	record.Profile:              {Name: "patients", SubjectColumn: "id", Single: true},
	record.Goals:                {Name: "patient_goals", SubjectColumn: "patient_id", OrderColumn: "created_at"},
	record.Pathologies:          {Name: "patient_pathologies", SubjectColumn: "patient_id", OrderColumn: "created_at"},
	record.SoapRecords:          {Name: "soap_records", SubjectColumn: "patient_id", OrderColumn: "record_date"},
	record.SoapDrafts:           {Name: "soap_records", SubjectColumn: "patient_id", OrderColumn: "updated_at", Filters: map[string]string{"status": "draft"}},
	record.TodayMeasurements:    {Name: "evolution_measurements", SubjectColumn: "patient_id", OrderColumn: "measured_at", SinceToday: "measured_at"},
	record.Measurements:         {Name: "evolution_measurements", SubjectColumn: "patient_id", OrderColumn: "measured_at"},
	record.RequiredMeasurements: {Name: "pathology_required_measurements"},
	record.Surgeries:            {Name: "patient_surgeries", SubjectColumn: "patient_id", OrderColumn: "surgery_date"},
	record.MedicalReturns:       {Name: "patient_medical_returns", SubjectColumn: "patient_id", OrderColumn: "return_date"},
	record.ExercisePlan:         {Name: "exercise_plans", SubjectColumn: "patient_id", OrderColumn: "created_at"},
	record.Attachments:          {Name: "patient_documents", SubjectColumn: "patient_id", OrderColumn: "created_at"},
}

// Row is one decoded table row.
type Row = map[string]any

// SupabaseFetcher reads category payloads through the PostgREST API of a
// Supabase project. Payloads are []Row, or a single Row for Single tables.
type SupabaseFetcher struct {
	client *supabase.Client
	tables map[record.Category]Table
	now    func() time.Time
}

// NewSupabaseFetcher connects to the project at url. A nil tables map
// means DefaultTables.
func NewSupabaseFetcher(url, key string, tables map[record.Category]Table) (*SupabaseFetcher, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, errors.Internal(errors.CodeInvalidConfig, "failed to create supabase client").
			WithCause(err).
			Build()
	}
	if tables == nil {
		tables = DefaultTables
	}
	return &SupabaseFetcher{client: client, tables: tables, now: time.Now}, nil
}

func (f *SupabaseFetcher) Fetch(ctx context.Context, key record.Key) (any, error) {
	table, ok := f.tables[key.Category]
	if !ok {
		return nil, errors.NotFound(errors.CodeFetcherNotFound, "no table for category").
			WithResource(key.Category.String()).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := f.client.From(table.Name).Select("*", "", false)
	if table.SubjectColumn != "" {
		query = query.Eq(table.SubjectColumn, key.Subject.String())
	}
	for column, value := range table.Filters {
		query = query.Eq(column, value)
	}
	if table.SinceToday != "" {
		query = query.Gte(table.SinceToday, startOfDay(f.now()).Format(time.RFC3339))
	}
	if table.OrderColumn != "" {
		query = query.Order(table.OrderColumn, &postgrest.OrderOpts{Ascending: false})
	}
	if limit, ok := limitOf(key.Qualifier); ok {
		query = query.Limit(limit, "")
	} else if table.Single {
		query = query.Limit(1, "")
	}

	body, _, err := query.Execute()
	if err != nil {
		return nil, errors.Unavailable(errors.CodeBackendQueryFailed, "backend query failed").
			WithResource(key.String()).
			WithDetails(table.Name).
			WithCause(err).
			Build()
	}

	var rows []Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Internal(errors.CodeBackendQueryFailed, "cannot decode backend rows").
			WithResource(key.String()).
			WithCause(err).
			Build()
	}

	if table.Single {
		if len(rows) == 0 {
			return nil, errors.NotFound(errors.CodeInvalidInput, "subject not found").
				WithResource(key.String()).
				Build()
		}
		return rows[0], nil
	}
	return rows, nil
}

// limitOf reads a "limit=N" qualifier. "limit=all" and anything else mean
// no limit.
func limitOf(qualifier string) (int, bool) {
	for _, part := range strings.Split(qualifier, "&") {
		value, found := strings.CutPrefix(part, "limit=")
		if !found {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
