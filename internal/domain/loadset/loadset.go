// Package loadset decides which categories a view keeps active. The
// resolver is a pure function over static tables so the live load and the
// prefetcher always agree on what belongs to a view.
package loadset

import (
	"fmt"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
)

// CriticalSet holds the categories every view renders.
var CriticalSet = record.NewCategorySet(record.Profile, record.Pathologies, record.Goals)

var allCategories = record.NewCategorySet(record.AllCategories()...)

// viewTable lists, per view, the categories it needs on top of CriticalSet.
var viewTable = map[record.View]record.CategorySet{
	record.Evolution: record.NewCategorySet(
		record.SoapRecords,
		record.SoapDrafts,
		record.MedicalReturns,
		record.Attachments,
	),
	record.Assessment: record.NewCategorySet(
		record.RequiredMeasurements,
		record.TodayMeasurements,
		record.Measurements,
	),
	record.Treatment: record.NewCategorySet(
		record.ExercisePlan,
	),
	record.History: record.NewCategorySet(
		record.Surgeries,
		record.SoapRecords,
	),
	record.Assistant: record.NewCategorySet(
		record.SoapDrafts,
	),
}

// CategoriesFor returns the categories view needs under strategy. It
// panics on a view or strategy outside the closed sets.
func CategoriesFor(view record.View, strategy record.LoadStrategy) record.CategorySet {
	switch strategy {
	case record.Critical:
		return CriticalSet
	case record.Full:
		return allCategories
	case record.ViewScoped:
		scoped, ok := viewTable[view]
		if !ok {
			panic(fmt.Sprintf("loadset: no category table for %s", view))
		}
		return CriticalSet.Union(scoped)
	default:
		panic(fmt.Sprintf("loadset: unknown strategy %s", strategy))
	}
}
