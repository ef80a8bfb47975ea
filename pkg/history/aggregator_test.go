package history

import (
	"testing"
	"time"

	"github.com/veridian-health/readmit/pkg/chrono"
	"github.com/veridian-health/readmit/pkg/record"
)

func at(t *testing.T, value string) chrono.Instant {
	t.Helper()
	i, err := chrono.Parse(value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return i
}

func enc(t *testing.T, id, start, stop string) record.Encounter {
	t.Helper()
	return record.Encounter{ID: id, PatientID: "p1", Start: at(t, start), Stop: at(t, stop)}
}

func cond(t *testing.T, code, onset string) record.Condition {
	t.Helper()
	return record.Condition{PatientID: "p1", Code: code, Onset: at(t, onset)}
}

func med(t *testing.T, code, start string) record.Medication {
	t.Helper()
	return record.Medication{PatientID: "p1", Code: code, Start: at(t, start)}
}

func TestComputeHalfOpenCeiling(t *testing.T) {
	encounters := []record.Encounter{
		enc(t, "e1", "2024-01-01T08:00:00", "2024-01-01T12:00:00"),
	}
	// Exactly at the discharge instant: excluded. One second earlier: counted.
	conditions := []record.Condition{
		cond(t, "C1", "2024-01-01T12:00:00"),
		cond(t, "C2", "2024-01-01T11:59:59"),
	}
	aggs := Compute(encounters, conditions, nil, DefaultLookback)
	if aggs[0].Conditions != 1 || aggs[0].UniqueConditions != 1 {
		t.Fatalf("got %+v, want 1 condition (event at stop excluded)", aggs[0])
	}
}

func TestComputeFloorInclusive(t *testing.T) {
	encounters := []record.Encounter{
		enc(t, "e1", "2024-12-31T00:00:00", "2024-12-31T12:00:00"),
	}
	floor := at(t, "2024-12-31T12:00:00").Add(-DefaultLookback)
	conditions := []record.Condition{
		{PatientID: "p1", Code: "AT_FLOOR", Onset: floor},
		{PatientID: "p1", Code: "BEFORE_FLOOR", Onset: floor.Add(-time.Second)},
	}
	aggs := Compute(encounters, conditions, nil, DefaultLookback)
	if aggs[0].Conditions != 1 {
		t.Fatalf("Conditions = %d, want 1 (floor inclusive, earlier excluded)", aggs[0].Conditions)
	}
}

func TestComputeZeroDefault(t *testing.T) {
	encounters := []record.Encounter{
		enc(t, "e1", "2024-01-01T08:00:00", "2024-01-01T12:00:00"),
	}
	aggs := Compute(encounters, nil, nil, DefaultLookback)
	if aggs[0] != (Aggregates{}) {
		t.Fatalf("no history must aggregate to zeros, got %+v", aggs[0])
	}
}

func TestComputeDistinctCodes(t *testing.T) {
	encounters := []record.Encounter{
		enc(t, "e1", "2024-06-01T08:00:00", "2024-06-01T12:00:00"),
	}
	conditions := []record.Condition{
		cond(t, "C1", "2024-01-10T00:00:00"),
		cond(t, "C1", "2024-02-10T00:00:00"),
		cond(t, "C2", "2024-03-10T00:00:00"),
	}
	medications := []record.Medication{
		med(t, "M1", "2024-04-01T00:00:00"),
		med(t, "M1", "2024-05-01T00:00:00"),
	}
	aggs := Compute(encounters, conditions, medications, DefaultLookback)
	want := Aggregates{Conditions: 3, UniqueConditions: 2, Medications: 2, UniqueMedications: 1}
	if aggs[0] != want {
		t.Fatalf("got %+v, want %+v", aggs[0], want)
	}
}

func TestComputeSlidingWindowAcrossEncounters(t *testing.T) {
	// The early condition is inside the first encounter's window but has
	// aged out of the second's.
	encounters := []record.Encounter{
		enc(t, "e1", "2024-01-01T00:00:00", "2024-01-02T00:00:00"),
		enc(t, "e2", "2025-06-01T00:00:00", "2025-06-02T00:00:00"),
	}
	conditions := []record.Condition{
		cond(t, "OLD", "2023-06-01T00:00:00"),
		cond(t, "NEW", "2025-01-01T00:00:00"),
	}
	aggs := Compute(encounters, conditions, nil, DefaultLookback)
	if aggs[0].Conditions != 1 || aggs[0].UniqueConditions != 1 {
		t.Fatalf("e1 aggregates = %+v, want the old condition only", aggs[0])
	}
	if aggs[1].Conditions != 1 || aggs[1].UniqueConditions != 1 {
		t.Fatalf("e2 aggregates = %+v, want the new condition only", aggs[1])
	}
}

func TestComputeResultsAlignedToInputOrder(t *testing.T) {
	// Input order is the (start, id) total order; the internal visit order is
	// by stop time. Results must still land at the input indexes.
	encounters := []record.Encounter{
		enc(t, "e1", "2024-01-01T00:00:00", "2024-03-01T00:00:00"),
		enc(t, "e2", "2024-01-15T00:00:00", "2024-01-16T00:00:00"),
	}
	conditions := []record.Condition{
		cond(t, "C1", "2024-02-01T00:00:00"),
	}
	aggs := Compute(encounters, conditions, nil, DefaultLookback)
	if aggs[0].Conditions != 1 {
		t.Fatalf("e1 should see the February condition, got %+v", aggs[0])
	}
	if aggs[1].Conditions != 0 {
		t.Fatalf("e2 stops before the condition onset, got %+v", aggs[1])
	}
}
