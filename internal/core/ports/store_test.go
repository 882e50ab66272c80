package ports

import (
	"testing"

	"github.com/fieldops/job-tracker/internal/core/domain"
)

func TestJobFilter_Matches(t *testing.T) {
	dallas := "loc-dallas"
	job := &domain.Job{
		ID:          "j1",
		Status:      domain.StatusUnassigned,
		Description: "Repair the HVAC unit",
		LocationID:  dallas,
	}

	cases := []struct {
		name   string
		filter JobFilter
		want   bool
	}{
		{"empty filter matches everything", JobFilter{}, true},
		{"status match", JobFilter{Status: domain.StatusUnassigned}, true},
		{"status mismatch", JobFilter{Status: domain.StatusDone}, false},
		{"location match", JobFilter{LocationID: &dallas}, true},
		{"location mismatch", JobFilter{LocationID: strPtr("loc-miami")}, false},
		{"keyword substring", JobFilter{Keyword: "HVAC"}, true},
		{"keyword is case-sensitive", JobFilter{Keyword: "hvac"}, false},
		{"keyword not found", JobFilter{Keyword: "plumbing"}, false},
		{"owner mismatch", JobFilter{Owner: "a@example.com"}, false},
		{"all predicates conjoined", JobFilter{Status: domain.StatusUnassigned, LocationID: &dallas, Keyword: "Repair"}, true},
		{"one failing predicate sinks the conjunction", JobFilter{Status: domain.StatusUnassigned, LocationID: &dallas, Keyword: "hvac"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(job); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestJobFilter_MatchesOwner(t *testing.T) {
	job := &domain.Job{ID: "j1", Status: domain.StatusAccepted, Owner: "a@example.com"}
	if !(JobFilter{Owner: "a@example.com"}).Matches(job) {
		t.Fatalf("owner filter should match the stamped owner")
	}
	if (JobFilter{Owner: "b@example.com"}).Matches(job) {
		t.Fatalf("owner filter matched a different owner")
	}
}

func TestScope_Covers(t *testing.T) {
	dallas := "loc-dallas"
	jobInDallas := &domain.Job{ID: "j1", LocationID: dallas}
	jobElsewhere := &domain.Job{ID: "j2", LocationID: "loc-miami"}

	all := Scope{Entity: domain.EntityJob}
	if !all.Covers(jobInDallas) || !all.Covers(jobElsewhere) {
		t.Fatalf("unscoped jobs subscription should cover every job")
	}

	narrowed := Scope{Entity: domain.EntityJob, LocationID: &dallas}
	if !narrowed.Covers(jobInDallas) {
		t.Fatalf("narrowed scope should cover jobs in its location")
	}
	if narrowed.Covers(jobElsewhere) {
		t.Fatalf("narrowed scope covered a job outside its location")
	}

	users := Scope{Entity: domain.EntityUser}
	if users.Covers(jobInDallas) {
		t.Fatalf("non-job scopes must cover no jobs")
	}
}

func strPtr(s string) *string { return &s }
