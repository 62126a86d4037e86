package task

import (
	"testing"
	"time"
)

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"lowest", 1, 1},
		{"highest", 4, 4},
		{"mid", 2, 2},
		{"zero maps to default", 0, 4},
		{"negative maps to default", -1, 4},
		{"above range maps to default", 5, 4},
		{"garbage maps to default", 99, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePriority(tt.in); got != tt.want {
				t.Errorf("NormalizePriority(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeLabels_SortsAscending(t *testing.T) {
	in := []string{"work", "errand", "home"}
	got := NormalizeLabels(in)

	want := []string{"errand", "home", "work"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NormalizeLabels = %v, want %v", got, want)
		}
	}

	// Input must not be reordered in place.
	if in[0] != "work" {
		t.Errorf("NormalizeLabels modified its input: %v", in)
	}
}

func TestNormalizeLabels_NilBecomesEmpty(t *testing.T) {
	got := NormalizeLabels(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("NormalizeLabels(nil) = %v, want empty slice", got)
	}
}

func TestNormalizeInstant(t *testing.T) {
	est, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	utc := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	sameInstantEST := utc.In(est)
	subSecond := utc.Add(420 * time.Millisecond)

	if got, want := NormalizeInstant(&utc), NormalizeInstant(&sameInstantEST); got != want {
		t.Errorf("timezone representation changed normalization: %q vs %q", got, want)
	}
	if got, want := NormalizeInstant(&utc), NormalizeInstant(&subSecond); got != want {
		t.Errorf("sub-second precision changed normalization: %q vs %q", got, want)
	}
	if got := NormalizeInstant(nil); got != "" {
		t.Errorf("NormalizeInstant(nil) = %q, want empty", got)
	}
	zero := time.Time{}
	if got := NormalizeInstant(&zero); got != "" {
		t.Errorf("NormalizeInstant(zero) = %q, want empty", got)
	}
}

func TestParseInstant(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string // normalized form, "" = absent
	}{
		{"rfc3339", "2026-03-15T18:30:00Z", "2026-03-15T18:30:00Z"},
		{"rfc3339 with offset", "2026-03-15T14:30:00-04:00", "2026-03-15T18:30:00Z"},
		{"naive datetime", "2026-03-15T18:30:00", "2026-03-15T18:30:00Z"},
		{"date only resolves to midnight", "2026-03-15", "2026-03-15T00:00:00Z"},
		{"empty is absent", "", ""},
		{"malformed is absent", "next tuesday", ""},
		{"partially malformed is absent", "2026-13-45", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeInstant(ParseInstant(tt.in))
			if got != tt.want {
				t.Errorf("ParseInstant(%q) normalized to %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_LabelOrderIndependence(t *testing.T) {
	now := time.Now()
	a := Record{ID: "1", Content: "Buy milk", Labels: []string{"b", "a"}, Priority: 4, CreatedAt: now, UpdatedAt: now}
	b := Record{ID: "1", Content: "Buy milk", Labels: []string{"a", "b"}, Priority: 4, CreatedAt: now, UpdatedAt: now}

	if !Normalize(a).Equal(Normalize(b)) {
		t.Error("records differing only in label order should be equal")
	}
}

func TestNormalize_ExcludesUpdatedAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Record{ID: "1", Content: "x", Priority: 1, CreatedAt: created, UpdatedAt: created}
	b := a
	b.UpdatedAt = created.Add(48 * time.Hour)

	if !Normalize(a).Equal(Normalize(b)) {
		t.Error("updated_at must not participate in equality")
	}
}

func TestNormalize_DetectsFieldChanges(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := Record{ID: "1", Content: "x", Priority: 2, CreatedAt: now, UpdatedAt: now}

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"content", func(r *Record) { r.Content = "y" }},
		{"description", func(r *Record) { r.Description = "details" }},
		{"is_completed", func(r *Record) { r.IsCompleted = true }},
		{"priority", func(r *Record) { r.Priority = 3 }},
		{"labels", func(r *Record) { r.Labels = []string{"new"} }},
		{"project", func(r *Record) { r.ProjectID = "p1" }},
		{"due date", func(r *Record) { d := now.Add(time.Hour); r.DueDate = &d }},
		{"completed_at", func(r *Record) { c := now; r.CompletedAt = &c }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := base
			tt.mutate(&changed)
			if Normalize(base).Equal(Normalize(changed)) {
				t.Errorf("change to %s not detected", tt.name)
			}
		})
	}
}
