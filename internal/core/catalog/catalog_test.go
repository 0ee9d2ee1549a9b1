package catalog

import (
	"errors"
	"testing"
)

func TestResolve_Canonical(t *testing.T) {
	// Resolving an already-canonical name yields the same name.
	for _, typ := range []EntityType{Task, Client, ProposalService, TaskChecklistItem} {
		resolved, err := Resolve(string(typ))
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", typ, err)
		}
		if resolved != typ {
			t.Errorf("Resolve(%q) = %q, want %q", typ, resolved, typ)
		}
	}
}

func TestResolve_Plural(t *testing.T) {
	resolved, err := Resolve("tasks")
	if err != nil {
		t.Fatalf("Resolve(tasks) failed: %v", err)
	}
	if resolved != Task {
		t.Errorf("Resolve(tasks) = %q, want task", resolved)
	}
}

func TestResolve_Hyphenated(t *testing.T) {
	cases := map[string]EntityType{
		"task-checklist-items":   TaskChecklistItem,
		"proposal-services":      ProposalService,
		"studio-template":        StudioTemplate,
		"financial-transactions": FinancialTransaction,
		"proposal-tag":           ProposalTag,
	}
	for token, want := range cases {
		resolved, err := Resolve(token)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", token, err)
		}
		if resolved != want {
			t.Errorf("Resolve(%q) = %q, want %q", token, resolved, want)
		}
	}
}

func TestResolve_UnknownEchoesOriginalToken(t *testing.T) {
	_, err := Resolve("flux-capacitors")
	if err == nil {
		t.Fatal("Resolve accepted an unknown token")
	}
	var unknown *UnknownTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTypeError, got %T", err)
	}
	if unknown.Token != "flux-capacitors" {
		t.Errorf("error carries %q, want the original token", unknown.Token)
	}
}

func TestPrimaryKey(t *testing.T) {
	if pk := PrimaryKey(Task); len(pk) != 1 || pk[0] != "id" {
		t.Errorf("task primary key = %v, want [id]", pk)
	}
	pk := PrimaryKey(ProposalTag)
	if len(pk) != 2 || pk[0] != "tagId" || pk[1] != "proposalId" {
		t.Errorf("proposalTag primary key = %v, want [tagId proposalId]", pk)
	}
}

func TestTableName(t *testing.T) {
	cases := map[EntityType]string{
		Task:              "tasks",
		TaskChecklistItem: "task_checklist_items",
		StudioTemplate:    "studio_templates",
		Client:            "clients",
	}
	for typ, want := range cases {
		if got := TableName(typ); got != want {
			t.Errorf("TableName(%q) = %q, want %q", typ, got, want)
		}
	}
}

func TestTableName_IrregularPlurals(t *testing.T) {
	// Types ending in a consonant plus y pluralize to "ies"; a vowel
	// before the y keeps the plain "s".
	cases := map[EntityType]string{
		Agency:          "agencies",
		ProposalHistory: "proposal_histories",
		TaskActivity:    "task_activities",
		CustomItinerary: "custom_itineraries",
		ItineraryDay:    "itinerary_days",
	}
	for typ, want := range cases {
		if got := TableName(typ); got != want {
			t.Errorf("TableName(%q) = %q, want %q", typ, got, want)
		}
	}
}

func TestHasUpdatedAt(t *testing.T) {
	if HasUpdatedAt(ProposalTag) {
		t.Error("proposalTag should not carry updatedAt")
	}
	if HasUpdatedAt(TaskActivity) {
		t.Error("taskActivity should not carry updatedAt")
	}
	if !HasUpdatedAt(Task) {
		t.Error("task should carry updatedAt")
	}
}

func TestAuditable(t *testing.T) {
	for _, typ := range []EntityType{Task, TaskComment, TaskChecklist, TaskChecklistItem, TaskFile} {
		if !Auditable(typ) {
			t.Errorf("%q should be auditable", typ)
		}
	}
	if Auditable(Client) {
		t.Error("client should not be auditable")
	}
}
