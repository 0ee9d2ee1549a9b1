package catalog

import (
	"strings"
)

// EntityType is one named category of persisted record. The catalog is
// closed: every type the gateway can serve is declared here.
type EntityType string

const (
	User                 EntityType = "user"
	Agency               EntityType = "agency"
	Partner              EntityType = "partner"
	Client               EntityType = "client"
	Tag                  EntityType = "tag"
	Proposal             EntityType = "proposal"
	ProposalService      EntityType = "proposalService"
	ProposalHistory      EntityType = "proposalHistory"
	ProposalTag          EntityType = "proposalTag"
	Task                 EntityType = "task"
	TaskColumn           EntityType = "taskColumn"
	TaskComment          EntityType = "taskComment"
	TaskChecklist        EntityType = "taskChecklist"
	TaskChecklistItem    EntityType = "taskChecklistItem"
	TaskFile             EntityType = "taskFile"
	TaskActivity         EntityType = "taskActivity"
	StudioTemplate       EntityType = "studioTemplate"
	ExpeditionGroup      EntityType = "expeditionGroup"
	ExpeditionSignup     EntityType = "expeditionSignup"
	FinancialTransaction EntityType = "financialTransaction"
	CustomItinerary      EntityType = "customItinerary"
	ItineraryDay         EntityType = "itineraryDay"
	ItineraryItem        EntityType = "itineraryItem"
	CalendarEvent        EntityType = "calendarEvent"
	WhatsappConfig       EntityType = "whatsappConfig"
	EmailConfig          EntityType = "emailConfig"
)

// All lists every entity type in the catalog.
var All = []EntityType{
	User, Agency, Partner, Client, Tag,
	Proposal, ProposalService, ProposalHistory, ProposalTag,
	Task, TaskColumn, TaskComment, TaskChecklist, TaskChecklistItem, TaskFile, TaskActivity,
	StudioTemplate, ExpeditionGroup, ExpeditionSignup, FinancialTransaction,
	CustomItinerary, ItineraryDay, ItineraryItem,
	CalendarEvent, WhatsappConfig, EmailConfig,
}

var known = func() map[EntityType]bool {
	m := make(map[EntityType]bool, len(All))
	for _, t := range All {
		m[t] = true
	}
	return m
}()

// primaryKeys holds the key field set for types that do not use the
// single surrogate "id" key.
var primaryKeys = map[EntityType][]string{
	ProposalTag: {"tagId", "proposalId"},
}

// PrimaryKey returns the ordered primary-key field set for a type.
func PrimaryKey(t EntityType) []string {
	if pk, ok := primaryKeys[t]; ok {
		return pk
	}
	return []string{"id"}
}

// noUpdatedAt marks types whose records carry no updatedAt column, so the
// field must be stripped from update payloads before delegation.
var noUpdatedAt = map[EntityType]bool{
	ProposalTag:  true,
	TaskActivity: true,
}

func HasUpdatedAt(t EntityType) bool {
	return !noUpdatedAt[t]
}

// auditable marks the task-family types whose writes append activity
// records to the task timeline.
var auditable = map[EntityType]bool{
	Task:              true,
	TaskComment:       true,
	TaskChecklist:     true,
	TaskChecklistItem: true,
	TaskFile:          true,
}

func Auditable(t EntityType) bool {
	return auditable[t]
}

// Relation describes one named relation of an entity type: the local
// foreign-key field holding the target id and the target type.
type Relation struct {
	Field  string
	Target EntityType
}

var relations = map[EntityType]map[string]Relation{
	Proposal: {
		"client": {Field: "clientId", Target: Client},
	},
	ProposalService: {
		"partner": {Field: "partnerId", Target: Partner},
	},
	Task: {
		"client":   {Field: "clientId", Target: Client},
		"proposal": {Field: "proposalId", Target: Proposal},
		"column":   {Field: "columnId", Target: TaskColumn},
	},
	TaskComment: {
		"task": {Field: "taskId", Target: Task},
	},
	TaskChecklist: {
		"task": {Field: "taskId", Target: Task},
	},
	TaskChecklistItem: {
		"checklist": {Field: "checklistId", Target: TaskChecklist},
	},
	TaskFile: {
		"task": {Field: "taskId", Target: Task},
	},
	ItineraryDay: {
		"itinerary": {Field: "itineraryId", Target: CustomItinerary},
	},
	ItineraryItem: {
		"day": {Field: "dayId", Target: ItineraryDay},
	},
	ExpeditionSignup: {
		"group": {Field: "groupId", Target: ExpeditionGroup},
	},
	FinancialTransaction: {
		"client": {Field: "clientId", Target: Client},
	},
	CalendarEvent: {
		"client": {Field: "clientId", Target: Client},
	},
}

// Relations returns the relation map for a type; nil when it has none.
func Relations(t EntityType) map[string]Relation {
	return relations[t]
}

// TableName maps an entity type to its pluralized snake_case table.
func TableName(t EntityType) string {
	var b strings.Builder
	for _, r := range string(t) {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return pluralize(b.String())
}

// pluralize handles the consonant-y ending (activity -> activities);
// everything else in the catalog takes a plain "s".
func pluralize(name string) string {
	if n := len(name); n > 1 && name[n-1] == 'y' && !isVowel(name[n-2]) {
		return name[:n-1] + "ies"
	}
	return name + "s"
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// UnknownTypeError reports a resolution failure, carrying the caller's
// original token rather than the canonicalized form.
type UnknownTypeError struct {
	Token string
}

func (e *UnknownTypeError) Error() string {
	return "unknown entity type: " + e.Token
}

// Resolve canonicalizes a caller-supplied type token: one trailing
// pluralizing "s" is stripped, hyphen-separated segments become camelCase
// and the first character is lowered. The result must be in the catalog.
//
// Known ambiguity, kept as-is: a token naturally ending in "s" would be
// mis-stripped. No catalog type ends in "s", so the hazard cannot fire
// against valid input.
func Resolve(token string) (EntityType, error) {
	name := token
	if strings.HasSuffix(name, "s") {
		name = name[:len(name)-1]
	}
	parts := strings.Split(name, "-")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(strings.ToLower(p[:1]))
			b.WriteString(p[1:])
		} else {
			b.WriteString(strings.ToUpper(p[:1]))
			b.WriteString(p[1:])
		}
	}
	t := EntityType(b.String())
	if !known[t] {
		return "", &UnknownTypeError{Token: token}
	}
	return t, nil
}
