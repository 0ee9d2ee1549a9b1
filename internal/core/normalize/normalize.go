package normalize

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tripdesk/tripdesk/internal/core/catalog"
)

// Op distinguishes the write being normalized.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
)

// Context carries the request-scoped inputs some rules read: the write
// kind, the opportunistic identity and a query-parameter getter.
type Context struct {
	Op       Op
	ActorID  string
	AgencyID string
	Query    func(key string) (string, bool)
}

func (c Context) queryValue(key string) string {
	if c.Query == nil {
		return ""
	}
	v, _ := c.Query(key)
	return v
}

// Rule mutates a write payload in place before it reaches the
// persistence delegate.
type Rule func(ctx Context, data map[string]interface{})

var rules = map[catalog.EntityType][]Rule{
	catalog.ProposalService: {
		func(ctx Context, data map[string]interface{}) {
			combineDateTime(data, "startDate", "startTime")
			combineDateTime(data, "endDate", "endTime")
		},
		partnerRelation,
	},
	catalog.CustomItinerary: {
		func(ctx Context, data map[string]interface{}) {
			coerceDate(data, "startDate", 0)
			coerceDate(data, "endDate", 0)
		},
	},
	catalog.ItineraryDay: {
		func(ctx Context, data map[string]interface{}) {
			coerceDate(data, "date", 0)
		},
	},
	catalog.ItineraryItem: {
		func(ctx Context, data map[string]interface{}) {
			coerceTime(data, "startTime")
			coerceTime(data, "endTime")
			// Stray date-range fields sent by older clients.
			delete(data, "startDate")
			delete(data, "endDate")
		},
	},
	catalog.Task: {
		func(ctx Context, data map[string]interface{}) {
			coerceDate(data, "startDate", 0)
			coerceDate(data, "dueDate", 0)
			if ctx.Op == OpCreate {
				if _, ok := data["startDate"]; !ok {
					data["startDate"] = time.Now().In(anchor())
				}
			}
		},
	},
	catalog.Client: {
		func(ctx Context, data map[string]interface{}) {
			// Noon anchor keeps the calendar date stable across timezones.
			coerceDate(data, "birthDate", 12)
		},
	},
	catalog.CalendarEvent: {
		func(ctx Context, data map[string]interface{}) {
			combineDateTime(data, "startDate", "startTime")
			combineDateTime(data, "endDate", "endTime")
		},
	},
	catalog.StudioTemplate: {
		reshapeStudioTemplate,
		backfillStudioOwnership,
	},
	catalog.User: {
		hashPassword,
	},
	catalog.ExpeditionSignup: {
		func(ctx Context, data map[string]interface{}) {
			if ctx.Op == OpCreate {
				if _, ok := data["status"]; !ok {
					data["status"] = "pending"
				}
			}
		},
	},
}

// Apply runs the type's rules over the payload in their declared order.
// Types without rules pass through untouched.
func Apply(t catalog.EntityType, ctx Context, data map[string]interface{}) {
	for _, rule := range rules[t] {
		rule(ctx, data)
	}
}

// partnerRelation translates the partnerId foreign key into an explicit
// connect/disconnect instruction. Creates keep the raw key: the relation
// form is disallowed there.
func partnerRelation(ctx Context, data map[string]interface{}) {
	if ctx.Op != OpUpdate {
		return
	}
	v, ok := data["partnerId"]
	if !ok {
		return
	}
	delete(data, "partnerId")
	if v == nil {
		data["partner"] = map[string]interface{}{"disconnect": true}
		return
	}
	data["partner"] = map[string]interface{}{
		"connect": map[string]interface{}{"id": v},
	}
}

func hashPassword(ctx Context, data map[string]interface{}) {
	plain, ok := data["password"].(string)
	delete(data, "password")
	if !ok || plain == "" {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	data["passwordHash"] = string(hash)
}
