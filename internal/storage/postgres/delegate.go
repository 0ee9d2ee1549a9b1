package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripdesk/tripdesk/internal/core/catalog"
	"github.com/tripdesk/tripdesk/internal/storage"
)

// Delegate is the Postgres-backed persistence handle for one entity type.
// Every type stores its fields in a jsonb document; id and the timestamps
// live in real columns.
type Delegate struct {
	db    *Client
	typ   catalog.EntityType
	table string
}

func NewDelegate(db *Client, typ catalog.EntityType) *Delegate {
	return &Delegate{db: db, typ: typ, table: catalog.TableName(typ)}
}

// NewDelegates builds the full per-type delegate map for the catalog.
func NewDelegates(db *Client) map[catalog.EntityType]storage.Delegate {
	m := make(map[catalog.EntityType]storage.Delegate, len(catalog.All))
	for _, t := range catalog.All {
		m[t] = NewDelegate(db, t)
	}
	return m
}

func (d *Delegate) FindMany(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	where, args := d.buildWhere(q.Where, 1)

	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s%s ORDER BY %s`,
		d.table, where, d.buildOrder(q.OrderBy))

	argIndex := len(args) + 1
	if q.Take != nil {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, *q.Take)
		argIndex++
	}
	if q.Skip != nil {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, *q.Skip)
	}

	rows, err := d.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		rec, err := d.scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range records {
		if err := d.hydrate(ctx, rec, q.Include); err != nil {
			return nil, err
		}
		project(rec, q.Select)
	}
	return records, nil
}

func (d *Delegate) FindUnique(ctx context.Context, q storage.Query) (storage.Record, error) {
	where, args := d.buildWhere(q.Where, 1)
	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s%s LIMIT 1`, d.table, where)

	row := d.db.DB.QueryRowContext(ctx, query, args...)
	rec, err := d.scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := d.hydrate(ctx, rec, q.Include); err != nil {
		return nil, err
	}
	project(rec, q.Select)
	return rec, nil
}

func (d *Delegate) Count(ctx context.Context, whereMap map[string]interface{}) (int, error) {
	where, args := d.buildWhere(whereMap, 1)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, d.table, where)

	var total int
	err := d.db.DB.QueryRowContext(ctx, query, args...).Scan(&total)
	return total, err
}

func (d *Delegate) Create(ctx context.Context, m storage.Mutation) (storage.Record, error) {
	data := applyRelationData(d.typ, m.Data)

	id, _ := data["id"].(string)
	if id == "" {
		id = uuid.New().String()
	}
	delete(data, "id")

	doc, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2) RETURNING id, data, created_at, updated_at`, d.table)
	row := d.db.DB.QueryRowContext(ctx, query, id, doc)
	rec, err := d.scanRecord(row.Scan)
	if err != nil {
		return nil, err
	}
	if err := d.hydrate(ctx, rec, m.Include); err != nil {
		return nil, err
	}
	project(rec, m.Select)
	return rec, nil
}

func (d *Delegate) Update(ctx context.Context, m storage.Mutation) (storage.Record, error) {
	data := applyRelationData(d.typ, m.Data)
	delete(data, "id")

	doc, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	where, args := d.buildWhere(m.Where, 2)
	query := fmt.Sprintf(`UPDATE %s SET data = data || $1::jsonb, updated_at = CURRENT_TIMESTAMP%s
		RETURNING id, data, created_at, updated_at`, d.table, where)

	row := d.db.DB.QueryRowContext(ctx, query, append([]interface{}{doc}, args...)...)
	rec, err := d.scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	if err := d.hydrate(ctx, rec, m.Include); err != nil {
		return nil, err
	}
	project(rec, m.Select)
	return rec, nil
}

func (d *Delegate) Delete(ctx context.Context, whereMap map[string]interface{}) (storage.Record, error) {
	where, args := d.buildWhere(whereMap, 1)
	query := fmt.Sprintf(`DELETE FROM %s%s RETURNING id, data, created_at, updated_at`, d.table, where)

	row := d.db.DB.QueryRowContext(ctx, query, args...)
	rec, err := d.scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNoRecord
	}
	return rec, err
}

func (d *Delegate) scanRecord(scan func(...interface{}) error) (storage.Record, error) {
	var (
		id        string
		doc       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := scan(&id, &doc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rec := storage.Record{}
	json.Unmarshal(doc, &rec)
	rec["id"] = id
	rec["createdAt"] = createdAt
	if catalog.HasUpdatedAt(d.typ) {
		rec["updatedAt"] = updatedAt
	}
	return rec, nil
}

// hydrate attaches related records for each requested include key that
// names a catalog relation of this type.
func (d *Delegate) hydrate(ctx context.Context, rec storage.Record, include map[string]interface{}) error {
	if len(include) == 0 {
		return nil
	}
	rels := catalog.Relations(d.typ)
	for name, want := range include {
		if want == false {
			continue
		}
		rel, ok := rels[name]
		if !ok {
			continue
		}
		fk, _ := rec[rel.Field].(string)
		if fk == "" {
			rec[name] = nil
			continue
		}
		related := NewDelegate(d.db, rel.Target)
		target, err := related.FindUnique(ctx, storage.Query{Where: map[string]interface{}{"id": fk}})
		if err != nil {
			return err
		}
		rec[name] = target
	}
	return nil
}

func project(rec storage.Record, sel map[string]interface{}) {
	if len(sel) == 0 {
		return
	}
	for k := range rec {
		if want, ok := sel[k]; !ok || want == false {
			delete(rec, k)
		}
	}
}

// applyRelationData converts connect/disconnect relation instructions back
// into the foreign-key fields the jsonb document actually stores. Raw
// foreign keys pass through untouched.
func applyRelationData(typ catalog.EntityType, data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	for name, rel := range catalog.Relations(typ) {
		instr, ok := out[name].(map[string]interface{})
		if !ok {
			continue
		}
		if c, ok := instr["connect"].(map[string]interface{}); ok {
			out[rel.Field] = c["id"]
			delete(out, name)
		} else if instr["disconnect"] == true {
			out[rel.Field] = nil
			delete(out, name)
		}
	}
	return out
}

func (d *Delegate) buildWhere(whereMap map[string]interface{}, argIndex int) (string, []interface{}) {
	if len(whereMap) == 0 {
		return "", nil
	}

	var clauses []string
	var args []interface{}
	for field, value := range whereMap {
		clause, newArgs, idx := d.buildFilterClause(field, value, argIndex)
		if clause != "" {
			clauses = append(clauses, clause)
			args = append(args, newArgs...)
			argIndex = idx
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (d *Delegate) buildFilterClause(field string, value interface{}, argIndex int) (string, []interface{}, int) {
	if ops, ok := value.(map[string]interface{}); ok {
		var clauses []string
		var args []interface{}
		for op, operand := range ops {
			clause, newArgs, idx := d.buildOperatorClause(field, op, operand, argIndex)
			if clause != "" {
				clauses = append(clauses, clause)
				args = append(args, newArgs...)
				argIndex = idx
			}
		}
		return strings.Join(clauses, " AND "), args, argIndex
	}
	return d.buildOperatorClause(field, "equals", value, argIndex)
}

func (d *Delegate) buildOperatorClause(field, op string, operand interface{}, argIndex int) (string, []interface{}, int) {
	var clause string
	var args []interface{}

	jsonPath := fmt.Sprintf("data->'%s'", strings.Replace(field, ".", "'->'", -1))
	textPath := fmt.Sprintf("data->>'%s'", field)
	if field == "id" {
		jsonPath = "to_jsonb(id)"
		textPath = "id"
	} else if field == "createdAt" || field == "updatedAt" {
		col := "created_at"
		if field == "updatedAt" {
			col = "updated_at"
		}
		jsonPath = fmt.Sprintf("to_jsonb(%s)", col)
		textPath = col + "::text"
	}

	switch op {
	case "equals":
		if operand == nil {
			clause = fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", jsonPath, jsonPath)
			break
		}
		valueJSON, _ := json.Marshal(operand)
		clause = fmt.Sprintf("%s = $%d", jsonPath, argIndex)
		args = append(args, string(valueJSON))
		argIndex++
	case "not":
		valueJSON, _ := json.Marshal(operand)
		clause = fmt.Sprintf("%s IS DISTINCT FROM $%d", jsonPath, argIndex)
		args = append(args, string(valueJSON))
		argIndex++
	case "gt", "gte", "lt", "lte":
		cmp := map[string]string{"gt": ">", "gte": ">=", "lt": "<", "lte": "<="}[op]
		switch operand.(type) {
		case time.Time:
			clause = fmt.Sprintf("(%s)::timestamptz %s $%d", textPath, cmp, argIndex)
		case float64, int, int64:
			clause = fmt.Sprintf("(%s)::numeric %s $%d", textPath, cmp, argIndex)
		default:
			clause = fmt.Sprintf("%s %s $%d", textPath, cmp, argIndex)
		}
		args = append(args, operand)
		argIndex++
	case "contains":
		clause = fmt.Sprintf("%s ILIKE $%d", textPath, argIndex)
		args = append(args, "%"+fmt.Sprint(operand)+"%")
		argIndex++
	case "in":
		arr, ok := operand.([]interface{})
		if !ok || len(arr) == 0 {
			break
		}
		placeholders := make([]string, len(arr))
		for i, v := range arr {
			valueJSON, _ := json.Marshal(v)
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, string(valueJSON))
			argIndex++
		}
		clause = fmt.Sprintf("%s IN (%s)", jsonPath, strings.Join(placeholders, ","))
	}

	return clause, args, argIndex
}

func (d *Delegate) buildOrder(orderBy interface{}) string {
	terms := orderTerms(orderBy)
	if len(terms) == 0 {
		return "created_at DESC"
	}
	var parts []string
	for _, term := range terms {
		dir := "ASC"
		if strings.EqualFold(term.dir, "desc") {
			dir = "DESC"
		}
		switch term.field {
		case "id":
			parts = append(parts, "id "+dir)
		case "createdAt":
			parts = append(parts, "created_at "+dir)
		case "updatedAt":
			parts = append(parts, "updated_at "+dir)
		default:
			parts = append(parts, fmt.Sprintf("data->>'%s' %s", term.field, dir))
		}
	}
	return strings.Join(parts, ", ")
}

type orderTerm struct {
	field string
	dir   string
}

func orderTerms(orderBy interface{}) []orderTerm {
	switch v := orderBy.(type) {
	case string:
		return []orderTerm{{field: v, dir: "asc"}}
	case map[string]interface{}:
		// Map iteration order is random; sort the fields so a multi-key
		// object sorts the same way on every request. Callers needing a
		// specific term priority send the array form.
		fields := make([]string, 0, len(v))
		for field := range v {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		terms := make([]orderTerm, 0, len(fields))
		for _, field := range fields {
			terms = append(terms, orderTerm{field: field, dir: fmt.Sprint(v[field])})
		}
		return terms
	case []interface{}:
		var terms []orderTerm
		for _, item := range v {
			terms = append(terms, orderTerms(item)...)
		}
		return terms
	}
	return nil
}
