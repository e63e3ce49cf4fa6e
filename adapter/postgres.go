// Postgres adapter: one gorm-managed table per entity type, the open
// field bag serialized to jsonb. Substring search escapes %, _, \ and
// supplies ESCAPE '\'.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"eve.evalgo.org/schema"
	"eve.evalgo.org/store"
)

// pgRecord is the gorm-managed row shape: one table per entity type,
// with the open field bag serialized to a jsonb column.
type pgRecord struct {
	ID     string `gorm:"primaryKey;column:id"`
	Fields string `gorm:"column:fields;type:jsonb"`
}

// PostgresStore is the Store adapter backed by Postgres via gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore opens a gorm connection to dsn.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) table(typeName string) string {
	return "entity_" + typeName
}

// EnsureTable creates the backing table for typeName if absent.
func (p *PostgresStore) EnsureTable(typeName string) error {
	return p.db.Table(p.table(typeName)).AutoMigrate(&pgRecord{})
}

// Get fetches one row by id.
func (p *PostgresStore) Get(ctx context.Context, typeName, id string) (map[string]any, error) {
	var row pgRecord
	err := p.db.WithContext(ctx).Table(p.table(typeName)).Where("id = ?", id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s/%s: %w", typeName, id, err)
	}
	return projectRow(typeName, row)
}

// List applies where/orderBy/offset/limit via gorm query chaining.
// Field names are validated before touching SQL.
func (p *PostgresStore) List(ctx context.Context, typeName string, opts store.ListOptions) ([]map[string]any, error) {
	for field := range opts.Where {
		if err := schema.ValidateFieldName(field); err != nil {
			return nil, err
		}
	}
	q := p.db.WithContext(ctx).Table(p.table(typeName))
	for field, want := range opts.Where {
		q = q.Where("fields ->> ? = ?", field, fmt.Sprint(want))
	}
	for _, ot := range opts.OrderBy {
		if err := schema.ValidateFieldName(ot.Field); err != nil {
			return nil, err
		}
		dir := "ASC"
		if ot.Desc {
			dir = "DESC"
		}
		q = q.Order(fmt.Sprintf("fields ->> '%s' %s", ot.Field, dir))
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var rows []pgRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres list %s: %w", typeName, err)
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec, err := projectRow(typeName, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Search escapes the substring and runs a jsonb::text ILIKE scan
// with an explicit ESCAPE clause.
func (p *PostgresStore) Search(ctx context.Context, typeName, query string, opts store.SearchOptions) ([]store.SearchResult, error) {
	escaped := schema.EscapeLike(query)
	var rows []pgRecord
	err := p.db.WithContext(ctx).Table(p.table(typeName)).
		Where("fields::text ILIKE ? ESCAPE '\\'", "%"+escaped+"%").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("postgres search %s: %w", typeName, err)
	}
	lowerQuery := strings.ToLower(query)
	var out []store.SearchResult
	for _, row := range rows {
		rec, err := projectRow(typeName, row)
		if err != nil {
			continue
		}
		lowerText := strings.ToLower(row.Fields)
		idx := strings.Index(lowerText, lowerQuery)
		if idx < 0 {
			continue
		}
		score := 1.0 - float64(idx)/float64(len(lowerText))
		if score < opts.MinScore {
			continue
		}
		out = append(out, store.SearchResult{Record: rec, Score: score})
	}
	return out, nil
}

// Create inserts a new row, refusing a duplicate id.
func (p *PostgresStore) Create(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	row := pgRecord{ID: id, Fields: string(payload)}
	if err := p.db.WithContext(ctx).Table(p.table(typeName)).Create(&row).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, schema.New(schema.KindAlreadyExists, "entity already exists: "+typeName+"/"+id)
		}
		return nil, fmt.Errorf("postgres create %s/%s: %w", typeName, id, err)
	}
	return projectRow(typeName, row)
}

// Update merges patch into the stored jsonb column.
func (p *PostgresStore) Update(ctx context.Context, typeName, id string, patch map[string]any) (map[string]any, error) {
	current, err := p.Get(ctx, typeName, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
	}
	delete(current, "$id")
	delete(current, "$type")
	for k, v := range patch {
		current[k] = v
	}
	payload, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	if err := p.db.WithContext(ctx).Table(p.table(typeName)).Where("id = ?", id).Update("fields", string(payload)).Error; err != nil {
		return nil, fmt.Errorf("postgres update %s/%s: %w", typeName, id, err)
	}
	return projectRow(typeName, pgRecord{ID: id, Fields: string(payload)})
}

// Delete removes the row. A missing row returns false, not an error.
func (p *PostgresStore) Delete(ctx context.Context, typeName, id string) (bool, error) {
	res := p.db.WithContext(ctx).Table(p.table(typeName)).Where("id = ?", id).Delete(&pgRecord{})
	if res.Error != nil {
		return false, fmt.Errorf("postgres delete %s/%s: %w", typeName, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func projectRow(typeName string, row pgRecord) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
		return nil, fmt.Errorf("postgres decode %s/%s: %w", typeName, row.ID, err)
	}
	fields["$id"] = row.ID
	fields["$type"] = typeName
	return fields, nil
}
