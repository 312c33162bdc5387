package schema

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"smartquery/internal/naming"
)

// reservedSep is the relation-hop separator of attribute path text.
// Attribute, hybrid, and relation names must not contain it.
const reservedSep = "___"

// Catalog resolves model definitions into descriptors. The descriptor
// graph is built exactly once, on first use; concurrent first access is
// safe and every caller observes the same build result.
type Catalog struct {
	defs   []Definition
	namer  *naming.Namer
	logger *slog.Logger

	buildOnce sync.Once
	buildErr  error
	models    map[string]*Model
	names     []string
}

// NewCatalog retains the given definitions. Nothing is validated until the
// first Describe or Build call. A nil namer or logger falls back to
// defaults.
func NewCatalog(defs []Definition, namer *naming.Namer, logger *slog.Logger) *Catalog {
	if namer == nil {
		namer = naming.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{defs: defs, namer: namer, logger: logger}
}

// Describe returns the descriptor for the named model, building the
// descriptor graph on first call.
func (c *Catalog) Describe(ctx context.Context, name string) (*Model, error) {
	if err := c.Build(ctx); err != nil {
		return nil, err
	}
	model, ok := c.models[name]
	if !ok {
		return nil, schemaErrorf(name, "model not registered")
	}
	return model, nil
}

// ModelNames returns the registered model names sorted alphabetically.
func (c *Catalog) ModelNames(ctx context.Context) ([]string, error) {
	if err := c.Build(ctx); err != nil {
		return nil, err
	}
	return c.names, nil
}

// Build resolves all definitions. It runs at most once; later calls return
// the first result.
func (c *Catalog) Build(ctx context.Context) error {
	c.buildOnce.Do(func() {
		_, span := startSpan(ctx, "schema.build_catalog",
			attribute.Int("schema.model_count", len(c.defs)))
		defer span.End()

		c.models, c.buildErr = c.build()
		if c.buildErr != nil {
			recordSpanError(span, c.buildErr)
			return
		}

		for name := range c.models {
			c.names = append(c.names, name)
		}
		sort.Strings(c.names)

		c.logger.Debug("schema catalog built",
			slog.Int("models", len(c.models)),
		)
	})
	return c.buildErr
}

// build runs in two phases so relation targets can link in any declaration
// order, including self-references and mutual references.
func (c *Catalog) build() (map[string]*Model, error) {
	models := make(map[string]*Model, len(c.defs))

	for i := range c.defs {
		def := &c.defs[i]
		model, err := c.buildModel(def)
		if err != nil {
			return nil, err
		}
		if _, exists := models[model.Name]; exists {
			return nil, schemaErrorf(model.Name, "duplicate model name")
		}
		models[model.Name] = model
	}

	for i := range c.defs {
		def := &c.defs[i]
		if err := c.linkRelations(models, def, models[def.Name]); err != nil {
			return nil, err
		}
	}

	return models, nil
}

func (c *Catalog) buildModel(def *Definition) (*Model, error) {
	if def.Name == "" {
		return nil, schemaErrorf("", "model with empty name")
	}

	table := def.Table
	if table == "" {
		table = c.namer.TableName(def.Name)
	}

	model := &Model{
		Name:      def.Name,
		Table:     table,
		columnsBy: make(map[string]*Column, len(def.Columns)),
		hybridsBy: make(map[string]*Hybrid, len(def.Hybrids)),
		relations: make(map[string]*Relation, len(def.Relations)),
	}

	for _, colDef := range def.Columns {
		if err := validateAttrName(def.Name, "column", colDef.Name); err != nil {
			return nil, err
		}
		if _, exists := model.columnsBy[colDef.Name]; exists {
			return nil, schemaErrorf(def.Name, "duplicate column %q", colDef.Name)
		}
		col := &Column{
			Name:          colDef.Name,
			Kind:          colDef.Kind,
			Nullable:      colDef.Nullable,
			PrimaryKey:    colDef.PrimaryKey,
			AutoIncrement: colDef.AutoIncrement,
			ReadOnly:      colDef.ReadOnly,
			BinaryUUID:    colDef.BinaryUUID,
		}
		model.columns = append(model.columns, col)
		model.columnsBy[col.Name] = col
		if col.PrimaryKey {
			model.primary = append(model.primary, col)
		}
	}

	if len(model.primary) == 0 {
		return nil, schemaErrorf(def.Name, "no primary key")
	}

	for _, hybDef := range def.Hybrids {
		if err := validateAttrName(def.Name, "hybrid", hybDef.Name); err != nil {
			return nil, err
		}
		if _, exists := model.columnsBy[hybDef.Name]; exists {
			return nil, schemaErrorf(def.Name, "hybrid %q collides with a column", hybDef.Name)
		}
		if _, exists := model.hybridsBy[hybDef.Name]; exists {
			return nil, schemaErrorf(def.Name, "duplicate hybrid %q", hybDef.Name)
		}
		if hybDef.Expr == "" {
			return nil, schemaErrorf(def.Name, "hybrid %q has no expression", hybDef.Name)
		}
		model.hybridsBy[hybDef.Name] = &Hybrid{
			Name: hybDef.Name,
			Expr: hybDef.Expr,
			Kind: hybDef.Kind,
		}
	}

	if def.Timestamps {
		model.timestamps = true
		model.createdAt = def.CreatedAtColumn
		if model.createdAt == "" {
			model.createdAt = "created_at"
		}
		model.updatedAt = def.UpdatedAtColumn
		if model.updatedAt == "" {
			model.updatedAt = "updated_at"
		}
		for _, name := range []string{model.createdAt, model.updatedAt} {
			if _, ok := model.columnsBy[name]; !ok {
				return nil, schemaErrorf(def.Name, "timestamp column %q not declared", name)
			}
		}
	}

	return model, nil
}

func (c *Catalog) linkRelations(models map[string]*Model, def *Definition, model *Model) error {
	for _, relDef := range def.Relations {
		if err := validateAttrName(def.Name, "relation", relDef.Name); err != nil {
			return err
		}
		if _, exists := model.columnsBy[relDef.Name]; exists {
			return schemaErrorf(def.Name, "relation %q collides with a column", relDef.Name)
		}
		if _, exists := model.hybridsBy[relDef.Name]; exists {
			return schemaErrorf(def.Name, "relation %q collides with a hybrid", relDef.Name)
		}
		if _, exists := model.relations[relDef.Name]; exists {
			return schemaErrorf(def.Name, "duplicate relation %q", relDef.Name)
		}

		target, ok := models[relDef.Target]
		if !ok {
			return schemaErrorf(def.Name, "relation %q: target model %q not registered", relDef.Name, relDef.Target)
		}

		rel, err := c.linkRelation(def.Name, relDef, model, target)
		if err != nil {
			return err
		}
		model.relations[relDef.Name] = rel
	}
	return nil
}

func (c *Catalog) linkRelation(modelName string, relDef RelationDef, model, target *Model) (*Relation, error) {
	rel := &Relation{
		Name:   relDef.Name,
		Kind:   relDef.Kind,
		Source: model,
		Target: target,
	}

	localName := relDef.LocalColumn
	remoteName := relDef.RemoteColumn

	switch relDef.Kind {
	case BelongsTo:
		if localName == "" {
			localName = c.namer.ForeignKeyColumn(target.Name)
		}
		if remoteName == "" {
			pk, err := singlePrimaryKey(modelName, relDef.Name, target)
			if err != nil {
				return nil, err
			}
			remoteName = pk
		}

	case HasOne, HasMany:
		if localName == "" {
			pk, err := singlePrimaryKey(modelName, relDef.Name, model)
			if err != nil {
				return nil, err
			}
			localName = pk
		}
		if remoteName == "" {
			remoteName = c.namer.ForeignKeyColumn(model.Name)
		}

	case ManyToMany:
		if relDef.JoinTable == "" {
			return nil, schemaErrorf(modelName, "relation %q: many-to-many requires a join table", relDef.Name)
		}
		if localName == "" {
			pk, err := singlePrimaryKey(modelName, relDef.Name, model)
			if err != nil {
				return nil, err
			}
			localName = pk
		}
		if remoteName == "" {
			pk, err := singlePrimaryKey(modelName, relDef.Name, target)
			if err != nil {
				return nil, err
			}
			remoteName = pk
		}
		rel.JoinTable = relDef.JoinTable
		rel.JoinLocalColumn = relDef.JoinLocalColumn
		if rel.JoinLocalColumn == "" {
			rel.JoinLocalColumn = c.namer.ForeignKeyColumn(model.Name)
		}
		rel.JoinRemoteColumn = relDef.JoinRemoteColumn
		if rel.JoinRemoteColumn == "" {
			rel.JoinRemoteColumn = c.namer.ForeignKeyColumn(target.Name)
		}

	default:
		return nil, schemaErrorf(modelName, "relation %q: unknown relation kind", relDef.Name)
	}

	local, ok := model.Column(localName)
	if !ok {
		return nil, schemaErrorf(modelName, "relation %q: local column %q not found", relDef.Name, localName)
	}
	remote, ok := target.Column(remoteName)
	if !ok {
		return nil, schemaErrorf(modelName, "relation %q: remote column %q not found on %s", relDef.Name, remoteName, target.Name)
	}
	rel.LocalColumn = local
	rel.RemoteColumn = remote

	return rel, nil
}

func singlePrimaryKey(modelName, relName string, m *Model) (string, error) {
	if len(m.primary) != 1 {
		return "", schemaErrorf(modelName, "relation %q: composite primary key on %s requires explicit column mapping", relName, m.Name)
	}
	return m.primary[0].Name, nil
}

func validateAttrName(modelName, what, name string) error {
	if name == "" {
		return schemaErrorf(modelName, "%s with empty name", what)
	}
	if strings.Contains(name, reservedSep) {
		return schemaErrorf(modelName, "%s %q: name contains reserved separator %q", what, name, reservedSep)
	}
	return nil
}
