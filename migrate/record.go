package migrate

import (
	"sync"
	"time"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/field"
	"github.com/syssam/velograph/schema/predicate"
	"github.com/syssam/velograph/uid"
)

// RecordType is the graph type of migration records.
const RecordType = "VelographMigration"

// Record is the store node tracking one migration. A zero AppliedAt means
// the migration was started but its Up did not complete.
type Record struct {
	UID         uid.UID
	DType       []string
	Name        string
	GeneratedAt time.Time
	AppliedAt   time.Time
}

// Applied reports whether the record is stamped.
func (r *Record) Applied() bool { return !r.AppliedAt.IsZero() }

// RecordSchema declares Record.
type RecordSchema struct{ velograph.Schema }

// Fields of the Record.
func (RecordSchema) Fields() []velograph.Field {
	return []velograph.Field{
		field.String("migration.name").Exact().Property("Name"),
		field.DateTime("migration.generated_at").Index(predicate.Hour).Property("GeneratedAt"),
		field.DateTime("migration.applied_at").Property("AppliedAt"),
	}
}

// Config of the Record.
func (RecordSchema) Config() velograph.Config {
	return velograph.Config{Type: RecordType}
}

var records = sync.OnceValues(func() (*registry.Context, error) {
	reg := registry.New()
	if err := reg.Add(&Record{}, RecordSchema{}); err != nil {
		return nil, err
	}
	if err := reg.Freeze(); err != nil {
		return nil, err
	}
	return reg, nil
})

// RecordRegistry returns the frozen registry mapping Record. It is kept
// apart from application registries.
func RecordRegistry() *registry.Context {
	reg, err := records()
	if err != nil {
		panic(err)
	}
	return reg
}

// RecordSchemaText returns the store text declaring migration records.
func RecordSchemaText() string {
	return compiler.MustCompile(RecordRegistry()).StoreText()
}
