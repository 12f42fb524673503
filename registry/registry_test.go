package registry_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/internal/testschema"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/schema/edge"
	"github.com/syssam/velograph/schema/field"
	"github.com/syssam/velograph/schema/predicate"
	"github.com/syssam/velograph/uid"
)

type Product struct {
	UID  uid.UID
	Name string
}

type ProductSchema struct{ velograph.Schema }

func (ProductSchema) Fields() []velograph.Field {
	return []velograph.Field{field.String("name").Term()}
}

type Order struct {
	UID   uid.UID
	Items []*Product
}

type OrderSchema struct{ velograph.Schema }

func (OrderSchema) Edges() []velograph.Edge {
	return []velograph.Edge{edge.To("items", Product{})}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	require.True(t, reg.Frozen())

	for _, v := range []any{testschema.Person{}, &testschema.Person{}, testschema.PersonSchema{}, "Person", reflect.TypeFor[testschema.Person]()} {
		cm, err := reg.Resolve(v)
		require.NoError(t, err)
		assert.Equal(t, "Person", cm.TypeName)
	}

	_, err := reg.Resolve(Product{})
	require.Error(t, err)
	assert.True(t, velograph.IsUnmappedType(err))
	_, err = reg.ResolveType("Nope")
	assert.ErrorIs(t, err, velograph.ErrUnmappedType)
}

func TestResolvePredicate(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()

	d, err := reg.ResolvePredicate(testschema.Person{}, "WorksFor")
	require.NoError(t, err)
	assert.Equal(t, "works_for", d.Name)
	assert.Equal(t, "Company", d.Target)
	assert.True(t, d.Reverse)

	d, err = reg.ResolvePredicate(testschema.Person{}, "salary")
	require.NoError(t, err)
	assert.True(t, d.FacetHost)

	d, err = reg.ResolvePredicate("Company", "~works_for")
	require.NoError(t, err)
	assert.True(t, d.Inverse)

	_, err = reg.ResolvePredicate(testschema.Person{}, "Missing")
	assert.ErrorIs(t, err, velograph.ErrInvalidMapping)
}

func TestProperties(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	cm, err := reg.Resolve(testschema.Person{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		kind  registry.PropertyKind
		inner registry.PropertyKind
		list  bool
	}{
		{"Name", registry.KindScalar, 0, false},
		{"Nickname", registry.KindScalar, 0, false},
		{"Tags", registry.KindScalar, 0, true},
		{"Salary", registry.KindFacet, registry.KindScalar, false},
		{"Embedding", registry.KindVector, 0, false},
		{"WorksFor", registry.KindEdge, 0, false},
		{"Friends", registry.KindFacet, registry.KindEdge, true},
		{"Owns", registry.KindEdge, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := cm.Property(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.inner, p.Inner)
			assert.Equal(t, tt.list, p.List)
		})
	}

	p, _ := cm.Property("Owns")
	assert.Equal(t, reflect.TypeFor[testschema.Asset](), p.Target)
	assert.Empty(t, p.Predicate.Target)

	company, err := reg.Resolve("Company")
	require.NoError(t, err)
	loc, ok := company.Property("Location")
	require.True(t, ok)
	assert.Equal(t, registry.KindGeometry, loc.Kind)
	assert.Len(t, company.Declared(), 3)
}

func TestFreezeAmbiguous(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	require.NoError(t, reg.Add(testschema.Company{}, testschema.CompanySchema{}))
	require.NoError(t, reg.Add(&testschema.Person{}, testschema.PersonSchema{}))
	require.NoError(t, reg.Add(Product{}, ProductSchema{}))

	err := reg.Freeze()
	require.Error(t, err)
	assert.False(t, reg.Frozen())
	var amb *velograph.AmbiguousPredicateError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, "name", amb.Predicate)
	assert.Equal(t, []string{"Company", "Person", "Product"}, amb.Types)
	assert.Equal(t, "name: string @index(term) .", amb.Renderings["Product"])
	assert.Contains(t, err.Error(), "Company, Person, Product")
}

func TestFreezeUnmappedTarget(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	require.NoError(t, reg.Add(Order{}, OrderSchema{}))
	err := reg.Freeze()
	require.Error(t, err)
	var unmapped *velograph.UnmappedTypeError
	require.True(t, errors.As(err, &unmapped))
	assert.Equal(t, "Order", unmapped.From)
	assert.Equal(t, "Items", unmapped.Property)

	require.NoError(t, reg.Add(Product{}, ProductSchema{}))
	require.NoError(t, reg.Freeze())
	d, err := reg.ResolvePredicate(Order{}, "Items")
	require.NoError(t, err)
	assert.Equal(t, "Product", d.Target)
}

type Widget struct {
	UID  uid.UID
	Name string
}

type WidgetSchema struct{ velograph.Schema }

func (WidgetSchema) Config() velograph.Config { return velograph.Config{Type: "Product"} }

func TestDuplicateType(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	require.NoError(t, reg.Add(Product{}, ProductSchema{}))
	err := reg.Add(Widget{}, WidgetSchema{})
	require.Error(t, err)
	assert.ErrorIs(t, err, velograph.ErrDuplicateType)

	// Re-registering the same entity replaces its class map.
	require.NoError(t, reg.Add(Product{}, ProductSchema{}))
	assert.Len(t, reg.Classes(), 1)
}

func TestFrozenRegistration(t *testing.T) {
	t.Parallel()
	reg := registry.New()
	_, err := reg.Resolve(Product{})
	assert.ErrorIs(t, err, velograph.ErrNotFrozen)

	require.NoError(t, reg.Add(Product{}, ProductSchema{}))
	require.NoError(t, reg.Freeze())
	require.NoError(t, reg.Freeze())
	err = reg.Add(Widget{}, ProductSchema{})
	assert.ErrorIs(t, err, velograph.ErrFrozen)
	assert.Panics(t, func() { reg.MustAdd(Widget{}, ProductSchema{}) })
}

type Badge struct {
	UID   uid.UID
	Label int
}

type BadgeSchema struct{ velograph.Schema }

func (BadgeSchema) Fields() []velograph.Field {
	return []velograph.Field{field.String("label")}
}

type Orphan struct {
	UID    uid.UID
	Owners []*Product
}

type OrphanSchema struct{ velograph.Schema }

func (OrphanSchema) Edges() []velograph.Edge {
	return []velograph.Edge{edge.From("owners", Product{}).Ref("name")}
}

type Reserved struct {
	UID uid.UID
	Uid string
}

type ReservedSchema struct{ velograph.Schema }

func (ReservedSchema) Fields() []velograph.Field {
	return []velograph.Field{field.String("uid")}
}

func TestMappingErrors(t *testing.T) {
	t.Parallel()
	_, err := registry.NewClassMap(Badge{}, BadgeSchema{})
	assert.True(t, velograph.IsMappingError(err))
	assert.Contains(t, err.Error(), "requires a string")

	_, err = registry.NewClassMap(struct{ Name string }{}, ProductSchema{})
	assert.ErrorIs(t, err, velograph.ErrInvalidMapping)

	_, err = registry.NewClassMap(Reserved{}, ReservedSchema{})
	assert.ErrorContains(t, err, "reserved")

	reg := registry.New()
	require.NoError(t, reg.Add(Product{}, ProductSchema{}))
	require.NoError(t, reg.Add(Orphan{}, OrphanSchema{}))
	err = reg.Freeze()
	assert.ErrorContains(t, err, "not declared with @reverse")
}

func TestPredicates(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	preds := reg.Predicates()
	names := make([]string, len(preds))
	for i, p := range preds {
		names[i] = p.Name
	}
	assert.IsIncreasing(t, names)
	assert.NotContains(t, names, "employees")
	assert.Equal(t, []string{"Company", "Person"}, reg.DeclaringTypes("name"))

	d, ok := reg.Predicate("embedding")
	require.True(t, ok)
	assert.Equal(t, predicate.KindVector, d.Kind)
}

func TestConcurrentResolve(t *testing.T) {
	t.Parallel()
	reg := testschema.MustNew()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cm, err := reg.Resolve(testschema.Person{})
			assert.NoError(t, err)
			assert.Equal(t, "Person", cm.TypeName)
			_, err = reg.ResolveConcrete(reflect.TypeFor[testschema.Asset](), []string{"Company"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestPropertyName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "WorksFor", registry.PropertyName("works_for"))
	assert.Equal(t, "PersonName", registry.PropertyName("person.name"))
	assert.Equal(t, "works_for", registry.PredicateName("WorksFor"))
}
