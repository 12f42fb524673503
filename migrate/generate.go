package migrate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dave/jennifer/jen"
	"golang.org/x/tools/imports"

	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/registry"
)

const pkgPath = "github.com/syssam/velograph/migrate"

// ErrNoChanges is returned by Generate when the current snapshot matches
// the previous one.
var ErrNoChanges = errors.New("migrate: no schema changes")

// GenerateOptions configures Generate.
type GenerateOptions struct {
	// Dir is the output directory of the migrations package.
	Dir string
	// Package is the package name. Defaults to "migrations".
	Package string
	// Var is the package-level Set the migrations add themselves to.
	// Defaults to "Migrations".
	Var string
	// Name describes the migration, e.g. "add_person_age". The file and
	// migration name are the generation time followed by Name.
	Name string
	// Previous is the revision to diff against, usually LatestSnapshot of
	// the existing migrations. Nil is an empty schema.
	Previous *compiler.Snapshot
	// Current is the revision to migrate to.
	Current *compiler.Snapshot
	// Registry, when set, lets Up name entity types as SetType[T] instead
	// of SetTypeName.
	Registry *registry.Context
	// Now is the generation time. Defaults to time.Now.
	Now time.Time
}

// Generated describes a generated migration.
type Generated struct {
	Name  string
	Path  string
	Delta *Delta
	Plan  *Plan
}

var nameRe = regexp.MustCompile(`^[a-z0-9_]*$`)

func (o *GenerateOptions) defaults() error {
	if o.Dir == "" {
		return errors.New("migrate: missing output directory")
	}
	if o.Current == nil {
		return errors.New("migrate: missing current snapshot")
	}
	if !nameRe.MatchString(o.Name) {
		return fmt.Errorf("migrate: migration name %q must be lower snake case", o.Name)
	}
	if o.Package == "" {
		o.Package = "migrations"
	}
	if o.Var == "" {
		o.Var = "Migrations"
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Now = o.Now.UTC().Truncate(time.Second)
	return nil
}

// Generate diffs the current snapshot against the previous one and writes
// a Go source file registering the resulting migration. The file embeds
// the current snapshot, so that the next run can diff against it. The set
// declaration file is written on first use.
func Generate(o GenerateOptions) (*Generated, error) {
	if err := o.defaults(); err != nil {
		return nil, err
	}
	delta := Diff(o.Previous, o.Current)
	if delta.Empty() {
		return nil, ErrNoChanges
	}
	plan, err := NewPlan(delta, o.Current)
	if err != nil {
		return nil, err
	}
	name := o.Now.Format("20060102150405")
	if o.Name != "" {
		name += "_" + o.Name
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("migrate: create output directory: %w", err)
	}
	setFile := filepath.Join(o.Dir, "migrations.go")
	if _, err := os.Stat(setFile); errors.Is(err, os.ErrNotExist) {
		if err := write(setFile, setSource(o)); err != nil {
			return nil, err
		}
	}
	path := filepath.Join(o.Dir, name+".go")
	if err := write(path, migrationSource(o, name, plan)); err != nil {
		return nil, err
	}
	return &Generated{Name: name, Path: path, Delta: delta, Plan: plan}, nil
}

func header(f *jen.File) {
	f.HeaderComment("Code generated by velograph. DO NOT EDIT.")
}

func setSource(o GenerateOptions) *jen.File {
	f := jen.NewFile(o.Package)
	header(f)
	f.Commentf("%s holds the authored migrations.", o.Var)
	f.Var().Id(o.Var).Op("=").Qual(pkgPath, "NewSet").Call()
	return f
}

func migrationSource(o GenerateOptions, name string, plan *Plan) *jen.File {
	f := jen.NewFile(o.Package)
	header(f)
	f.ImportName(pkgPath, "migrate")
	t := o.Now
	f.Func().Id("init").Params().Block(
		jen.Id(o.Var).Dot("MustAdd").Call(jen.Op("&").Qual(pkgPath, "Migration").Values(jen.Dict{
			jen.Id("Name"): jen.Lit(name),
			jen.Id("GeneratedAt"): jen.Qual("time", "Date").Call(
				jen.Lit(t.Year()), jen.Qual("time", t.Month().String()), jen.Lit(t.Day()),
				jen.Lit(t.Hour()), jen.Lit(t.Minute()), jen.Lit(t.Second()), jen.Lit(0),
				jen.Qual("time", "UTC"),
			),
			jen.Id("Snapshot"): textLit(o.Current.Text()),
			jen.Id("Up"):       builderFunc(o, plan.Up),
			jen.Id("Down"):     builderFunc(o, plan.Down),
		})),
	)
	return f
}

// textLit renders multi-line text as a raw string when possible.
func textLit(s string) jen.Code {
	if strings.Contains(s, "`") {
		return jen.Lit(s)
	}
	return jen.Id("`" + s + "`")
}

func builderFunc(o GenerateOptions, ops []Op) jen.Code {
	stmts := make([]jen.Code, 0, len(ops))
	for _, op := range ops {
		stmts = append(stmts, opStmt(o, op))
	}
	return jen.Func().Params(jen.Id("b").Op("*").Qual(pkgPath, "Builder")).Block(stmts...)
}

func opStmt(o GenerateOptions, op Op) jen.Code {
	switch op.Kind {
	case OpSetType:
		if ent := entityType(o.Registry, op.Name); ent != nil {
			return jen.Qual(pkgPath, "SetType").Types(ent).Call(jen.Id("b"))
		}
		return jen.Id("b").Dot("SetTypeName").Call(jen.Lit(op.Name))
	case OpDropPredicate:
		return jen.Id("b").Dot("DropPredicate").Call(jen.Lit(op.Name))
	default:
		return jen.Id("b").Dot("DropType").Call(jen.Lit(op.Name))
	}
}

// entityType returns the qualified Go type mapped to a graph type, nil
// when it cannot be imported.
func entityType(reg *registry.Context, typeName string) jen.Code {
	if reg == nil {
		return nil
	}
	cm, err := reg.ResolveType(typeName)
	if err != nil {
		return nil
	}
	t := cm.Entity
	if t.Name() == "" || t.PkgPath() == "" || t.PkgPath() == "main" {
		return nil
	}
	return jen.Qual(t.PkgPath(), t.Name())
}

func write(path string, f *jen.File) error {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return fmt.Errorf("migrate: render %s: %w", filepath.Base(path), err)
	}
	src, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("migrate: format %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return fmt.Errorf("migrate: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
