// Package gpkg exports coverage maps to GeoPackages, one feature per cell,
// and reads them back as seed maps.
package gpkg

import (
	"fmt"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver behind gpkg.Open
	"github.com/pdok/skypix/coverage"
	"github.com/pdok/skypix/pixel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultTableName = "coverage"
	DefaultPagesize  = 1000
)

// wgs84 is used for the cell polygons, with right ascension as longitude and
// declination as latitude.
var wgs84 = gpkg.SpatialReferenceSystem{
	Name:                   "WGS 84 geodetic",
	ID:                     4326,
	Organization:           "EPSG",
	OrganizationCoordsysID: 4326,
	Definition:             `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`,
	Description:            "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid",
}

type column struct {
	name    string
	ctype   string
	notnull bool
	pk      bool
}

type Table struct {
	Name    string
	columns []column
	gcolumn string
	gtype   gpkg.GeometryType
	srs     gpkg.SpatialReferenceSystem
}

// CoverageTable describes the feature table a map is written to.
func CoverageTable(name string) Table {
	return Table{
		Name: name,
		columns: []column{
			{name: "fid", ctype: "INTEGER", notnull: true, pk: true},
			{name: "token", ctype: "TEXT", notnull: true},
			{name: "level", ctype: "INTEGER", notnull: true},
			{name: "weight", ctype: "REAL", notnull: true},
			{name: "area", ctype: "REAL", notnull: true},
			{name: "geom", ctype: "POLYGON"},
		},
		gcolumn: "geom",
		gtype:   gpkg.Polygon,
		srs:     wgs84,
	}
}

type TargetGeopackage struct {
	Table    Table
	pagesize int
	handle   *gpkg.Handle
	log      *zap.Logger
}

// NewTarget opens (or creates) file and prepares table for writing.
func NewTarget(file string, table Table, pagesize int, log *zap.Logger) (*TargetGeopackage, error) {
	if pagesize <= 0 {
		pagesize = DefaultPagesize
	}
	handle, err := gpkg.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "error opening GeoPackage")
	}
	target := &TargetGeopackage{Table: table, pagesize: pagesize, handle: handle, log: log}
	if err = target.createTable(); err != nil {
		_ = handle.Close()
		return nil, err
	}
	return target, nil
}

func (target *TargetGeopackage) Close() error {
	return target.handle.Close()
}

func (target *TargetGeopackage) createTable() error {
	if err := target.handle.UpdateSRS(target.Table.srs); err != nil {
		return errors.Wrap(err, "error adding spatial reference system")
	}
	if _, err := target.handle.Exec(target.Table.createSQL()); err != nil {
		return errors.Wrap(err, "error building table in target GeoPackage")
	}
	err := target.handle.AddGeometryTable(gpkg.TableDescription{
		Name:          target.Table.Name,
		ShortName:     target.Table.Name,
		Description:   "skypix coverage map",
		GeometryField: target.Table.gcolumn,
		GeometryType:  target.Table.gtype,
		SRS:           int32(target.Table.srs.ID),
		//
		Z: gpkg.Prohibited,
		M: gpkg.Prohibited,
	})
	return errors.Wrap(err, "error adding geometry table in target GeoPackage")
}

// WriteMap writes every cell of m as a feature, pagesize features per transaction.
func (target *TargetGeopackage) WriteMap(m *coverage.Map) error {
	entries := m.Entries()
	var ext *geom.Extent
	for start := 0; start < len(entries); start += target.pagesize {
		end := min(start+target.pagesize, len(entries))
		var err error
		if ext, err = target.writeEntries(entries[start:end], ext); err != nil {
			return err
		}
		target.log.Debug("wrote features", zap.Int("count", end), zap.Int("total", len(entries)))
	}
	if ext == nil {
		return nil
	}
	return errors.Wrap(target.handle.UpdateGeometryExtent(target.Table.Name, ext), "failed to update extent")
}

func (target *TargetGeopackage) writeEntries(entries []coverage.Entry, ext *geom.Extent) (_ *geom.Extent, err error) {
	tx, err := target.handle.Begin()
	if err != nil {
		return ext, errors.Wrap(err, "could not start a transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(target.Table.insertSQL())
	if err != nil {
		return ext, errors.Wrap(err, "could not prepare a statement")
	}
	defer stmt.Close()

	for _, e := range entries {
		polygon := e.Cell.Polygon()
		sb, err := gpkg.NewBinary(int32(target.Table.srs.ID), polygon)
		if err != nil {
			return ext, errors.Wrapf(err, "could not create a binary geometry for %s", e.Cell)
		}
		if _, err = stmt.Exec(e.Cell.Token(), e.Cell.Level(), e.Weight, e.Cell.ExactArea(), sb); err != nil {
			return ext, errors.Wrapf(err, "could not insert cell %s", e.Cell)
		}

		if ext == nil {
			ext, err = geom.NewExtentFromGeometry(polygon)
			if err != nil {
				target.log.Warn("failed to create new extent", zap.Stringer("cell", e.Cell), zap.Error(err))
				ext = nil
			}
		} else {
			ext.AddGeometry(polygon)
		}
	}
	return ext, errors.Wrap(tx.Commit(), "could not commit")
}

type SourceGeopackage struct {
	Table  Table
	handle *gpkg.Handle
}

func OpenSource(file string, table Table) (*SourceGeopackage, error) {
	handle, err := gpkg.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "error opening GeoPackage")
	}
	return &SourceGeopackage{Table: table, handle: handle}, nil
}

func (source *SourceGeopackage) Close() error {
	return source.handle.Close()
}

// ReadMap reads the cells written by TargetGeopackage.WriteMap. The
// geometries are ignored: the tokens are authoritative.
func (source *SourceGeopackage) ReadMap() (*coverage.Map, error) {
	rows, err := source.handle.Query(`SELECT token, level, weight FROM "` + source.Table.Name + `";`)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading table %s", source.Table.Name)
	}
	defer rows.Close()

	var entries []coverage.Entry
	for rows.Next() {
		var token string
		var level int
		var weight float64
		if err = rows.Scan(&token, &level, &weight); err != nil {
			return nil, errors.Wrap(err, "error reading row values")
		}
		c := pixel.FromToken(token)
		if !c.IsValid() || c.Level() != level {
			return nil, fmt.Errorf("invalid cell %q at level %d", token, level)
		}
		entries = append(entries, coverage.Entry{Cell: c, Weight: weight})
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return coverage.FromEntries(entries)
}

// createSQL creates a CREATE statement on the given table and column information
func (t Table) createSQL() string {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%v"`, t.Name)
	var columnparts []string
	for _, column := range t.columns {
		columnpart := column.name + ` ` + column.ctype
		if column.notnull {
			columnpart = columnpart + ` NOT NULL`
		}
		if column.pk {
			columnpart = columnpart + ` PRIMARY KEY`
		}
		columnparts = append(columnparts, columnpart)
	}
	return create + `(` + strings.Join(columnparts, `, `) + `);`
}

// insertSQL leaves out the primary key, sqlite assigns it
func (t Table) insertSQL() string {
	var csql, vsql []string
	for _, c := range t.columns {
		if c.name != t.gcolumn && !c.pk {
			csql = append(csql, c.name)
			vsql = append(vsql, `?`)
		}
	}
	csql = append(csql, t.gcolumn)
	vsql = append(vsql, `?`)
	return `INSERT INTO "` + t.Name + `"(` + strings.Join(csql, `,`) + `) VALUES(` + strings.Join(vsql, `,`) + `)`
}
