package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rickb777/date"

	"github.com/transit-history/ingestor/internal/model"
)

// Tables is one fully materialized copy of the persisted history tables.
// The pipeline loads it at the start of a date, hands each component an
// updated copy and writes everything back in a single transaction.
type Tables struct {
	Routes           []model.Route
	Versions         []model.RouteVersion
	Variants         []model.ShapeVariant
	Activations      []model.Activation
	Shapes           []model.ShapePoint
	TemporaryChanges []model.TemporaryChange
}

// LoadAll reads all six tables.
func (db *DB) LoadAll(ctx context.Context) (*Tables, error) {
	t := &Tables{}

	if err := db.loadRoutes(ctx, t); err != nil {
		return nil, err
	}
	if err := db.loadVersions(ctx, t); err != nil {
		return nil, err
	}
	if err := db.loadVariants(ctx, t); err != nil {
		return nil, err
	}
	if err := db.loadActivations(ctx, t); err != nil {
		return nil, err
	}
	if err := db.loadShapes(ctx, t); err != nil {
		return nil, err
	}
	if err := db.loadTemporaryChanges(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

// SaveAll replaces the database contents with the given tables in one
// transaction. Either every table of the date is persisted or none is.
func (db *DB) SaveAll(ctx context.Context, t *Tables) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	savers := []func(context.Context, *sql.Tx, *Tables) error{
		saveRoutes,
		saveVersions,
		saveVariants,
		saveActivations,
		saveShapes,
		saveTemporaryChanges,
	}
	for _, save := range savers {
		if err := save(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (db *DB) loadRoutes(ctx context.Context, t *Tables) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT route_id, agency_id, short_name, mode, color, text_color
		 FROM routes ORDER BY route_id`)
	if err != nil {
		return fmt.Errorf("failed to load routes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.Route
		if err := rows.Scan(&r.RouteID, &r.AgencyID, &r.ShortName, &r.Mode, &r.Color, &r.TextColor); err != nil {
			return fmt.Errorf("failed to scan route: %w", err)
		}
		t.Routes = append(t.Routes, r)
	}
	return rows.Err()
}

func saveRoutes(ctx context.Context, tx *sql.Tx, t *Tables) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM routes"); err != nil {
		return fmt.Errorf("failed to clear routes: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO routes (route_id, agency_id, short_name, mode, color, text_color)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare routes insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range t.Routes {
		if _, err := stmt.ExecContext(ctx, r.RouteID, r.AgencyID, r.ShortName, r.Mode, r.Color, r.TextColor); err != nil {
			return fmt.Errorf("failed to insert route %s: %w", r.RouteID, err)
		}
	}
	return nil
}

func (db *DB) loadVersions(ctx context.Context, t *Tables) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT version_id, route_id, direction_id, long_name, description,
		        valid_from, valid_to, main_shape_id, headsign, parent_version_id, note
		 FROM route_versions ORDER BY version_id`)
	if err != nil {
		return fmt.Errorf("failed to load route versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v model.RouteVersion
		var validFrom string
		var validTo sql.NullString
		var parent sql.NullInt64
		var note sql.NullString
		if err := rows.Scan(&v.VersionID, &v.RouteID, &v.DirectionID, &v.LongName, &v.Description,
			&validFrom, &validTo, &v.MainShapeID, &v.Headsign, &parent, &note); err != nil {
			return fmt.Errorf("failed to scan route version: %w", err)
		}
		if v.ValidFrom, err = date.ParseISO(validFrom); err != nil {
			return fmt.Errorf("version %d: bad valid_from %q: %w", v.VersionID, validFrom, err)
		}
		if validTo.Valid {
			if v.ValidTo, err = date.ParseISO(validTo.String); err != nil {
				return fmt.Errorf("version %d: bad valid_to %q: %w", v.VersionID, validTo.String, err)
			}
		}
		v.ParentVersionID = parent.Int64
		v.Note = note.String
		t.Versions = append(t.Versions, v)
	}
	return rows.Err()
}

func saveVersions(ctx context.Context, tx *sql.Tx, t *Tables) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM route_versions"); err != nil {
		return fmt.Errorf("failed to clear route versions: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO route_versions (version_id, route_id, direction_id, long_name, description,
		                             valid_from, valid_to, main_shape_id, headsign, parent_version_id, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare route_versions insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range t.Versions {
		var validTo interface{}
		if !v.Open() {
			validTo = v.ValidTo.String()
		}
		var parent interface{}
		if v.ParentVersionID != 0 {
			parent = v.ParentVersionID
		}
		var note interface{}
		if v.Note != "" {
			note = v.Note
		}
		if _, err := stmt.ExecContext(ctx, v.VersionID, v.RouteID, v.DirectionID, v.LongName, v.Description,
			v.ValidFrom.String(), validTo, v.MainShapeID, v.Headsign, parent, note); err != nil {
			return fmt.Errorf("failed to insert version %d: %w", v.VersionID, err)
		}
	}
	return nil
}

func (db *DB) loadVariants(ctx context.Context, t *Tables) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT shape_variant_id, version_id, shape_id, headsign, is_main, note
		 FROM shape_variants ORDER BY shape_variant_id`)
	if err != nil {
		return fmt.Errorf("failed to load shape variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v model.ShapeVariant
		var isMain int
		var note sql.NullString
		if err := rows.Scan(&v.ShapeVariantID, &v.VersionID, &v.ShapeID, &v.Headsign, &isMain, &note); err != nil {
			return fmt.Errorf("failed to scan shape variant: %w", err)
		}
		v.IsMain = isMain != 0
		v.Note = note.String
		t.Variants = append(t.Variants, v)
	}
	return rows.Err()
}

func saveVariants(ctx context.Context, tx *sql.Tx, t *Tables) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM shape_variants"); err != nil {
		return fmt.Errorf("failed to clear shape variants: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO shape_variants (shape_variant_id, version_id, shape_id, headsign, is_main, note)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare shape_variants insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range t.Variants {
		isMain := 0
		if v.IsMain {
			isMain = 1
		}
		var note interface{}
		if v.Note != "" {
			note = v.Note
		}
		if _, err := stmt.ExecContext(ctx, v.ShapeVariantID, v.VersionID, v.ShapeID, v.Headsign, isMain, note); err != nil {
			return fmt.Errorf("failed to insert variant %d: %w", v.ShapeVariantID, err)
		}
	}
	return nil
}

func (db *DB) loadActivations(ctx context.Context, t *Tables) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT date, shape_variant_id, exception_type
		 FROM shape_variant_activations ORDER BY date, shape_variant_id`)
	if err != nil {
		return fmt.Errorf("failed to load activations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Activation
		var day string
		var exc sql.NullInt64
		if err := rows.Scan(&day, &a.ShapeVariantID, &exc); err != nil {
			return fmt.Errorf("failed to scan activation: %w", err)
		}
		if a.Date, err = date.ParseISO(day); err != nil {
			return fmt.Errorf("activation: bad date %q: %w", day, err)
		}
		a.ExceptionType = int(exc.Int64)
		t.Activations = append(t.Activations, a)
	}
	return rows.Err()
}

func saveActivations(ctx context.Context, tx *sql.Tx, t *Tables) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM shape_variant_activations"); err != nil {
		return fmt.Errorf("failed to clear activations: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO shape_variant_activations (date, shape_variant_id, exception_type)
		 VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare activations insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range t.Activations {
		var exc interface{}
		if a.ExceptionType != model.ExceptionNone {
			exc = a.ExceptionType
		}
		if _, err := stmt.ExecContext(ctx, a.Date.String(), a.ShapeVariantID, exc); err != nil {
			return fmt.Errorf("failed to insert activation for variant %d: %w", a.ShapeVariantID, err)
		}
	}
	return nil
}

func (db *DB) loadShapes(ctx context.Context, t *Tables) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT shape_id, lat, lon, point_sequence, dist_traveled, external_ref
		 FROM shapes ORDER BY shape_id, point_sequence`)
	if err != nil {
		return fmt.Errorf("failed to load shapes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.ShapePoint
		var ref sql.NullString
		if err := rows.Scan(&p.ShapeID, &p.Lat, &p.Lon, &p.Sequence, &p.DistTraveled, &ref); err != nil {
			return fmt.Errorf("failed to scan shape point: %w", err)
		}
		p.ExternalRef = ref.String
		t.Shapes = append(t.Shapes, p)
	}
	return rows.Err()
}

func saveShapes(ctx context.Context, tx *sql.Tx, t *Tables) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM shapes"); err != nil {
		return fmt.Errorf("failed to clear shapes: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO shapes (shape_id, lat, lon, point_sequence, dist_traveled, external_ref)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare shapes insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range t.Shapes {
		var ref interface{}
		if p.ExternalRef != "" {
			ref = p.ExternalRef
		}
		if _, err := stmt.ExecContext(ctx, p.ShapeID, p.Lat, p.Lon, p.Sequence, p.DistTraveled, ref); err != nil {
			return fmt.Errorf("failed to insert shape point %s/%d: %w", p.ShapeID, p.Sequence, err)
		}
	}
	return nil
}

func (db *DB) loadTemporaryChanges(ctx context.Context, t *Tables) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT detour_id, route_id, start_date, end_date, affects_version_id, description
		 FROM temporary_changes ORDER BY detour_id`)
	if err != nil {
		return fmt.Errorf("failed to load temporary changes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.TemporaryChange
		var start, end sql.NullString
		var affects sql.NullInt64
		if err := rows.Scan(&c.DetourID, &c.RouteID, &start, &end, &affects, &c.Description); err != nil {
			return fmt.Errorf("failed to scan temporary change: %w", err)
		}
		if start.Valid {
			if c.StartDate, err = date.ParseISO(start.String); err != nil {
				return fmt.Errorf("temporary change %s: bad start_date: %w", c.DetourID, err)
			}
		}
		if end.Valid {
			if c.EndDate, err = date.ParseISO(end.String); err != nil {
				return fmt.Errorf("temporary change %s: bad end_date: %w", c.DetourID, err)
			}
		}
		c.AffectsVersionID = affects.Int64
		t.TemporaryChanges = append(t.TemporaryChanges, c)
	}
	return rows.Err()
}

func saveTemporaryChanges(ctx context.Context, tx *sql.Tx, t *Tables) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM temporary_changes"); err != nil {
		return fmt.Errorf("failed to clear temporary changes: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO temporary_changes (detour_id, route_id, start_date, end_date, affects_version_id, description)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare temporary_changes insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range t.TemporaryChanges {
		var start, end interface{}
		if !c.StartDate.IsZero() {
			start = c.StartDate.String()
		}
		if !c.EndDate.IsZero() {
			end = c.EndDate.String()
		}
		var affects interface{}
		if c.AffectsVersionID != 0 {
			affects = c.AffectsVersionID
		}
		if _, err := stmt.ExecContext(ctx, c.DetourID, c.RouteID, start, end, affects, c.Description); err != nil {
			return fmt.Errorf("failed to insert temporary change %s: %w", c.DetourID, err)
		}
	}
	return nil
}
