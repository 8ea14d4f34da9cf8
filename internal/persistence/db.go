// Package persistence provides SQL-backed and in-memory tribe storage.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Moszee/generic-sim/internal/economy"
	"github.com/Moszee/generic-sim/internal/tribe"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const metaNextTribeID = "next_tribe_id"

// DB stores tribes in SQLite or PostgreSQL.
type DB struct {
	conn   *sqlx.DB
	driver string
}

// Open connects to the database and creates missing tables. For SQLite the
// dsn is a file path; for PostgreSQL a connection URL.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time; WAL readers do not need extra connections here.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db := &DB{conn: conn, driver: driver}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate(ctx context.Context) error {
	eventID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.driver == DriverPostgres {
		eventID = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS tribes (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			current_tick BIGINT NOT NULL,
			bond_level INTEGER NOT NULL,
			progress_points INTEGER NOT NULL,
			food INTEGER NOT NULL,
			water INTEGER NOT NULL,
			central_food INTEGER,
			central_water INTEGER,
			policy_json TEXT NOT NULL,
			ledger_json TEXT NOT NULL,
			next_family_id BIGINT NOT NULL,
			next_person_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS families (
			tribe_id BIGINT NOT NULL,
			id BIGINT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			food INTEGER NOT NULL,
			water INTEGER NOT NULL,
			PRIMARY KEY (tribe_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS persons (
			tribe_id BIGINT NOT NULL,
			id BIGINT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			age INTEGER NOT NULL,
			health INTEGER NOT NULL,
			hunting_skill DOUBLE PRECISION NOT NULL,
			gathering_skill DOUBLE PRECISION NOT NULL,
			family_id BIGINT,
			family_position INTEGER,
			PRIMARY KEY (tribe_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id ` + eventID + `,
			tribe_id BIGINT NOT NULL,
			tick BIGINT NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sim_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_tribe_tick ON events(tribe_id, tick)`,
	}
	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type tribeRow struct {
	ID             int64  `db:"id"`
	Name           string `db:"name"`
	Description    string `db:"description"`
	CurrentTick    int64  `db:"current_tick"`
	BondLevel      int    `db:"bond_level"`
	ProgressPoints int    `db:"progress_points"`
	Food           int    `db:"food"`
	Water          int    `db:"water"`
	CentralFood    *int   `db:"central_food"`
	CentralWater   *int   `db:"central_water"`
	PolicyJSON     string `db:"policy_json"`
	LedgerJSON     string `db:"ledger_json"`
	NextFamilyID   int64  `db:"next_family_id"`
	NextPersonID   int64  `db:"next_person_id"`
}

type familyRow struct {
	ID       int64  `db:"id"`
	Position int    `db:"position"`
	Name     string `db:"name"`
	Food     int    `db:"food"`
	Water    int    `db:"water"`
}

type personRow struct {
	ID             int64   `db:"id"`
	Position       int     `db:"position"`
	Name           string  `db:"name"`
	Role           string  `db:"role"`
	Age            int     `db:"age"`
	Health         int     `db:"health"`
	HuntingSkill   float64 `db:"hunting_skill"`
	GatheringSkill float64 `db:"gathering_skill"`
	FamilyID       *int64  `db:"family_id"`
	FamilyPosition *int    `db:"family_position"`
}

// SaveTribe writes the tribe with its families and members (full replace).
func (db *DB) SaveTribe(ctx context.Context, t *tribe.Tribe) error {
	policyJSON, err := json.Marshal(t.Policy)
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}
	ledger := t.Ledger
	if ledger == nil {
		ledger = economy.NewLedger()
	}
	ledgerJSON, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := int64(t.ID)
	for _, table := range []string{"persons", "families", "tribes"} {
		col := "tribe_id"
		if table == "tribes" {
			col = "id"
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM "+table+" WHERE "+col+" = ?"), id); err != nil {
			return fmt.Errorf("clear %s for tribe %d: %w", table, t.ID, err)
		}
	}

	var centralFood, centralWater *int
	if t.Central != nil {
		centralFood, centralWater = &t.Central.Food, &t.Central.Water
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO tribes
		(id, name, description, current_tick, bond_level, progress_points,
		 food, water, central_food, central_water, policy_json, ledger_json,
		 next_family_id, next_person_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, t.Name, t.Description, int64(t.CurrentTick), t.BondLevel, t.ProgressPoints,
		t.Resources.Food, t.Resources.Water, centralFood, centralWater,
		string(policyJSON), string(ledgerJSON),
		int64(t.NextFamilyID), int64(t.NextPersonID),
	)
	if err != nil {
		return fmt.Errorf("insert tribe %d: %w", t.ID, err)
	}

	familyPos := make(map[tribe.PersonID]int)
	for i, f := range t.Families {
		for pos, pid := range f.MemberIDs {
			familyPos[pid] = pos
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO families
			(tribe_id, id, position, name, food, water) VALUES (?, ?, ?, ?, ?, ?)`),
			id, int64(f.ID), i, f.Name, f.Storage.Food, f.Storage.Water,
		)
		if err != nil {
			return fmt.Errorf("insert family %d: %w", f.ID, err)
		}
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO persons
		(tribe_id, id, position, name, role, age, health, hunting_skill, gathering_skill,
		 family_id, family_position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range t.Members {
		var familyID *int64
		var position *int
		if p.FamilyID != nil {
			fid := int64(*p.FamilyID)
			pos := familyPos[p.ID]
			familyID, position = &fid, &pos
		}
		_, err := stmt.ExecContext(ctx,
			id, int64(p.ID), i, p.Name, p.Role.String(), p.Age, p.Health,
			p.HuntingSkill, p.GatheringSkill, familyID, position,
		)
		if err != nil {
			return fmt.Errorf("insert person %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// LoadTribe reads a tribe with its families and members.
func (db *DB) LoadTribe(ctx context.Context, id tribe.TribeID) (*tribe.Tribe, error) {
	var row tribeRow
	err := db.conn.GetContext(ctx, &row, db.conn.Rebind("SELECT * FROM tribes WHERE id = ?"), int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tribe %d: %w", id, tribe.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load tribe %d: %w", id, err)
	}

	t := &tribe.Tribe{
		ID:             tribe.TribeID(row.ID),
		Name:           row.Name,
		Description:    row.Description,
		CurrentTick:    uint64(row.CurrentTick),
		BondLevel:      row.BondLevel,
		ProgressPoints: row.ProgressPoints,
		Resources:      tribe.NewResources(row.Food, row.Water),
		Ledger:         economy.NewLedger(),
		NextFamilyID:   tribe.FamilyID(row.NextFamilyID),
		NextPersonID:   tribe.PersonID(row.NextPersonID),
	}
	if row.CentralFood != nil && row.CentralWater != nil {
		c := tribe.NewResources(*row.CentralFood, *row.CentralWater)
		t.Central = &c
	}
	if err := json.Unmarshal([]byte(row.PolicyJSON), &t.Policy); err != nil {
		return nil, fmt.Errorf("decode policy for tribe %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(row.LedgerJSON), t.Ledger); err != nil {
		return nil, fmt.Errorf("decode ledger for tribe %d: %w", id, err)
	}

	var families []familyRow
	if err := db.conn.SelectContext(ctx, &families, db.conn.Rebind(
		"SELECT id, position, name, food, water FROM families WHERE tribe_id = ? ORDER BY position"), int64(id)); err != nil {
		return nil, fmt.Errorf("load families for tribe %d: %w", id, err)
	}
	for _, fr := range families {
		t.Families = append(t.Families, &tribe.Family{
			ID:      tribe.FamilyID(fr.ID),
			TribeID: t.ID,
			Name:    fr.Name,
			Storage: tribe.NewResources(fr.Food, fr.Water),
		})
	}

	var persons []personRow
	if err := db.conn.SelectContext(ctx, &persons, db.conn.Rebind(
		`SELECT id, position, name, role, age, health, hunting_skill, gathering_skill,
		        family_id, family_position
		 FROM persons WHERE tribe_id = ? ORDER BY position`), int64(id)); err != nil {
		return nil, fmt.Errorf("load persons for tribe %d: %w", id, err)
	}

	members := make(map[tribe.FamilyID][]memberSlot)
	for _, pr := range persons {
		role, err := tribe.ParseRole(pr.Role)
		if err != nil {
			return nil, fmt.Errorf("person %d: %w", pr.ID, err)
		}
		p := &tribe.Person{
			ID:             tribe.PersonID(pr.ID),
			Name:           pr.Name,
			Role:           role,
			Age:            pr.Age,
			Health:         pr.Health,
			HuntingSkill:   pr.HuntingSkill,
			GatheringSkill: pr.GatheringSkill,
			TribeID:        t.ID,
		}
		if pr.FamilyID != nil {
			fid := tribe.FamilyID(*pr.FamilyID)
			p.FamilyID = &fid
			pos := 0
			if pr.FamilyPosition != nil {
				pos = *pr.FamilyPosition
			}
			members[fid] = append(members[fid], memberSlot{pid: p.ID, pos: pos})
		}
		t.Members = append(t.Members, p)
	}
	for _, f := range t.Families {
		slots := members[f.ID]
		sort.SliceStable(slots, func(i, j int) bool { return slots[i].pos < slots[j].pos })
		f.MemberIDs = make([]tribe.PersonID, len(slots))
		for i := range slots {
			f.MemberIDs[i] = slots[i].pid
		}
	}

	if err := t.CheckIntegrity(); err != nil {
		slog.Warn("loaded tribe fails integrity check", "tribe", id, "error", err)
	}
	return t, nil
}

// memberSlot is a family member with its stored position in the family.
type memberSlot struct {
	pid tribe.PersonID
	pos int
}

// DeleteTribe removes a tribe, its families, members and events.
func (db *DB) DeleteTribe(ctx context.Context, id tribe.TribeID) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM tribes WHERE id = ?"), int64(id))
	if err != nil {
		return fmt.Errorf("delete tribe %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("tribe %d: %w", id, tribe.ErrNotFound)
	}
	for _, table := range []string{"families", "persons", "events"} {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM "+table+" WHERE tribe_id = ?"), int64(id)); err != nil {
			return fmt.Errorf("delete %s for tribe %d: %w", table, id, err)
		}
	}
	return tx.Commit()
}

// TribeIDs lists stored tribe ids in ascending order.
func (db *DB) TribeIDs(ctx context.Context) ([]tribe.TribeID, error) {
	var raw []int64
	if err := db.conn.SelectContext(ctx, &raw, "SELECT id FROM tribes ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list tribes: %w", err)
	}
	ids := make([]tribe.TribeID, len(raw))
	for i, v := range raw {
		ids[i] = tribe.TribeID(v)
	}
	return ids, nil
}

// NextTribeID reserves the next tribe id. Ids are never reused, even after
// the tribe holding the highest one is deleted.
func (db *DB) NextTribeID(ctx context.Context) (tribe.TribeID, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next uint64 = 1
	var stored string
	err = tx.GetContext(ctx, &stored, tx.Rebind("SELECT value FROM sim_meta WHERE key = ?"), metaNextTribeID)
	switch {
	case err == nil:
		if next, err = strconv.ParseUint(stored, 10, 64); err != nil {
			return 0, fmt.Errorf("stored %s %q: %w", metaNextTribeID, stored, err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("read %s: %w", metaNextTribeID, err)
	}

	// Tribes saved without a reservation still push the counter forward.
	var highest sql.NullInt64
	if err := tx.GetContext(ctx, &highest, "SELECT MAX(id) FROM tribes"); err != nil {
		return 0, fmt.Errorf("max tribe id: %w", err)
	}
	if highest.Valid && uint64(highest.Int64) >= next {
		next = uint64(highest.Int64) + 1
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO sim_meta (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		metaNextTribeID, strconv.FormatUint(next+1, 10),
	)
	if err != nil {
		return 0, fmt.Errorf("save %s: %w", metaNextTribeID, err)
	}
	return tribe.TribeID(next), tx.Commit()
}

// SaveEvents appends tick events for a tribe.
func (db *DB) SaveEvents(ctx context.Context, events []EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			"INSERT INTO events (tribe_id, tick, description, category) VALUES (?, ?, ?, ?)"),
			int64(e.TribeID), int64(e.Tick), e.Description, e.Category,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return tx.Commit()
}

// RecentEvents returns up to limit of a tribe's newest events, newest first.
func (db *DB) RecentEvents(ctx context.Context, id tribe.TribeID, limit int) ([]EventRecord, error) {
	var events []EventRecord
	err := db.conn.SelectContext(ctx, &events, db.conn.Rebind(
		"SELECT tribe_id, tick, description, category FROM events WHERE tribe_id = ? ORDER BY id DESC LIMIT ?"),
		int64(id), limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`INSERT INTO sim_meta (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. Missing keys return sql.ErrNoRows.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, db.conn.Rebind("SELECT value FROM sim_meta WHERE key = ?"), key)
	return value, err
}
