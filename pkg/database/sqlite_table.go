package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/measures"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// SQLiteConfig configures a dataset stored in a SQLite file.
type SQLiteConfig struct {
	// Path to the SQLite database file
	Path string

	// CacheSize is the page cache size in KB
	CacheSize int

	// JournalMode sets the journal mode (WAL, DELETE, TRUNCATE, ...)
	JournalMode string

	// Synchronous sets the synchronous flag (OFF, NORMAL, FULL, EXTRA)
	Synchronous string

	// BusyTimeout is the lock timeout in milliseconds
	BusyTimeout int

	// ReadOnly rejects PutData and PutFlag
	ReadOnly bool
}

// DefaultSQLiteConfig returns default configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:        "visdata.db",
		CacheSize:   2000,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		BusyTimeout: 5000,
	}
}

func (c *SQLiteConfig) applyDefaults() {
	def := DefaultSQLiteConfig()
	if c.Path == "" {
		c.Path = def.Path
	}
	if c.CacheSize <= 0 {
		c.CacheSize = def.CacheSize
	}
	if c.JournalMode == "" {
		c.JournalMode = def.JournalMode
	}
	if c.Synchronous == "" {
		c.Synchronous = def.Synchronous
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = def.BusyTimeout
	}
}

func (c SQLiteConfig) dsn() string {
	return fmt.Sprintf("%s?_pragma=cache_size(-%d)&_pragma=journal_mode(%s)&_pragma=synchronous(%s)&_pragma=busy_timeout(%d)",
		c.Path, c.CacheSize, c.JournalMode, c.Synchronous, c.BusyTimeout)
}

// mainColumns lists the scalar columns of the main table in select order.
const mainColumns = `row_id, "TIME", "INTERVAL", "ANTENNA1", "ANTENNA2", "FEED1", "FEED2", "DATA_DESC_ID",
	"FIELD_ID", "SCAN_NUMBER", "U", "V", "W", "NCHAN", "NPOL", "FLAG_ROW", "FLAG", "SIGMA", "SIGMA_SPECTRUM"`

// SQLiteTable is a Table stored in SQLite. Subtables are read once when
// the table is opened; main table rows are fetched on demand.
type SQLiteTable struct {
	db        *sql.DB
	config    SQLiteConfig
	name      string
	numRows   int
	columns   map[string]bool
	subtables *Subtables
	mu        sync.RWMutex
	closed    bool

	selectRow  *sql.Stmt
	selectData *sql.Stmt
	updateFlag *sql.Stmt
	updateData *sql.Stmt
}

// OpenSQLiteTable opens an existing dataset.
func OpenSQLiteTable(config SQLiteConfig) (*SQLiteTable, error) {
	config.applyDefaults()
	if _, err := os.Stat(config.Path); err != nil {
		return nil, errs.IO(err, "cannot open dataset %s", config.Path)
	}
	t, err := openSQLite(config)
	if err != nil {
		return nil, err
	}
	if err := t.load(); err != nil {
		t.Close()
		return nil, err
	}
	if t.numRows == 0 {
		t.Close()
		return nil, errs.IO(nil, "dataset %s is empty", config.Path)
	}
	return t, nil
}

// CreateSQLiteTable writes src into a new SQLite file and opens it.
func CreateSQLiteTable(config SQLiteConfig, src Table) (*SQLiteTable, error) {
	config.applyDefaults()
	if _, err := os.Stat(config.Path); err == nil {
		return nil, errs.IO(nil, "dataset %s already exists", config.Path)
	}
	t, err := openSQLite(config)
	if err != nil {
		return nil, err
	}
	if err := t.importTable(src); err != nil {
		t.Close()
		return nil, err
	}
	if err := t.load(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func openSQLite(config SQLiteConfig) (*SQLiteTable, error) {
	db, err := sql.Open("sqlite", config.dsn())
	if err != nil {
		return nil, errs.IO(err, "failed to open SQLite database")
	}
	// statements are short-lived, a single connection keeps writes ordered
	db.SetMaxOpenConns(1)

	t := &SQLiteTable{db: db, config: config, columns: make(map[string]bool)}
	if err := t.initSchema(); err != nil {
		db.Close()
		return nil, errs.IO(err, "failed to initialize schema")
	}
	if err := t.prepareStatements(); err != nil {
		db.Close()
		return nil, errs.IO(err, "failed to prepare statements")
	}
	return t, nil
}

func (t *SQLiteTable) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS dataset_info (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS main (
			row_id INTEGER PRIMARY KEY,
			"TIME" REAL NOT NULL,
			"INTERVAL" REAL NOT NULL DEFAULT 0,
			"ANTENNA1" INTEGER NOT NULL,
			"ANTENNA2" INTEGER NOT NULL,
			"FEED1" INTEGER NOT NULL,
			"FEED2" INTEGER NOT NULL,
			"DATA_DESC_ID" INTEGER NOT NULL,
			"FIELD_ID" INTEGER NOT NULL DEFAULT 0,
			"SCAN_NUMBER" INTEGER NOT NULL DEFAULT 0,
			"U" REAL NOT NULL,
			"V" REAL NOT NULL,
			"W" REAL NOT NULL,
			"NCHAN" INTEGER NOT NULL,
			"NPOL" INTEGER NOT NULL,
			"FLAG_ROW" INTEGER NOT NULL DEFAULT 0,
			"FLAG" BLOB,
			"SIGMA" BLOB,
			"SIGMA_SPECTRUM" BLOB
		);

		-- one blob per visibility column and row
		CREATE TABLE IF NOT EXISTS main_data (
			row_id INTEGER NOT NULL,
			column_name TEXT NOT NULL,
			value BLOB NOT NULL,
			PRIMARY KEY (row_id, column_name)
		);

		CREATE TABLE IF NOT EXISTS main_columns (
			name TEXT PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS antenna (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			mount TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS feed (
			id INTEGER PRIMARY KEY,
			antenna_id INTEGER NOT NULL,
			feed_id INTEGER NOT NULL,
			spw_id INTEGER NOT NULL,
			time REAL NOT NULL,
			interval REAL NOT NULL,
			beam_offsets BLOB NOT NULL,
			receptor_angles BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS field (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			time REAL NOT NULL,
			lon REAL NOT NULL,
			lat REAL NOT NULL,
			frame TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS spectral_window (
			id INTEGER PRIMARY KEY,
			frame TEXT NOT NULL,
			frequencies BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS polarization (
			id INTEGER PRIMARY KEY,
			corr_types TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS data_description (
			id INTEGER PRIMARY KEY,
			spw_id INTEGER NOT NULL,
			pol_id INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_main_time ON main("TIME");
	`
	_, err := t.db.Exec(schema)
	return err
}

func (t *SQLiteTable) prepareStatements() error {
	var err error
	t.selectRow, err = t.db.Prepare(`SELECT ` + mainColumns + ` FROM main WHERE row_id = ?`)
	if err != nil {
		return err
	}
	t.selectData, err = t.db.Prepare(`SELECT column_name, value FROM main_data WHERE row_id = ?`)
	if err != nil {
		return err
	}
	t.updateFlag, err = t.db.Prepare(`UPDATE main SET "FLAG" = ? WHERE row_id = ?`)
	if err != nil {
		return err
	}
	t.updateData, err = t.db.Prepare(`UPDATE main_data SET value = ? WHERE row_id = ? AND column_name = ?`)
	return err
}

func (t *SQLiteTable) importTable(src Table) error {
	tx, err := t.db.Begin()
	if err != nil {
		return errs.IO(err, "begin import")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO dataset_info (key, value) VALUES ('name', ?)`, src.Name()); err != nil {
		return errs.IO(err, "write dataset info")
	}
	sub := src.Subtables()
	if _, err := tx.Exec(`INSERT INTO dataset_info (key, value) VALUES ('frequency_unit', ?)`, string(sub.FrequencyUnit)); err != nil {
		return errs.IO(err, "write dataset info")
	}
	if err := writeSubtables(tx, sub); err != nil {
		return err
	}

	for _, c := range []string{ColFieldID, ColFlag, ColFlagRow, ColSigma, ColSigmaSpectrum, ColScanNumber, ColInterval} {
		if src.HasColumn(c) {
			if _, err := tx.Exec(`INSERT INTO main_columns (name) VALUES (?)`, c); err != nil {
				return errs.IO(err, "write column list")
			}
		}
	}

	insertRow, err := tx.Prepare(`INSERT INTO main (` + mainColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errs.IO(err, "prepare row insert")
	}
	defer insertRow.Close()
	insertData, err := tx.Prepare(`INSERT INTO main_data (row_id, column_name, value) VALUES (?, ?, ?)`)
	if err != nil {
		return errs.IO(err, "prepare data insert")
	}
	defer insertData.Close()

	dataColumns := make(map[string]bool)
	it, err := src.Iterate()
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		r := it.Row()
		flagRow := 0
		if r.FlagRow {
			flagRow = 1
		}
		if _, err := insertRow.Exec(it.Index(), r.Time, r.Interval, r.Antenna1, r.Antenna2, r.Feed1, r.Feed2,
			r.DataDescID, r.FieldID, r.ScanID, r.UVW[0], r.UVW[1], r.UVW[2], r.NChan, r.NPol, flagRow,
			EncodeBool(r.Flag), EncodeFloat32(r.Sigma), EncodeFloat32(r.SigmaSpectrum)); err != nil {
			return errs.IO(err, "insert row").WithRow(it.Index())
		}
		for name, values := range r.Data {
			if _, err := insertData.Exec(it.Index(), name, EncodeComplex(values)); err != nil {
				return errs.IO(err, "insert %s", name).WithRow(it.Index())
			}
			dataColumns[name] = true
		}
	}
	if err := it.Error(); err != nil {
		return err
	}
	for name := range dataColumns {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO main_columns (name) VALUES (?)`, name); err != nil {
			return errs.IO(err, "write column list")
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.IO(err, "commit import")
	}
	return nil
}

func writeSubtables(tx *sql.Tx, sub *Subtables) error {
	for i, a := range sub.Antennas {
		if _, err := tx.Exec(`INSERT INTO antenna (id, name, x, y, z, mount) VALUES (?, ?, ?, ?, ?, ?)`,
			i, a.Name, a.Position.X, a.Position.Y, a.Position.Z, string(a.Mount)); err != nil {
			return errs.IO(err, "insert antenna %d", i)
		}
	}
	for i, f := range sub.Feeds {
		offsets := make([]float64, 0, 2*len(f.BeamOffsets))
		for _, o := range f.BeamOffsets {
			offsets = append(offsets, o[0], o[1])
		}
		if _, err := tx.Exec(`INSERT INTO feed (id, antenna_id, feed_id, spw_id, time, interval, beam_offsets, receptor_angles) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i, f.AntennaID, f.FeedID, f.SpWindowID, f.Time, f.Interval, EncodeFloat64(offsets), EncodeFloat64(f.ReceptorAngles)); err != nil {
			return errs.IO(err, "insert feed %d", i)
		}
	}
	for i, f := range sub.Fields {
		if _, err := tx.Exec(`INSERT INTO field (id, name, time, lon, lat, frame) VALUES (?, ?, ?, ?, ?, ?)`,
			i, f.Name, f.Time, f.ReferenceDir.Lon, f.ReferenceDir.Lat, f.ReferenceDir.Frame.String()); err != nil {
			return errs.IO(err, "insert field %d", i)
		}
	}
	for i, sw := range sub.SpWindows {
		if _, err := tx.Exec(`INSERT INTO spectral_window (id, frame, frequencies) VALUES (?, ?, ?)`,
			i, sw.Frame.String(), EncodeFloat64(sw.Frequencies)); err != nil {
			return errs.IO(err, "insert spectral window %d", i)
		}
	}
	for i, p := range sub.Polarizations {
		if _, err := tx.Exec(`INSERT INTO polarization (id, corr_types) VALUES (?, ?)`,
			i, measures.FormatStokesList(p.Types)); err != nil {
			return errs.IO(err, "insert polarisation %d", i)
		}
	}
	for i, dd := range sub.DataDescs {
		if _, err := tx.Exec(`INSERT INTO data_description (id, spw_id, pol_id) VALUES (?, ?, ?)`,
			i, dd.SpWindowID, dd.PolarizationID); err != nil {
			return errs.IO(err, "insert data description %d", i)
		}
	}
	return nil
}

// load reads the dataset info, column list and subtables.
func (t *SQLiteTable) load() error {
	var name string
	err := t.db.QueryRow(`SELECT value FROM dataset_info WHERE key = 'name'`).Scan(&name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errs.IO(err, "read dataset info")
	}
	t.name = name
	if t.name == "" {
		t.name = t.config.Path
	}

	if err := t.db.QueryRow(`SELECT COUNT(*) FROM main`).Scan(&t.numRows); err != nil {
		return errs.IO(err, "count rows")
	}

	for _, c := range RequiredColumns {
		t.columns[c] = true
	}
	rows, err := t.db.Query(`SELECT name FROM main_columns`)
	if err != nil {
		return errs.IO(err, "read column list")
	}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return errs.IO(err, "read column list")
		}
		t.columns[c] = true
	}
	rows.Close()

	sub, err := t.readSubtables()
	if err != nil {
		return err
	}
	t.subtables = sub
	return nil
}

func (t *SQLiteTable) readSubtables() (*Subtables, error) {
	sub := &Subtables{FrequencyUnit: measures.Hz}
	var unit string
	if err := t.db.QueryRow(`SELECT value FROM dataset_info WHERE key = 'frequency_unit'`).Scan(&unit); err == nil && unit != "" {
		u, err := measures.ParseFrequencyUnit(unit)
		if err != nil {
			return nil, err
		}
		sub.FrequencyUnit = u
	}

	if err := queryEach(t.db, `SELECT name, x, y, z, mount FROM antenna ORDER BY id`, func(rows *sql.Rows) error {
		var a AntennaRecord
		var mount string
		if err := rows.Scan(&a.Name, &a.Position.X, &a.Position.Y, &a.Position.Z, &mount); err != nil {
			return err
		}
		a.Mount = measures.Mount(mount)
		sub.Antennas = append(sub.Antennas, a)
		return nil
	}); err != nil {
		return nil, errs.IO(err, "read ANTENNA subtable")
	}

	if err := queryEach(t.db, `SELECT antenna_id, feed_id, spw_id, time, interval, beam_offsets, receptor_angles FROM feed ORDER BY id`, func(rows *sql.Rows) error {
		var f FeedRecord
		var offsets, angles []byte
		if err := rows.Scan(&f.AntennaID, &f.FeedID, &f.SpWindowID, &f.Time, &f.Interval, &offsets, &angles); err != nil {
			return err
		}
		flat, err := DecodeFloat64(offsets)
		if err != nil {
			return err
		}
		for i := 0; i+1 < len(flat); i += 2 {
			f.BeamOffsets = append(f.BeamOffsets, [2]float64{flat[i], flat[i+1]})
		}
		if f.ReceptorAngles, err = DecodeFloat64(angles); err != nil {
			return err
		}
		sub.Feeds = append(sub.Feeds, f)
		return nil
	}); err != nil {
		return nil, errs.IO(err, "read FEED subtable")
	}

	if err := queryEach(t.db, `SELECT name, time, lon, lat, frame FROM field ORDER BY id`, func(rows *sql.Rows) error {
		var f FieldRecord
		var frame string
		if err := rows.Scan(&f.Name, &f.Time, &f.ReferenceDir.Lon, &f.ReferenceDir.Lat, &frame); err != nil {
			return err
		}
		df, err := measures.ParseDirectionFrame(frame)
		if err != nil {
			return err
		}
		f.ReferenceDir.Frame = df
		sub.Fields = append(sub.Fields, f)
		return nil
	}); err != nil {
		return nil, errs.IO(err, "read FIELD subtable")
	}

	if err := queryEach(t.db, `SELECT frame, frequencies FROM spectral_window ORDER BY id`, func(rows *sql.Rows) error {
		var sw SpWindowRecord
		var frame string
		var freqs []byte
		if err := rows.Scan(&frame, &freqs); err != nil {
			return err
		}
		ff, err := measures.ParseFrequencyFrame(frame)
		if err != nil {
			return err
		}
		sw.Frame = ff
		if sw.Frequencies, err = DecodeFloat64(freqs); err != nil {
			return err
		}
		sub.SpWindows = append(sub.SpWindows, sw)
		return nil
	}); err != nil {
		return nil, errs.IO(err, "read SPECTRAL_WINDOW subtable")
	}

	if err := queryEach(t.db, `SELECT corr_types FROM polarization ORDER BY id`, func(rows *sql.Rows) error {
		var types string
		if err := rows.Scan(&types); err != nil {
			return err
		}
		list, err := measures.ParseStokesList(types)
		if err != nil {
			return err
		}
		sub.Polarizations = append(sub.Polarizations, PolarizationRecord{Types: list})
		return nil
	}); err != nil {
		return nil, errs.IO(err, "read POLARIZATION subtable")
	}

	if err := queryEach(t.db, `SELECT spw_id, pol_id FROM data_description ORDER BY id`, func(rows *sql.Rows) error {
		var dd DataDescRecord
		if err := rows.Scan(&dd.SpWindowID, &dd.PolarizationID); err != nil {
			return err
		}
		sub.DataDescs = append(sub.DataDescs, dd)
		return nil
	}); err != nil {
		return nil, errs.IO(err, "read DATA_DESCRIPTION subtable")
	}
	return sub, nil
}

func queryEach(db *sql.DB, query string, fn func(*sql.Rows) error) error {
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (t *SQLiteTable) Name() string {
	return t.name
}

func (t *SQLiteTable) NumRows() int {
	return t.numRows
}

func (t *SQLiteTable) HasColumn(name string) bool {
	return t.columns[name]
}

func (t *SQLiteTable) Subtables() *Subtables {
	return t.subtables
}

func (t *SQLiteTable) Writable() bool {
	return !t.config.ReadOnly
}

// Row reads and decodes one row.
func (t *SQLiteTable) Row(i int) (*Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, errs.IO(nil, "dataset %s is closed", t.name)
	}

	r := &Row{}
	var rowID, flagRow int
	var flag, sigma, sigmaSpectrum []byte
	err := t.selectRow.QueryRow(i).Scan(&rowID, &r.Time, &r.Interval, &r.Antenna1, &r.Antenna2, &r.Feed1, &r.Feed2,
		&r.DataDescID, &r.FieldID, &r.ScanID, &r.UVW[0], &r.UVW[1], &r.UVW[2], &r.NChan, &r.NPol, &flagRow,
		&flag, &sigma, &sigmaSpectrum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, t.numRows)
	}
	if err != nil {
		return nil, errs.IO(err, "read row").WithRow(i)
	}
	r.FlagRow = flagRow != 0
	r.Flag = DecodeBool(flag)
	if r.Sigma, err = DecodeFloat32(sigma); err != nil {
		return nil, errs.IO(err, "decode SIGMA").WithRow(i)
	}
	if r.SigmaSpectrum, err = DecodeFloat32(sigmaSpectrum); err != nil {
		return nil, errs.IO(err, "decode SIGMA_SPECTRUM").WithRow(i)
	}

	rows, err := t.selectData.Query(i)
	if err != nil {
		return nil, errs.IO(err, "read visibilities").WithRow(i)
	}
	defer rows.Close()
	r.Data = make(map[string][]complex64)
	for rows.Next() {
		var name string
		var blob []byte
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, errs.IO(err, "read visibilities").WithRow(i)
		}
		values, err := DecodeComplex(blob)
		if err != nil {
			return nil, errs.IO(err, "decode %s", name).WithRow(i)
		}
		r.Data[name] = values
	}
	if err := rows.Err(); err != nil {
		return nil, errs.IO(err, "read visibilities").WithRow(i)
	}
	return r, nil
}

func (t *SQLiteTable) Iterate() (RowIterator, error) {
	return t.IterateWhere("", nil)
}

// IterateWhere iterates over the rows matching a WHERE clause over the
// main table columns (U, V and W name the uvw components). Matching row
// ids are collected up front; rows are decoded as the iterator advances.
func (t *SQLiteTable) IterateWhere(clause string, args []interface{}) (RowIterator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, errs.IO(nil, "dataset %s is closed", t.name)
	}

	query := `SELECT row_id FROM main`
	if strings.TrimSpace(clause) != "" {
		query += ` WHERE ` + clause
	}
	query += ` ORDER BY row_id`

	rows, err := t.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("push-down query failed: %w", err)
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errs.IO(err, "scan row id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.IO(err, "scan row ids")
	}
	return &sqliteIterator{table: t, ids: ids, pos: -1}, nil
}

func (t *SQLiteTable) PutData(row int, column string, startChan int, values []complex64) error {
	if t.config.ReadOnly {
		return errs.IO(nil, "dataset %s is not writable", t.name)
	}
	r, err := t.Row(row)
	if err != nil {
		return err
	}
	current, ok := r.Data[column]
	if !ok {
		return errs.IO(nil, "column %s does not exist", column).WithRow(row)
	}
	if err := checkWindow(r, row, startChan, len(values)); err != nil {
		return err
	}
	copy(current[startChan*r.NPol:], values)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.updateData.Exec(EncodeComplex(current), row, column); err != nil {
		return errs.IO(err, "write %s", column).WithRow(row)
	}
	return nil
}

func (t *SQLiteTable) PutFlag(row int, startChan int, values []bool) error {
	if t.config.ReadOnly {
		return errs.IO(nil, "dataset %s is not writable", t.name)
	}
	r, err := t.Row(row)
	if err != nil {
		return err
	}
	if err := checkWindow(r, row, startChan, len(values)); err != nil {
		return err
	}
	if r.Flag == nil {
		r.Flag = make([]bool, r.NChan*r.NPol)
	}
	copy(r.Flag[startChan*r.NPol:], values)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.updateFlag.Exec(EncodeBool(r.Flag), row); err != nil {
		return errs.IO(err, "write FLAG").WithRow(row)
	}
	if !t.columns[ColFlag] {
		if _, err := t.db.Exec(`INSERT OR IGNORE INTO main_columns (name) VALUES (?)`, ColFlag); err != nil {
			return errs.IO(err, "write column list")
		}
		t.columns[ColFlag] = true
	}
	return nil
}

func checkWindow(r *Row, row, startChan, n int) error {
	if n%r.NPol != 0 {
		return errs.ShapeMismatch("slice of %d elements is not a whole number of channels of %d polarisations", n, r.NPol).WithRow(row)
	}
	if startChan < 0 || startChan+n/r.NPol > r.NChan {
		return errs.ShapeMismatch("channel window [%d,%d) exceeds %d channels", startChan, startChan+n/r.NPol, r.NChan).WithRow(row)
	}
	return nil
}

// Close releases the database handle.
func (t *SQLiteTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for _, stmt := range []*sql.Stmt{t.selectRow, t.selectData, t.updateFlag, t.updateData} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return t.db.Close()
}

type sqliteIterator struct {
	table   *SQLiteTable
	ids     []int
	pos     int
	current *Row
	err     error
}

func (it *sqliteIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.pos++
	if it.pos >= len(it.ids) {
		return false
	}
	it.current, it.err = it.table.Row(it.ids[it.pos])
	return it.err == nil
}

func (it *sqliteIterator) Row() *Row {
	return it.current
}

func (it *sqliteIterator) Index() int {
	return it.ids[it.pos]
}

func (it *sqliteIterator) Error() error {
	return it.err
}

func (it *sqliteIterator) Close() error {
	return nil
}
