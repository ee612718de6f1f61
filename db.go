package morgul

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bodgit/morgul/calibration"
	"github.com/bodgit/morgul/geometry"
	"github.com/bodgit/morgul/output"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a named pedestal is not stored
var ErrNotFound = errors.New("morgul: pedestal not found")

// DB stores pedestals and a catalog of the frames written with them
type DB struct {
	db *sql.DB
}

// NewDB opens or creates the database in file
func NewDB(file string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	// Workers record frames concurrently, sqlite only has one writer
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS pedestal (id INTEGER PRIMARY KEY NOT NULL, name TEXT NOT NULL UNIQUE, created INTEGER NOT NULL, frames INTEGER NOT NULL, masked INTEGER NOT NULL, data BLOB NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS frame (id INTEGER PRIMARY KEY NOT NULL, pedestal_id INTEGER, idx INTEGER NOT NULL, path TEXT NOT NULL UNIQUE, crc TEXT NOT NULL, FOREIGN KEY(pedestal_id) REFERENCES pedestal(id))"); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{
		db: db,
	}, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.db.Close()
}

// SavePedestal stores p under name, replacing any pedestal already stored
// with that name, and returns its id
func (db *DB) SavePedestal(name string, p *calibration.Pedestals) (int64, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	created := time.Now().Unix()

	var id int64
	switch err := db.db.QueryRow("SELECT id FROM pedestal WHERE name = ?", name).Scan(&id); err {
	case sql.ErrNoRows:
		result, err := db.db.Exec("INSERT INTO pedestal (name, created, frames, masked, data) VALUES (?, ?, ?, ?, ?)", name, created, p.Frames, p.Masked(), b)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	case nil:
		if _, err := db.db.Exec("UPDATE pedestal SET created = ?, frames = ?, masked = ?, data = ? WHERE id = ?", created, p.Frames, p.Masked(), b, id); err != nil {
			return 0, err
		}
		return id, nil
	default:
		return 0, err
	}
}

// LoadPedestal returns the id and contents of the pedestal stored under name
func (db *DB) LoadPedestal(name string) (int64, *calibration.Pedestals, error) {
	var id int64
	var b []byte
	switch err := db.db.QueryRow("SELECT id, data FROM pedestal WHERE name = ?", name).Scan(&id, &b); err {
	case sql.ErrNoRows:
		return 0, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case nil:
		p := new(calibration.Pedestals)
		if err := p.UnmarshalBinary(b); err != nil {
			return 0, nil, err
		}
		return id, p, nil
	default:
		return 0, nil, err
	}
}

// PedestalInfo describes a stored pedestal
type PedestalInfo struct {
	ID      int64
	Name    string
	Created time.Time
	Frames  int
	Masked  int
	Written int
}

// Pedestals lists the stored pedestals ordered by name
func (db *DB) Pedestals() ([]PedestalInfo, error) {
	rows, err := db.db.Query("SELECT p.id, p.name, p.created, p.frames, p.masked, COUNT(f.id) FROM pedestal AS p LEFT JOIN frame AS f ON f.pedestal_id = p.id GROUP BY p.id ORDER BY p.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []PedestalInfo
	for rows.Next() {
		var info PedestalInfo
		var created int64
		if err := rows.Scan(&info.ID, &info.Name, &created, &info.Frames, &info.Masked, &info.Written); err != nil {
			return nil, err
		}
		info.Created = time.Unix(created, 0)
		list = append(list, info)
	}

	return list, rows.Err()
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// RecordFrame records that frame index was written to path. A pedestal id of
// zero records a frame corrected with a pedestal that was never stored.
func (db *DB) RecordFrame(pedestal int64, index int, path, crc string) error {
	if _, err := db.db.Exec("INSERT OR REPLACE INTO frame (pedestal_id, idx, path, crc) VALUES (?, ?, ?, ?)", nullID(pedestal), index, path, crc); err != nil {
		return err
	}
	return nil
}

// FrameRecord is a cataloged output frame
type FrameRecord struct {
	Index int
	Path  string
	CRC   string
}

// Frames returns the frames recorded against a pedestal ordered by index
func (db *DB) Frames(pedestal int64) ([]FrameRecord, error) {
	query := "SELECT idx, path, crc FROM frame WHERE pedestal_id = ? ORDER BY idx"
	args := []interface{}{pedestal}
	if pedestal == 0 {
		query = "SELECT idx, path, crc FROM frame WHERE pedestal_id IS NULL ORDER BY idx"
		args = nil
	}

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []FrameRecord
	for rows.Next() {
		var r FrameRecord
		if err := rows.Scan(&r.Index, &r.Path, &r.CRC); err != nil {
			return nil, err
		}
		list = append(list, r)
	}

	return list, rows.Err()
}

// Verify checks every frame recorded against a pedestal is still on disk with
// the same contents and returns the paths of those that are not
func (db *DB) Verify(pedestal int64) ([]string, error) {
	frames, err := db.Frames(pedestal)
	if err != nil {
		return nil, err
	}

	var bad []string
	for _, r := range frames {
		crc, err := crcFile(r.Path)
		if err != nil {
			if os.IsNotExist(err) {
				bad = append(bad, r.Path)
				continue
			}
			return nil, err
		}
		if crc != r.CRC {
			bad = append(bad, r.Path)
		}
	}

	return bad, nil
}

type catalog struct {
	db       *DB
	w        output.Writer
	pedestal int64
}

// Catalog returns a Writer that writes with w and records each written frame
// against the pedestal
func (db *DB) Catalog(w output.Writer, pedestal int64) output.Writer {
	return &catalog{
		db:       db,
		w:        w,
		pedestal: pedestal,
	}
}

func (c *catalog) Write(index int, m *geometry.Image) (string, error) {
	file, err := c.w.Write(index, m)
	if err != nil {
		return "", err
	}

	crc, err := crcFile(file)
	if err != nil {
		return "", err
	}

	if err := c.db.RecordFrame(c.pedestal, index, file, crc); err != nil {
		return "", err
	}

	return file, nil
}
