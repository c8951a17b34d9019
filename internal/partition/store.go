package partition

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gofrs/flock"

	"blaulicht/internal/fileutil"
	"blaulicht/internal/logging"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
)

// Key identifies a partition by year.
type Key int

// Unlock releases a partition lock.
type Unlock func() error

// ErrLocked reports that another process holds the partition lock.
var ErrLocked = errors.New("partition locked")

// legacyCategoryColumn is the German header used by early exports.
const legacyCategoryColumn = "kategorie"

var utf8BOM = []byte("\ufeff")

// Store loads and saves yearly partitions.
type Store interface {
	Load(ctx context.Context, key Key) ([]report.Report, error)
	Save(ctx context.Context, key Key, rows []report.Report) error
	Exists(key Key) (bool, error)
	Keys() ([]Key, error)
	Lock(key Key) (Unlock, error)
}

// CSVStore keeps one CSV file per year in a directory.
type CSVStore struct {
	dir    string
	prefix string
	suffix string
	logger *slog.Logger
}

// NewCSVStore builds a store rooted at dir. pattern must contain exactly one
// %d verb which receives the year.
func NewCSVStore(dir, pattern string, logger *slog.Logger) (*CSVStore, error) {
	prefix, suffix, ok := strings.Cut(pattern, "%d")
	if !ok || strings.Contains(suffix, "%d") {
		return nil, services.Wrap(services.ErrConfiguration, "partition", "new store", fmt.Sprintf("file pattern %q needs exactly one %%d", pattern), nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CSVStore{
		dir:    dir,
		prefix: prefix,
		suffix: suffix,
		logger: logging.NewComponentLogger(logger, "partition"),
	}, nil
}

// Dir returns the partition directory.
func (s *CSVStore) Dir() string {
	return s.dir
}

// Path returns the CSV file for key.
func (s *CSVStore) Path(key Key) string {
	return filepath.Join(s.dir, s.prefix+strconv.Itoa(int(key))+s.suffix)
}

// Exists reports whether the partition file is present.
func (s *CSVStore) Exists(key Key) (bool, error) {
	info, err := os.Stat(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat partition %d: %w", key, err)
	}
	return !info.IsDir(), nil
}

// Keys lists the partitions present on disk, oldest first.
func (s *CSVStore) Keys() ([]Key, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	var keys []Key
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, s.prefix) || !strings.HasSuffix(name, s.suffix) {
			continue
		}
		middle := strings.TrimSuffix(strings.TrimPrefix(name, s.prefix), s.suffix)
		year, err := strconv.Atoi(middle)
		if err != nil || year <= 0 {
			continue
		}
		keys = append(keys, Key(year))
	}
	slices.Sort(keys)
	return keys, nil
}

// Load reads a partition, back-filling absent columns and canonicalizing
// unset markers. A missing file yields an error matching services.ErrNotFound.
// A leading byte order mark is dropped. Bytes that are not valid UTF-8 fail
// the load with services.ErrValidation instead of being replaced.
func (s *CSVStore) Load(ctx context.Context, key Key) ([]report.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(key)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "partition", "load", fmt.Sprintf("partition %d", key), err)
		}
		return nil, fmt.Errorf("open partition %d: %w", key, err)
	}
	defer file.Close()

	buffered := bufio.NewReader(file)
	if head, _ := buffered.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		if _, err := buffered.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("read partition %d: %w", key, err)
		}
	}
	rows, err := s.decode(key, buffered)
	if err != nil {
		return nil, fmt.Errorf("read partition %d: %w", key, err)
	}
	return rows, nil
}

func (s *CSVStore) decode(key Key, r io.Reader) ([]report.Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if err := checkUTF8(key, 0, header, header); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	if _, ok := index[report.ColumnCategory]; !ok {
		if i, legacy := index[legacyCategoryColumn]; legacy {
			index[report.ColumnCategory] = i
		}
	}
	var missing []string
	for _, column := range report.Columns {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		s.logger.Debug("back-filling absent columns",
			logging.Partition(int(key)),
			logging.Any("columns", missing),
		)
	}

	var rows []report.Report
	seen := make(map[string]int)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := checkUTF8(key, len(rows)+1, header, record); err != nil {
			return nil, err
		}
		row := report.FromColumns(func(column string) (string, bool) {
			i, ok := index[column]
			if !ok || i >= len(record) {
				return "", false
			}
			return record[i], true
		})
		row = Canonicalize(row)
		if row.Link != "" {
			if first, dup := seen[row.Link]; dup {
				logging.WarnWithContext(s.logger, "duplicate link in partition", "duplicate_link",
					logging.Partition(int(key)),
					logging.Link(row.Link),
					logging.Int("first_row", first),
					logging.Int("row", len(rows)),
					logging.String(logging.FieldErrorHint, "both rows are kept; remove the repost by hand if unwanted"),
					logging.String(logging.FieldImpact, "the later row is enriched separately"),
				)
			} else {
				seen[row.Link] = len(rows)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// checkUTF8 rejects a record holding invalid UTF-8. line counts data rows
// from 1; the header is line 0.
func checkUTF8(key Key, line int, header, record []string) error {
	for i, field := range record {
		if utf8.ValidString(field) {
			continue
		}
		column := strconv.Itoa(i + 1)
		if i < len(header) && utf8.ValidString(header[i]) {
			column = strings.TrimSpace(header[i])
		}
		where := fmt.Sprintf("row %d", line)
		if line == 0 {
			where = "header"
		}
		return services.Wrap(services.ErrValidation, "partition", "decode",
			fmt.Sprintf("partition %d %s column %s: invalid UTF-8 %q", key, where, column, field), nil)
	}
	return nil
}

// Canonicalize converts legacy unset markers to report.Unset.
func Canonicalize(row report.Report) report.Report {
	blankText := func(value string) string {
		if strings.TrimSpace(value) == "" {
			return report.Unset
		}
		return value
	}
	row.Date = blankText(row.Date)
	row.Title = blankText(row.Title)
	row.Link = blankText(row.Link)
	row.Location = blankText(row.Location)
	row.Description = blankText(row.Description)
	row.ENTitle = blankText(row.ENTitle)
	if report.IsBlankSentinel(row.Category) {
		row.Category = report.Unset
	}
	return row
}

// Save publishes the full partition atomically.
func (s *CSVStore) Save(ctx context.Context, key Key, rows []report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := fileutil.WriteAtomic(s.Path(key), 0o644, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(report.Columns); err != nil {
			return err
		}
		for _, row := range rows {
			if err := writer.Write(row.Record()); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
	if err != nil {
		return fmt.Errorf("save partition %d: %w", key, err)
	}
	s.logger.Debug("partition saved", logging.Partition(int(key)), logging.Int("rows", len(rows)))
	return nil
}

// Lock takes the advisory lock for key without blocking.
func (s *CSVStore) Lock(key Key) (Unlock, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create partition directory: %w", err)
	}
	lock := flock.New(s.Path(key) + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire partition %d lock: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: partition %d is being processed by another blaulicht instance", ErrLocked, key)
	}
	return lock.Unlock, nil
}
