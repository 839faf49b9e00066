package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"rhystmorgan/mira/internal/config"
	"rhystmorgan/mira/internal/models"
)

type ExportFormat int

const (
	FormatJSON ExportFormat = iota
	FormatCSV
)

// ListSeparator joins list values inside a CSV cell.
const ListSeparator = ";"

func (f ExportFormat) String() string {
	if f == FormatCSV {
		return "csv"
	}
	return "json"
}

func (f ExportFormat) Extension() string {
	return "." + f.String()
}

// ParseFormat reads a format name. An empty name falls back to the
// extension of path.
func ParseFormat(name, path string) (ExportFormat, error) {
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(name) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return FormatJSON, fmt.Errorf("unsupported format: %s", name)
	}
}

type ImportResult struct {
	TotalContacts    int
	ImportedContacts int
	SkippedContacts  int
	Errors           []ImportError
	Warnings         []string
}

type ImportError struct {
	LineNumber int
	Field      string
	Message    string
	Severity   ErrorSeverity
}

func (e ImportError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d: %s: %s", e.LineNumber, e.Field, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.LineNumber, e.Message)
}

type ErrorSeverity int

const (
	SeverityError ErrorSeverity = iota
	SeverityWarning
	SeverityInfo
)

type ContactExporter struct {
	format ExportFormat
}

type ContactImporter struct {
	format         ExportFormat
	skipDuplicates bool
}

func NewContactExporter(format ExportFormat) *ContactExporter {
	return &ContactExporter{format: format}
}

// NewContactImporter creates an importer. With skipDuplicates, contacts whose
// name matches an existing or earlier imported contact are left out.
func NewContactImporter(format ExportFormat, skipDuplicates bool) *ContactImporter {
	return &ContactImporter{format: format, skipDuplicates: skipDuplicates}
}

// CSVHeader is the column order of exported CSV files.
func CSVHeader() []string {
	header := []string{models.IDKey}
	for _, p := range models.SingleProperties() {
		header = append(header, p.Key)
	}
	for _, p := range models.MultiProperties() {
		header = append(header, p.Key)
	}
	return header
}

// Export writes contacts in the exporter's format. JSON output is a plain
// array, so it can be posted back to the data server as is.
func (e *ContactExporter) Export(w io.Writer, contacts []models.Fields) error {
	switch e.format {
	case FormatJSON:
		return e.exportJSON(w, contacts)
	case FormatCSV:
		return e.exportCSV(w, contacts)
	default:
		return fmt.Errorf("unsupported export format")
	}
}

// ExportFile writes contacts to path, creating its directory.
func (e *ContactExporter) ExportFile(path string, contacts []models.Fields) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := e.Export(file, contacts); err != nil {
		return err
	}
	return file.Close()
}

func (e *ContactExporter) exportJSON(w io.Writer, contacts []models.Fields) error {
	if contacts == nil {
		contacts = []models.Fields{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(contacts); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func (e *ContactExporter) exportCSV(w io.Writer, contacts []models.Fields) error {
	writer := csv.NewWriter(w)

	header := CSVHeader()
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, fields := range contacts {
		id, _ := fields[models.IDKey].(string)
		c := models.NewContact(id, fields)

		record := make([]string, 0, len(header))
		record = append(record, id)
		for _, key := range header[1:] {
			if models.IsMulti(key) {
				record = append(record, strings.Join(c.List(key), ListSeparator))
			} else {
				record = append(record, c.String(key))
			}
		}

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Import reads contacts for adding to a collection that already holds
// existing. Ids are dropped, since imported contacts get fresh ones.
func (i *ContactImporter) Import(r io.Reader, existing []models.Fields) (*ImportResult, []models.Fields, error) {
	var (
		rows []models.Fields
		err  error
	)
	result := &ImportResult{}

	switch i.format {
	case FormatJSON:
		rows, err = i.readJSON(r, result)
	case FormatCSV:
		rows, err = i.readCSV(r)
	default:
		return nil, nil, fmt.Errorf("unsupported import format")
	}
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(existing))
	for _, fields := range existing {
		if name := normalizedName(fields); name != "" {
			seen[name] = true
		}
	}

	valid := make([]models.Fields, 0, len(rows))
	for idx, row := range rows {
		if row == nil {
			continue
		}
		line := idx + 1
		if i.format == FormatCSV {
			line = idx + 2
		}

		c := models.NewContact("", row)
		fields := c.Serialize()
		delete(fields, models.IDKey)

		if isBlank(fields) {
			result.Errors = append(result.Errors, ImportError{
				LineNumber: line,
				Message:    "Contact has no values",
				Severity:   SeverityError,
			})
			continue
		}

		if name := normalizedName(fields); name != "" && seen[name] {
			if i.skipDuplicates {
				result.Warnings = append(result.Warnings, fmt.Sprintf("Line %d: skipped duplicate %q", line, c.Name()))
				continue
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("Line %d: %q already exists", line, c.Name()))
		} else if name != "" {
			seen[name] = true
		}

		valid = append(valid, fields)
	}

	result.TotalContacts = len(rows)
	result.ImportedContacts = len(valid)
	result.SkippedContacts = result.TotalContacts - result.ImportedContacts
	return result, valid, nil
}

// ImportFile opens path and imports it.
func (i *ContactImporter) ImportFile(path string, existing []models.Fields) (*ImportResult, []models.Fields, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return i.Import(file, existing)
}

func (i *ContactImporter) readJSON(r io.Reader, result *ImportResult) ([]models.Fields, error) {
	var raw []any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	rows := make([]models.Fields, len(raw))
	for idx, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			result.Errors = append(result.Errors, ImportError{
				LineNumber: idx + 1,
				Message:    "Contact must be an object",
				Severity:   SeverityError,
			})
			continue
		}
		rows[idx] = models.Fields(obj)
	}
	return rows, nil
}

func (i *ContactImporter) readCSV(r io.Reader) ([]models.Fields, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("empty CSV file")
	}

	header := records[0]
	rows := make([]models.Fields, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(models.Fields)
		for idx, col := range header {
			if idx >= len(record) {
				break
			}
			key := strings.ToLower(strings.TrimSpace(col))
			value := strings.TrimSpace(record[idx])
			if value == "" {
				continue
			}
			if models.IsMulti(key) {
				row[key] = splitList(value)
			} else {
				row[key] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ListSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizedName(fields models.Fields) string {
	name, _ := fields["name"].(string)
	name = strings.ToLower(strings.TrimSpace(name))
	if name == models.SentinelName {
		return ""
	}
	return name
}

func isBlank(fields models.Fields) bool {
	for _, v := range fields {
		switch t := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(t) != "" {
				return false
			}
		case []string:
			for _, item := range t {
				if strings.TrimSpace(item) != "" {
					return false
				}
			}
		default:
			return false
		}
	}
	return true
}

// GenerateBackupFilename generates a timestamped backup filename
func GenerateBackupFilename(format ExportFormat) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return fmt.Sprintf("contacts_backup_%s%s", timestamp, format.Extension())
}

// GetDefaultExportPath returns the directory exports go to when no path is
// given.
func GetDefaultExportPath() (string, error) {
	dir := config.DataDir()
	if dir == "" {
		return "", errors.New("could not determine data directory")
	}

	exportDir := filepath.Join(dir, "exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return "", err
	}
	return exportDir, nil
}
