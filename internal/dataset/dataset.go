// Package dataset loads the categorical CSV table and encodes every column to integers.
package dataset

import (
	"crypto/sha256"
	_ "embed"
	"encoding/binary"
	"encoding/csv"
	"encoding/hex"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/binclass/pkg/errors"
	"github.com/YuminosukeSato/binclass/preprocessing"
)

// Description is the markdown shown next to the raw data view.
//
//go:embed description.md
var Description string

// Title is the heading of the raw data view.
const Title = "Mushrooms DataSet (Classification)"

// Dataset is a fully integer-encoded table. It is immutable after Load.
type Dataset struct {
	path        string
	columns     []string
	labelColumn string
	labelIndex  int

	encoders []*preprocessing.LabelEncoder
	classes  [][]string // encoders[j].Classes()
	codes    [][]int    // row-major, one entry per column

	features    *mat.Dense
	labels      []float64
	fingerprint string
}

// Load reads the CSV at path (gzip-compressed when it ends in .gz) and encodes
// each column with its own LabelEncoder. Any problem with the file is reported
// as a DataUnavailableError.
func Load(path, labelColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataUnavailableError(path, "cannot open file", err)
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.NewDataUnavailableError(path, "invalid gzip stream", err)
		}
		defer zr.Close() //nolint:errcheck
		r = zr
	}
	return Read(r, path, labelColumn)
}

// Read is Load for an already opened stream; name is used in error messages.
func Read(r io.Reader, name, labelColumn string) (*Dataset, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewDataUnavailableError(name, "malformed csv", err)
	}
	if len(records) == 0 {
		return nil, errors.NewDataUnavailableError(name, "file is empty (no header row)", nil)
	}
	if len(records) == 1 {
		return nil, errors.NewDataUnavailableError(name, "no data rows", nil)
	}

	header := records[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if h == "" {
			return nil, errors.NewDataUnavailableError(name, "empty column name", nil)
		}
		if seen[h] {
			return nil, errors.NewDataUnavailableError(name, "duplicate column "+h, nil)
		}
		seen[h] = true
	}
	labelIndex := slices.Index(header, labelColumn)
	if labelIndex < 0 {
		return nil, errors.NewDataUnavailableError(name, "missing label column "+labelColumn, nil)
	}
	if len(header) < 2 {
		return nil, errors.NewDataUnavailableError(name, "no feature columns", nil)
	}

	rows := records[1:]
	nRows, nCols := len(rows), len(header)
	column := make([]string, nRows)
	codes := make([][]int, nRows)
	for i := range codes {
		codes[i] = make([]int, nCols)
	}
	encoders := make([]*preprocessing.LabelEncoder, nCols)
	classes := make([][]string, nCols)
	for j := 0; j < nCols; j++ {
		for i, rec := range rows {
			if rec[j] == "" {
				return nil, errors.NewDataUnavailableError(name,
					"empty cell in row "+strconv.Itoa(i+2)+", column "+header[j], nil)
			}
			column[i] = rec[j]
		}
		le := preprocessing.NewLabelEncoder()
		encoded, err := le.FitTransform(column)
		if err != nil {
			return nil, errors.NewDataUnavailableError(name, "cannot encode column "+header[j], err)
		}
		for i, c := range encoded {
			codes[i][j] = c
		}
		encoders[j] = le
		classes[j] = le.Classes()
	}

	ds := &Dataset{
		path:        name,
		columns:     slices.Clone(header),
		labelColumn: labelColumn,
		labelIndex:  labelIndex,
		encoders:    encoders,
		classes:     classes,
		codes:       codes,
	}
	ds.features, ds.labels = ds.matrix()
	ds.fingerprint = ds.hash()
	return ds, nil
}

// matrix は符号化済みの表を特徴量行列とラベルに分ける
func (d *Dataset) matrix() (*mat.Dense, []float64) {
	nRows, nFeatures := len(d.codes), len(d.columns)-1
	features := mat.NewDense(nRows, nFeatures, nil)
	labels := make([]float64, nRows)
	for i, row := range d.codes {
		k := 0
		for j, c := range row {
			if j == d.labelIndex {
				labels[i] = float64(c)
				continue
			}
			features.Set(i, k, float64(c))
			k++
		}
	}
	return features, labels
}

// hash は列名と符号の SHA-256
func (d *Dataset) hash() string {
	h := sha256.New()
	for _, c := range d.columns {
		h.Write([]byte(c)) //nolint:errcheck
		h.Write([]byte{0}) //nolint:errcheck
	}
	var buf [8]byte
	for _, row := range d.codes {
		for _, c := range row {
			binary.LittleEndian.PutUint64(buf[:], uint64(c))
			h.Write(buf[:]) //nolint:errcheck
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Path returns the file the dataset was read from
func (d *Dataset) Path() string { return d.path }

// Columns returns all column names in file order, label included
func (d *Dataset) Columns() []string { return slices.Clone(d.columns) }

// LabelColumn returns the name of the label column
func (d *Dataset) LabelColumn() string { return d.labelColumn }

// FeatureNames returns the feature column names in matrix column order
func (d *Dataset) FeatureNames() []string {
	names := make([]string, 0, len(d.columns)-1)
	for j, c := range d.columns {
		if j != d.labelIndex {
			names = append(names, c)
		}
	}
	return names
}

// NRows returns the number of data rows
func (d *Dataset) NRows() int { return len(d.codes) }

// NFeatures returns the number of feature columns
func (d *Dataset) NFeatures() int { return len(d.columns) - 1 }

// Features returns the encoded feature matrix (n_rows × n_features). It must not be modified.
func (d *Dataset) Features() mat.Matrix { return d.features }

// Labels returns a copy of the encoded label column
func (d *Dataset) Labels() []float64 { return slices.Clone(d.labels) }

// LabelVector returns the encoded labels as a vector
func (d *Dataset) LabelVector() *mat.VecDense { return mat.NewVecDense(len(d.labels), d.Labels()) }

// Encoder returns the encoder fitted on column
func (d *Dataset) Encoder(column string) (*preprocessing.LabelEncoder, bool) {
	j := slices.Index(d.columns, column)
	if j < 0 {
		return nil, false
	}
	return d.encoders[j], true
}

// LabelEncoder returns the encoder of the label column
func (d *Dataset) LabelEncoder() *preprocessing.LabelEncoder { return d.encoders[d.labelIndex] }

// LabelCode returns the encoded value of a raw label such as "p"
func (d *Dataset) LabelCode(label string) (int, error) {
	code, ok := d.LabelEncoder().Code(label)
	if !ok {
		return 0, errors.NewValueError("Dataset.LabelCode",
			"label "+label+" does not occur in column "+d.labelColumn)
	}
	return code, nil
}

// ClassCounts returns the number of rows per raw label value
func (d *Dataset) ClassCounts() map[string]int {
	classes := d.classes[d.labelIndex]
	counts := make(map[string]int, len(classes))
	for _, l := range d.labels {
		counts[classes[int(l)]]++
	}
	return counts
}

// Raw returns row i decoded back to the original strings
func (d *Dataset) Raw(i int) ([]string, error) {
	if i < 0 || i >= len(d.codes) {
		return nil, errors.NewValueError("Dataset.Raw", "row index out of range: "+strconv.Itoa(i))
	}
	out := make([]string, len(d.columns))
	for j, c := range d.codes[i] {
		out[j] = d.classes[j][c]
	}
	return out, nil
}

// RawRows returns the first limit rows decoded; limit <= 0 returns every row
func (d *Dataset) RawRows(limit int) [][]string {
	n := len(d.codes)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([][]string, n)
	for i := range out {
		out[i], _ = d.Raw(i)
	}
	return out
}

// Fingerprint identifies the encoded content; equal tables give equal fingerprints
func (d *Dataset) Fingerprint() string { return d.fingerprint }
