package sensor

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/ericogr/motor-pdm/pkg/zone"
)

//go:embed data/samples.csv
var embeddedSamples []byte

var datasetHeader = []string{"active_current", "dc_link_voltage", "temperature", "vx", "vy", "vz", "label"}

// Dataset is an immutable set of labeled samples.
type Dataset struct {
	samples []Sample
}

// EmbeddedDataset returns the dataset compiled into the binary.
func EmbeddedDataset() *Dataset {
	d, err := LoadDataset(bytes.NewReader(embeddedSamples))
	if err != nil {
		panic("sensor: embedded dataset: " + err.Error())
	}
	return d
}

// LoadDataset parses a CSV with the columns in datasetHeader. Labels may use
// either the prediction encoding (0..5) or the training encoding (0, 15, 30,
// 60, 90, 9999); both are stored as prediction labels.
func LoadDataset(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(datasetHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range datasetHeader {
		if strings.TrimSpace(strings.ToLower(header[i])) != name {
			return nil, fmt.Errorf("column %d: got %q want %q", i, header[i], name)
		}
	}

	d := &Dataset{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s := Sample{Index: len(d.samples)}
		for i := range s.Features {
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, datasetHeader[i], err)
			}
			s.Features[i] = v
		}
		raw, err := strconv.Atoi(rec[6])
		if err != nil {
			return nil, fmt.Errorf("line %d label: %w", line, err)
		}
		if s.Label, err = zone.Parse(raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d.samples = append(d.samples, s)
	}
	if len(d.samples) == 0 {
		return nil, errors.New("dataset has no samples")
	}
	return d, nil
}

func (d *Dataset) Len() int { return len(d.samples) }

// At returns sample i.
func (d *Dataset) At(i int) Sample { return d.samples[i] }

// Draw picks a sample uniformly at random.
func (d *Dataset) Draw(rng *rand.Rand) Sample {
	return d.samples[rng.Intn(len(d.samples))]
}
