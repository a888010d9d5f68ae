package dataset

import (
	"fmt"
	"time"

	"github.com/chazu/datagen/pkg/label"
	"github.com/dustin/go-humanize"
)

// ManifestFile is written at the store root after every run.
const ManifestFile = "dataset.json"

// Sample records one written index.
type Sample struct {
	Index     int            `json:"index"`
	Split     Split          `json:"split,omitempty"`
	Image     string         `json:"image"`
	LabelFile string         `json:"label,omitempty"`
	Label     label.BoxLabel `json:"box"`
	Attempts  int            `json:"attempts"`
	Bytes     int64          `json:"bytes"`
	Elapsed   time.Duration  `json:"-"`
}

// Report summarizes a run.
type Report struct {
	RunID     string
	Seed      uint64
	Class     string
	Requested int
	Written   int
	Skipped   int
	Retries   int
	Train     int
	Val       int
	Bytes     int64
	Elapsed   time.Duration
	Samples   []Sample
}

func (r *Report) add(s Sample) {
	r.Written++
	r.Bytes += s.Bytes
	switch s.Split {
	case Train:
		r.Train++
	case Val:
		r.Val++
	}
	r.Samples = append(r.Samples, s)
}

// Size is the human-readable number of bytes written.
func (r *Report) Size() string {
	return humanize.Bytes(uint64(r.Bytes))
}

func (r *Report) String() string {
	return fmt.Sprintf("%d/%d images (%d skipped, %d retries) in %s, %s",
		r.Written, r.Requested, r.Skipped, r.Retries, r.Elapsed.Round(time.Millisecond), r.Size())
}

// Manifest is the JSON document describing a finished run.
type Manifest struct {
	RunID     string    `json:"run_id"`
	Created   time.Time `json:"created"`
	Seed      uint64    `json:"seed"`
	Class     string    `json:"class"`
	BoxFormat string    `json:"box_format"`
	Width     int       `json:"image_width"`
	Height    int       `json:"image_height"`
	Requested int       `json:"requested"`
	Written   int       `json:"written"`
	Skipped   int       `json:"skipped"`
	Train     int       `json:"train"`
	Val       int       `json:"val"`
	Samples   []Sample  `json:"samples"`
	Config    any       `json:"config,omitempty"`
}

func (r *Report) manifest(o Options) Manifest {
	return Manifest{
		RunID:     r.RunID,
		Created:   time.Now().UTC(),
		Seed:      r.Seed,
		Class:     r.Class,
		BoxFormat: o.BoxFormat.String(),
		Width:     o.Width,
		Height:    o.Height,
		Requested: r.Requested,
		Written:   r.Written,
		Skipped:   r.Skipped,
		Train:     r.Train,
		Val:       r.Val,
		Samples:   r.Samples,
		Config:    o.Config,
	}
}
