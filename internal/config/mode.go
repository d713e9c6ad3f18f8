package config

import "github.com/pkg/errors"

// Mode names one of the image preprocessing variants the dataset was
// prepared in. The mode picks both the record files and the channel count
// the samples were serialized with.
type Mode string

const (
	Pure  Mode = "pure"
	Flip  Mode = "flip"
	Aug   Mode = "aug"
	Bin   Mode = "bin"
	Gray  Mode = "gray"
	Green Mode = "green"
)

var modes = []Mode{Pure, Flip, Aug, Bin, Gray, Green}

// ParseMode resolves a mode name from the command surface.
func ParseMode(name string) (Mode, error) {
	for _, m := range modes {
		if string(m) == name {
			return m, nil
		}
	}
	return "", errors.Errorf("config: unknown mode %q", name)
}

// Channels is the channel count samples of this mode were serialized
// with: one for the single-channel variants, three otherwise.
func (m Mode) Channels() int {
	switch m {
	case Bin, Gray, Green:
		return 1
	default:
		return 3
	}
}

// RecordNames returns the train, validation and test record file names
// for this mode, in that order.
func (m Mode) RecordNames() (train, valid, test string) {
	return string(m) + "_train.tfrecords",
		string(m) + "_valid.tfrecords",
		string(m) + "_test.tfrecords"
}

// CheckMode verifies that a Config's channel count matches the count
// implied by the preprocessing mode. Callers wiring a run must reject the
// mismatch before any data is touched.
func CheckMode(m Mode, c *Config) error {
	if c.Channels != m.Channels() {
		return errors.Errorf("config: mode %q implies %d channels, config has %d",
			m, m.Channels(), c.Channels)
	}
	return nil
}
