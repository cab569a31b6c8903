package pyramid

import (
	"errors"
	"fmt"
	"math"
)

// NumOrientations is the number of orientation channels of a steerable view map.
// The bands split [0, pi) evenly; NumOrientations itself indexes the complete map.
const NumOrientations = 4

// NumChannels is the total channel count: one per orientation plus the complete map.
const NumChannels = NumOrientations + 1

var (
	// ErrChannelOutOfRange is returned when an orientation channel does not exist.
	ErrChannelOutOfRange = errors.New("steerable channel out of range")
	// ErrChannelCount is returned when a view map is built from a wrong number of images.
	ErrChannelCount = errors.New("wrong number of steerable channels")
)

// SteerableViewMap holds one Gaussian pyramid per edge orientation plus one for
// the complete view map. Channel images are produced by the view map subsystem.
type SteerableViewMap struct {
	channels [NumChannels]*GaussianPyramid
}

// NewSteerableViewMap builds the pyramids of the NumChannels channel images.
// All channels must share the size of the first one.
func NewSteerableViewMap(channels []*GrayImage, nbLevels uint, sigma float64) (*SteerableViewMap, error) {
	if len(channels) != NumChannels {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrChannelCount, len(channels), NumChannels)
	}
	w, h := channels[0].Width(), channels[0].Height()
	svm := &SteerableViewMap{}
	for i, img := range channels {
		if img.Width() != w || img.Height() != h {
			return nil, fmt.Errorf("channel %d is %dx%d, want %dx%d", i, img.Width(), img.Height(), w, h)
		}
		svm.channels[i] = NewGaussianPyramid(img, nbLevels, sigma)
	}
	return svm, nil
}

// OrientationChannel returns the channel whose band contains the direction (dx, dy).
// Opposite directions share a band. A null direction selects the complete map.
func OrientationChannel(dx, dy float64) int {
	norm := math.Hypot(dx, dy)
	if norm < 1e-6 {
		return NumOrientations
	}
	angle := math.Acos(dx / norm)
	if dy < 0 {
		angle = 2*math.Pi - angle
	}
	bound := math.Pi / NumOrientations
	return int(angle/bound+0.5) % NumOrientations
}

// Channel returns the pyramid of the given channel or nil if it does not exist.
func (s *SteerableViewMap) Channel(channel int) *GaussianPyramid {
	if channel < 0 || channel >= NumChannels {
		return nil
	}
	return s.channels[channel]
}

// NumLevels returns the number of pyramid levels shared by all channels.
func (s *SteerableViewMap) NumLevels() int {
	return s.channels[NumOrientations].NumLevels()
}

// ReadSteerablePixel samples a channel pyramid. Coordinates follow the same
// convention as GaussianPyramid.ReadPixel: level 0, lower-left origin.
func (s *SteerableViewMap) ReadSteerablePixel(channel, level, x, y int) (float32, error) {
	p := s.Channel(channel)
	if p == nil {
		return NoPixel, fmt.Errorf("%w: %d", ErrChannelOutOfRange, channel)
	}
	return p.ReadPixel(level, x, y)
}

// Release drops the storage of every channel.
func (s *SteerableViewMap) Release() {
	for _, p := range s.channels {
		if p != nil {
			p.Release()
		}
	}
}
